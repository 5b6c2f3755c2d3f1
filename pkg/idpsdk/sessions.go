package idpsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ExchangeSecret trades the one-time OAuth secret for a provider session.
// A consumed or unknown secret yields a 4xx *APIError.
func (c *Client) ExchangeSecret(ctx context.Context, userID, secret string) (Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/account/sessions/token",
		exchangeRequest{UserID: userID, Secret: secret}, credential{admin: true})
	if err != nil {
		return Session{}, err
	}

	var s Session
	if err := decodeJSON(resp, &s, http.StatusCreated); err != nil {
		return Session{}, err
	}
	return s, nil
}

// DeleteSession removes one of the user's provider sessions.
func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	path := "/v1/users/" + url.PathEscape(userID) + "/sessions/" + url.PathEscape(sessionID)
	resp, err := c.doRequest(ctx, http.MethodDelete, path, nil, credential{admin: true})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// GetSessionUser returns the account owning the session secret.
func (c *Client) GetSessionUser(ctx context.Context, secret string) (User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/account", nil, credential{sessionSecret: secret})
	if err != nil {
		return User{}, err
	}

	var u User
	if err := decodeJSON(resp, &u, http.StatusOK); err != nil {
		return User{}, err
	}
	return u, nil
}

// DeleteCurrentSession signs the session secret out at the provider.
func (c *Client) DeleteCurrentSession(ctx context.Context, secret string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/account/sessions/current", nil, credential{sessionSecret: secret})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
