package idpsdk

import (
	"context"
	"net/http"
	"net/url"
)

// GetUser fetches a provider user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, credential{admin: true})
	if err != nil {
		return User{}, err
	}

	var u User
	if err := decodeJSON(resp, &u, http.StatusOK); err != nil {
		return User{}, err
	}
	return u, nil
}

// DeleteUser permanently removes a provider user and its sessions.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/users/"+url.PathEscape(userID), nil, credential{admin: true})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
