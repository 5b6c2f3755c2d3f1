/*
Package idpsdk is a client for the remote managed-identity provider that
performs OAuth federation on behalf of the service.

# Overview

The provider completes the third-party OAuth dance itself and redirects the
browser back with a provider user id and a one-time secret. The service then
uses this client to turn that secret into a provider session and, when
registration is closed, to inspect or roll back what the provider created.

	client := idpsdk.New(idpsdk.Config{
		BaseURL:   "https://idp.example.com",
		ProjectID: "soonrec",
		APIKey:    os.Getenv("IDP_API_KEY"),
	})

	session, err := client.ExchangeSecret(ctx, userID, secret)

# Authentication

Admin operations (exchange, user lookup, deletion) carry a short-lived HS256
bearer assertion signed with the project API key. Operations on behalf of a
signed-in user (GetSessionUser, DeleteCurrentSession) send the provider
session secret instead.

# Errors

Non-2xx responses are returned as *APIError. Transport failures and 5xx
responses also match ErrUnavailable with errors.Is, which lets callers tell
"the provider said no" apart from "the provider could not be reached":

	if errors.Is(err, idpsdk.ErrUnavailable) {
		// retry later
	}
*/
package idpsdk
