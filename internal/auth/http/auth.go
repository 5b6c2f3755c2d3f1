package http

import (
	"net/http"

	"github.com/soonrec/identity/internal/auth/service"
	"github.com/soonrec/identity/pkg/httpx"
)

type AuthHandler struct {
	Facade  *service.Facade
	Cookies CookieConfig
}

func toSessionResponse(s service.AuthSession) SessionResponse {
	return SessionResponse{User: toUserResponse(s.User), ExpiresAt: s.ExpiresAt}
}

// HandleSignUp godoc
//
//	@Summary		Sign Up
//	@Description	Create a local account and sign it in. The session token is returned in an HttpOnly cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.SignUpInput					true	"email, password, name"
//	@Success		201		{object}	SuccessResponse[SessionResponse]	"user, expires_at"
//	@Failure		400		{object}	ErrorResponse						"invalid_input"
//	@Failure		403		{object}	ErrorResponse						"registration_disabled"
//	@Failure		409		{object}	ErrorResponse						"duplicate_account"
//	@Router			/v1/auth/sign-up [post].
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var in service.SignUpInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeBadBody(w, err)
		return
	}

	res := h.Facade.SignUp(r.Context(), in, httpx.GetRemoteIP(r))
	if res.Success {
		h.Cookies.setLocal(w, res.Data.Token)
	}
	writeResult(w, res, http.StatusCreated, toSessionResponse)
}

// HandleSignIn godoc
//
//	@Summary		Sign In
//	@Description	Verify email and password and start a local session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.SignInInput					true	"email, password"
//	@Success		200		{object}	SuccessResponse[SessionResponse]	"user, expires_at"
//	@Failure		400		{object}	ErrorResponse						"invalid_input"
//	@Failure		401		{object}	ErrorResponse						"invalid_credentials"
//	@Router			/v1/auth/sign-in [post].
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var in service.SignInInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeBadBody(w, err)
		return
	}

	res := h.Facade.SignIn(r.Context(), in, httpx.GetRemoteIP(r))
	if res.Success {
		h.Cookies.setLocal(w, res.Data.Token)
	}
	writeResult(w, res, http.StatusOK, toSessionResponse)
}

// HandleSignOut godoc
//
//	@Summary		Sign Out
//	@Description	End the current local or federated session. Succeeds without a session. Session cookies are cleared in every case.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	SuccessResponse[service.Empty]
//	@Failure		500	{object}	ErrorResponse	"internal"
//	@Router			/v1/auth/sign-out [post].
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	res := h.Facade.SignOut(r.Context(), sessionRef(r), httpx.GetRemoteIP(r))
	h.Cookies.clearAll(w)
	writeResult(w, res, http.StatusOK, func(e service.Empty) service.Empty { return e })
}

