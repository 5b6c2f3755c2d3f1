package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/soonrec/identity/internal/auth/domain"
	"github.com/soonrec/identity/internal/auth/service"
	"github.com/soonrec/identity/pkg/httpx"
	"github.com/soonrec/identity/pkg/slogx"
)

type userCtxKey struct{}

func withUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

func userFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userCtxKey{}).(*domain.User)
	return u
}

// RequireSession resolves the request's session and rejects the request
// when there is none. The resolved user is available to the handler and
// to per-user rate limiting.
func RequireSession(facade *service.Facade) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			u, err := facade.GetCurrentUser(ctx, sessionRef(r))
			if err != nil {
				slogx.FromContext(ctx).Warn("could not resolve session", "error", err)
				writeError(w, service.KindOf(err), nil)
				return
			}
			if u == nil {
				writeError(w, domain.ErrUnauthenticated, nil)
				return
			}

			ctx = httpx.WithUserID(withUser(ctx, u), u.ID)
			ctx = slogx.With(ctx, "user_id", u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type AccountHandler struct {
	Facade  *service.Facade
	Cookies CookieConfig
}

// HandleGet godoc
//
//	@Summary		Current Account
//	@Description	Return the account behind the current local or federated session.
//	@Tags			Account
//	@Produce		json
//	@Success		200	{object}	SuccessResponse[UserResponse]
//	@Failure		401	{object}	ErrorResponse	"unauthenticated"
//	@Failure		503	{object}	ErrorResponse	"provider_unavailable"
//	@Router			/v1/account [get].
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if u == nil {
		writeError(w, domain.ErrUnauthenticated, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, SuccessResponse[UserResponse]{Success: true, Data: toUserResponse(*u)})
}

// HandleUpdate godoc
//
//	@Summary		Update Account
//	@Description	Change the display name and email of a local account.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.UpdateAccountInput		true	"name, email"
//	@Success		200		{object}	SuccessResponse[UserResponse]
//	@Failure		400		{object}	ErrorResponse	"invalid_input"
//	@Failure		401		{object}	ErrorResponse	"unauthenticated"
//	@Failure		409		{object}	ErrorResponse	"duplicate_account"
//	@Router			/v1/account [patch].
func (h *AccountHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateAccountInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeBadBody(w, err)
		return
	}

	res := h.Facade.UpdateAccount(r.Context(), sessionRef(r), in, httpx.GetRemoteIP(r))
	writeResult(w, res, http.StatusOK, toUserResponse)
}

// HandleDelete godoc
//
//	@Summary		Delete Account
//	@Description	Soft-delete a local account after re-entering the password. Every session is revoked.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.DeleteAccountInput	true	"password"
//	@Success		200		{object}	SuccessResponse[service.Empty]
//	@Failure		400		{object}	ErrorResponse	"invalid_input"
//	@Failure		401		{object}	ErrorResponse	"invalid_credentials, unauthenticated"
//	@Router			/v1/account [delete].
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var in service.DeleteAccountInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeBadBody(w, err)
		return
	}

	res := h.Facade.DeleteAccount(r.Context(), sessionRef(r), in, httpx.GetRemoteIP(r))
	if res.Success {
		h.Cookies.clearAll(w)
	}
	writeResult(w, res, http.StatusOK, func(e service.Empty) service.Empty { return e })
}

// HandlePassword godoc
//
//	@Summary		Change Password
//	@Description	Change the password of a local account. Other sessions are revoked; this one stays valid.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.UpdatePasswordInput	true	"current_password, new_password, confirm_password"
//	@Success		200		{object}	SuccessResponse[service.Empty]
//	@Failure		400		{object}	ErrorResponse	"invalid_input"
//	@Failure		401		{object}	ErrorResponse	"invalid_credentials, unauthenticated"
//	@Failure		422		{object}	ErrorResponse	"no_op_change, mismatch"
//	@Router			/v1/account/password [post].
func (h *AccountHandler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	var in service.UpdatePasswordInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		writeBadBody(w, err)
		return
	}

	res := h.Facade.UpdatePassword(r.Context(), sessionRef(r), in, httpx.GetRemoteIP(r))
	writeResult(w, res, http.StatusOK, func(e service.Empty) service.Empty { return e })
}

// HandleActivity godoc
//
//	@Summary		Account Activity
//	@Description	Newest audit entries of the current account.
//	@Tags			Account
//	@Produce		json
//	@Param			limit	query		int	false	"maximum entries (default and cap 50)"
//	@Success		200		{object}	SuccessResponse[[]ActivityResponse]
//	@Failure		401		{object}	ErrorResponse	"unauthenticated"
//	@Router			/v1/account/activity [get].
func (h *AccountHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	res := h.Facade.ListActivity(r.Context(), sessionRef(r), limit)
	writeResult(w, res, http.StatusOK, toActivityResponse)
}
