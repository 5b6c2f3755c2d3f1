package http

import (
	"net/http"
	"net/url"

	"github.com/soonrec/identity/internal/auth/service"
	"github.com/soonrec/identity/pkg/httpx"
	"github.com/soonrec/identity/pkg/slogx"
)

type OAuthCallbackHandler struct {
	Facade  *service.Facade
	Cookies CookieConfig
}

// ServeHTTP godoc
//
//	@Summary		OAuth Callback
//	@Description	Landing point of the identity provider's OAuth redirect. Always answers with a redirect:
//	@Description	to the dashboard with a federated session cookie, or to /sign-in with an error code.
//	@Tags			Auth
//	@Param			userId	query	string	true	"provider user id"
//	@Param			secret	query	string	true	"one-time login secret"
//	@Success		302
//	@Router			/v1/oauth/callback [get].
func (h *OAuthCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res := h.Facade.HandleOAuthCallback(r.Context(), service.CallbackRequest{
		UserID:        q.Get("userId"),
		Secret:        q.Get("secret"),
		RefererOrigin: refererOrigin(r),
		IP:            httpx.GetRemoteIP(r),
	})

	if res.Secret != "" {
		h.Cookies.setFederated(w, res.Secret)
	} else {
		if res.Err != nil {
			slogx.FromContext(r.Context()).Info("oauth callback rejected", "error", res.Err)
		}
		h.Cookies.clear(w, FederatedSessionCookie)
	}

	httpx.NoCache(w)
	http.Redirect(w, r, res.Redirect, http.StatusFound)
}

func refererOrigin(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
