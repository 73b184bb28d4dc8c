package handler

import (
	"net/http"

	"github.com/hd-notes/notes-api/internal/application/session"
	"github.com/hd-notes/notes-api/internal/config"
	"github.com/hd-notes/notes-api/internal/transport/http/middleware"
)

// cookieOptions returns the attributes shared by both auth cookies:
// HttpOnly always; Secure and cross-site SameSite=None in production,
// SameSite=Lax in development.
func cookieOptions(cfg *config.Config) (secure bool, sameSite http.SameSite) {
	if cfg.IsProduction() {
		return true, http.SameSiteNoneMode
	}
	return false, http.SameSiteLaxMode
}

// setAuthCookies delivers a freshly issued token pair as scoped cookies.
func setAuthCookies(w http.ResponseWriter, cfg *config.Config, pair *session.TokenPair) {
	secure, sameSite := cookieOptions(cfg)
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   int(cfg.AccessTokenExpiry.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   int(cfg.RefreshTokenExpiry.Seconds()),
	})
}

// clearAuthCookies expires both auth cookies.
func clearAuthCookies(w http.ResponseWriter, cfg *config.Config) {
	secure, sameSite := cookieOptions(cfg)
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: sameSite,
			MaxAge:   -1,
		})
	}
}
