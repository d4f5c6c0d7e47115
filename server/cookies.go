package server

import "net/http"

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// setAuthCookies attaches the token pair as HttpOnly cookies so browser
// pages can be gated without the client handling tokens itself. Secure is
// only set in production so local HTTP development keeps working.
func (s *Server) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(s.config.AccessTokenExpiry.Seconds()),
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(s.config.RefreshTokenExpiry.Seconds()),
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies expires both auth cookies.
func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.config.IsProduction(),
			SameSite: http.SameSiteLaxMode,
		})
	}
}
