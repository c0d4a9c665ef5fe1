package auth

import (
	"net/http"
)

// SessionMiddleware renews the session cookie once it is past half its
// lifetime. It never rejects a request; operations authorize themselves.
func (h *AuthHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		staffID, exp, err := h.ParseToken(cookie.Value)
		if err == nil && exp.Sub(h.now()) < TokenDuration/2 {
			if newToken, err := h.GenerateToken(staffID); err == nil {
				http.SetCookie(w, h.sessionCookie(newToken))
			}
		}

		next.ServeHTTP(w, r)
	})
}
