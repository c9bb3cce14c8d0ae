package auth

import (
	"net/http"
	"strings"
	"time"
)

const AccessCookieName = "lr_access"

type CookieConfig struct {
	Domain string
	Secure bool
}

func (cfg CookieConfig) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     AccessCookieName,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func SetAccessCookie(w http.ResponseWriter, cfg CookieConfig, accessToken string, accessTTL time.Duration) {
	http.SetCookie(w, cfg.cookie(accessToken, int(accessTTL.Seconds())))
}

func ClearAccessCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie("", -1))
}

// AccessToken pulls the token from the access cookie, falling back to an
// Authorization bearer header when allowBearer is set. The cookie wins when
// both are present.
func AccessToken(r *http.Request, allowBearer bool) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !allowBearer {
		return ""
	}
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
