package response

import (
	"strings"
	"time"
)

// CookieExpiresLayout formats the expires attribute. Dates are rendered in UTC.
const CookieExpiresLayout = "Mon, 02 Jan 06 15:04:05 -0700"

// CookieConfig carries the optional attributes of a cookie.
type CookieConfig struct {
	// Expire is a unix timestamp in seconds; 0 omits the expires attribute.
	Expire   int64
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// CookieOption mutates CookieConfig.
type CookieOption func(*CookieConfig)

// DefaultCookieConfig returns the attributes used when a call passes none.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{Path: "/"}
}

// ResolveCookie applies opts on top of DefaultCookieConfig.
func ResolveCookie(opts ...CookieOption) CookieConfig {
	c := DefaultCookieConfig()
	for _, fn := range opts {
		if fn != nil {
			fn(&c)
		}
	}
	return c
}

// WithExpire sets the expiry as a unix timestamp.
func WithExpire(unix int64) CookieOption { return func(c *CookieConfig) { c.Expire = unix } }

// WithPath sets the path attribute; "" omits it.
func WithPath(p string) CookieOption { return func(c *CookieConfig) { c.Path = p } }

// WithDomain sets the domain attribute.
func WithDomain(d string) CookieOption { return func(c *CookieConfig) { c.Domain = d } }

// WithSecure sets the secure flag.
func WithSecure(b bool) CookieOption { return func(c *CookieConfig) { c.Secure = b } }

// WithHTTPOnly sets the httponly flag.
func WithHTTPOnly(b bool) CookieOption { return func(c *CookieConfig) { c.HTTPOnly = b } }

// WithSameSite sets the samesite attribute.
func WithSameSite(s string) CookieOption { return func(c *CookieConfig) { c.SameSite = s } }

// WithCookie replaces the attributes wholesale.
func WithCookie(v CookieConfig) CookieOption { return func(c *CookieConfig) { *c = v } }

// CookieString builds the attribute string of a cookie. Attributes appear in
// a fixed order and are joined by ";" without spaces.
func CookieString(key, value string, c CookieConfig) string {
	parts := []string{key + "=" + value}
	if c.Expire != 0 {
		parts = append(parts, "expires="+time.Unix(c.Expire, 0).UTC().Format(CookieExpiresLayout))
	}
	if c.Path != "" {
		parts = append(parts, "path="+c.Path)
	}
	if c.Domain != "" {
		parts = append(parts, "domain="+c.Domain)
	}
	if c.Secure {
		parts = append(parts, "secure")
	}
	if c.HTTPOnly {
		parts = append(parts, "httponly")
	}
	if c.SameSite != "" {
		parts = append(parts, "samesite="+c.SameSite)
	}
	return strings.Join(parts, ";")
}
