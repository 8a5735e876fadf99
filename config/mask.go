package config

import (
	"net/url"
	"strings"
)

// mask keeps the first half of s and replaces the rest with asterisks.
func mask(s string) string {
	switch len(s) {
	case 0:
		return s
	case 1:
		return "*"
	}
	h := len(s) / 2
	return s[:h] + strings.Repeat("*", len(s)-h)
}

// MaskURL hides the credentials in a store or events URL so it can be
// logged. Values that are not URLs, such as file paths, are returned as is.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	if u.User != nil {
		name := mask(u.User.Username())
		if pass, ok := u.User.Password(); ok {
			u.User = url.UserPassword(name, mask(pass))
		} else {
			u.User = url.User(name)
		}
	}
	if q := u.Query(); q.Has("password") {
		q.Set("password", mask(q.Get("password")))
		u.RawQuery = q.Encode()
	}
	return u.String()
}
