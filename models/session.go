package models

import "time"

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// ExpiresAt converts the epoch-seconds expiry; session cookies (<= 0) report
// the zero time.
func (c Cookie) ExpiresAt() time.Time {
	if c.Expires <= 0 {
		return time.Time{}
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Session is an authenticated browsing context: cookies plus a
// localStorage snapshot.
type Session struct {
	Cookies []Cookie          `json:"cookies"`
	Storage map[string]string `json:"storage"`
}

func (s *Session) Cookie(name string) (Cookie, bool) {
	if s == nil {
		return Cookie{}, false
	}
	for _, c := range s.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}
