// Package session loads the exported authentication cookies the browser
// executor injects before touching the event site. Cookies are captured from
// a logged-in browser and saved as a JSON array.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Cookie is one entry of the exported cookie file.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// Expired reports whether the cookie carries an expiry in the past. A zero
// or negative expiry means a session cookie, which never counts as expired.
func (c Cookie) Expired(now time.Time) bool {
	if c.Expires <= 0 {
		return false
	}
	return time.Unix(int64(c.Expires), 0).Before(now)
}

// Load reads and validates the cookie file at path. It fails when the file
// is missing, malformed, empty, or when every cookie has already expired, so
// a stale export is caught before a run starts instead of mid-listing.
func Load(path string) ([]Cookie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookie file %s contains no cookies", path)
	}

	now := time.Now()
	live := 0
	for i, c := range cookies {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("cookie file %s: entry %d has no name", path, i)
		}
		if !c.Expired(now) {
			live++
		}
	}
	if live == 0 {
		return nil, fmt.Errorf("cookie file %s: all %d cookies have expired, re-export the session", path, len(cookies))
	}

	return cookies, nil
}
