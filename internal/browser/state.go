package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// State is the persisted browser session: the full cookie jar plus
// per-origin localStorage. Loading it into a fresh context reproduces
// the authenticated state without touching the login flow.
type State struct {
	SavedAt time.Time       `json:"saved_at"`
	Cookies []Cookie        `json:"cookies"`
	Origins []OriginStorage `json:"origins,omitempty"`
}

// Cookie mirrors the wire cookie. Expires is unix epoch seconds, or -1
// for a session-only cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

type OriginStorage struct {
	Origin       string            `json:"origin"`
	LocalStorage map[string]string `json:"localStorage"`
}

const sealedPrefix = "sealed:v1:"

// LoadState reads the state file. A nil *State with nil error means the
// file simply does not exist yet. Sealed files require the matching
// sealer; a sealed file with no sealer configured is an error, not a
// silent fresh start.
func LoadState(path string, sealer *Sealer) (*State, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	if strings.HasPrefix(string(b), sealedPrefix) {
		if sealer == nil {
			return nil, fmt.Errorf("state file %s is sealed but no sealing keys are configured", path)
		}
		b, err = sealer.Open(strings.TrimPrefix(strings.TrimSpace(string(b)), sealedPrefix))
		if err != nil {
			return nil, fmt.Errorf("unseal state: %w", err)
		}
	}

	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &st, nil
}

// Write persists the state, sealed when a sealer is configured.
func (s *State) Write(path string, sealer *Sealer) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if sealer != nil {
		enc, err := sealer.Seal(b)
		if err != nil {
			return fmt.Errorf("seal state: %w", err)
		}
		b = []byte(sealedPrefix + enc)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (s *State) cookieParams() []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if c.SameSite != "" {
			p.SameSite = proto.NetworkCookieSameSite(c.SameSite)
		}
		params = append(params, p)
	}
	return params
}

func cookiesFromProto(in []*proto.NetworkCookie) []Cookie {
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}
