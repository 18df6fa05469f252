// Package session resolves the current user's role from the stored credential.
//
// The credential is a JWT issued by the remote API. Only the payload is read
// here; signature verification is the API's job.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Role is the access tier derived from the current credential.
type Role string

const (
	Viewer     Role = "VISUALIZADOR"
	Admin      Role = "ADMIN"
	SuperAdmin Role = "SUPERADMIN"
)

var (
	// ErrForbidden is returned when the current role may not perform an action.
	ErrForbidden = errors.New("action not permitted for role")
	// ErrNoToken is returned when no credential is stored.
	ErrNoToken = errors.New("no session token")
	// ErrInvalidToken is returned for credentials that are not decodable JWTs.
	ErrInvalidToken = errors.New("invalid token format")
)

// ParseRole normalises a role claim. "ROLE_" prefixes and underscores are
// ignored, so "ROLE_SUPER_ADMIN" is SuperAdmin. Unknown values are Viewer.
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "ROLE_")
	s = strings.ReplaceAll(s, "_", "")
	switch Role(s) {
	case Admin:
		return Admin
	case SuperAdmin:
		return SuperAdmin
	default:
		return Viewer
	}
}

// IsAdmin reports whether r may perform administrative actions client-side.
func (r Role) IsAdmin() bool {
	return r == Admin || r == SuperAdmin
}

func (r Role) rank() int {
	switch r {
	case SuperAdmin:
		return 2
	case Admin:
		return 1
	default:
		return 0
	}
}

// TokenStore holds the raw credential.
type TokenStore interface {
	Token() (string, bool)
}

// MemoryStore keeps the token in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates a store seeded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: strings.TrimSpace(token)}
}

func (s *MemoryStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set replaces the token.
func (s *MemoryStore) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// Clear removes the token.
func (s *MemoryStore) Clear() { s.Set("") }

// FileStore reads the token from a file on every access.
type FileStore struct {
	Path string
}

func (s FileStore) Token() (string, bool) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Set writes the token file.
func (s FileStore) Set(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.Path, []byte(strings.TrimSpace(token)+"\n"), 0o600)
}

// Clear removes the token file.
func (s FileStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Claims is the subset of the JWT payload the viewer cares about.
type Claims struct {
	Subject string
	Role    Role
	Expires time.Time
}

// Context is the stateless accessor over a TokenStore. Every call re-reads the
// credential, so the role always reflects the current token.
type Context struct {
	store TokenStore
}

// New creates a session context.
func New(store TokenStore) *Context {
	if store == nil {
		store = NewMemoryStore("")
	}
	return &Context{store: store}
}

// Token returns the raw credential, if any.
func (c *Context) Token() (string, bool) {
	return c.store.Token()
}

// LoggedIn reports whether a structurally valid JWT is stored.
func (c *Context) LoggedIn() bool {
	token, ok := c.Token()
	return ok && len(strings.Split(token, ".")) == 3
}

// Claims decodes the stored credential.
func (c *Context) Claims() (Claims, error) {
	token, ok := c.Token()
	if !ok {
		return Claims{}, ErrNoToken
	}
	return ParseClaims(token)
}

// Role returns the current role; Viewer when anonymous or undecodable.
func (c *Context) Role() Role {
	claims, err := c.Claims()
	if err != nil {
		return Viewer
	}
	return claims.Role
}

// ParseClaims decodes a JWT payload without verifying it.
func ParseClaims(token string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := Claims{Role: Viewer}
	if sub, ok := raw["sub"].(string); ok {
		claims.Subject = sub
	}
	if exp, ok := raw["exp"].(float64); ok {
		claims.Expires = time.Unix(int64(exp), 0)
	}
	for _, key := range []string{"role", "roles", "authorities"} {
		if v, ok := raw[key]; ok {
			claims.Role = roleFromClaim(v)
			break
		}
	}
	return claims, nil
}

// roleFromClaim accepts a string or a list and returns the highest role found.
func roleFromClaim(v any) Role {
	switch val := v.(type) {
	case string:
		return ParseRole(val)
	case []any:
		best := Viewer
		for _, item := range val {
			var r Role
			switch it := item.(type) {
			case string:
				r = ParseRole(it)
			case map[string]any:
				// Spring authorities: {"authority": "ROLE_ADMIN"}
				if s, ok := it["authority"].(string); ok {
					r = ParseRole(s)
				}
			}
			if r.rank() > best.rank() {
				best = r
			}
		}
		return best
	default:
		return Viewer
	}
}

// MintDevToken returns an unsigned JWT for local development against the dev
// API. It must never be accepted by a production backend.
func MintDevToken(subject string, role Role, ttl time.Duration) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]any{
		"sub":  subject,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".dev"
}
