package session

import (
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwt(payload string) string {
	return "e30." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"ADMIN":            Admin,
		"admin":            Admin,
		"ROLE_ADMIN":       Admin,
		"SUPERADMIN":       SuperAdmin,
		"SUPER_ADMIN":      SuperAdmin,
		"ROLE_SUPER_ADMIN": SuperAdmin,
		"VISUALIZADOR":     Viewer,
		"":                 Viewer,
		"root":             Viewer,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRole(in), "ParseRole(%q)", in)
	}
}

func TestRoleFromClaims(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    Role
	}{
		{"role string", `{"sub":"a@b.c","role":"ADMIN"}`, Admin},
		{"roles list", `{"roles":["VISUALIZADOR","SUPER_ADMIN"]}`, SuperAdmin},
		{"spring authorities", `{"authorities":[{"authority":"ROLE_ADMIN"}]}`, Admin},
		{"no role claim", `{"sub":"x"}`, Viewer},
		{"numeric role", `{"role":7}`, Viewer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := New(NewMemoryStore(jwt(tc.payload)))
			assert.Equal(t, tc.want, ctx.Role())
		})
	}
}

func TestRoleIsRecomputedFromCurrentToken(t *testing.T) {
	store := NewMemoryStore("")
	ctx := New(store)
	assert.Equal(t, Viewer, ctx.Role())
	assert.False(t, ctx.LoggedIn())

	store.Set(MintDevToken("admin@example.com", Admin, time.Hour))
	assert.Equal(t, Admin, ctx.Role())
	assert.True(t, ctx.LoggedIn())

	store.Clear()
	assert.Equal(t, Viewer, ctx.Role())
}

func TestMalformedTokenIsViewer(t *testing.T) {
	for _, tok := range []string{"garbage", "a.b", "a.!!!.c", "a." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".c"} {
		ctx := New(NewMemoryStore(tok))
		assert.Equal(t, Viewer, ctx.Role(), tok)
		_, err := ctx.Claims()
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestMintDevTokenClaims(t *testing.T) {
	claims, err := ParseClaims(MintDevToken("root@example.com", SuperAdmin, time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", claims.Subject)
	assert.Equal(t, SuperAdmin, claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.Expires, 5*time.Second)
}

func TestFileStore(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "nested", "token")}
	_, ok := store.Token()
	assert.False(t, ok)

	require.NoError(t, store.Set(MintDevToken("a", Admin, time.Hour)))
	assert.Equal(t, Admin, New(store).Role())

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	assert.Equal(t, Viewer, New(store).Role())
}

func TestNoToken(t *testing.T) {
	_, err := New(nil).Claims()
	assert.ErrorIs(t, err, ErrNoToken)
}
