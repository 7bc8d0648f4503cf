package browser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	return &State{
		SavedAt: time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC),
		Cookies: []Cookie{
			{
				Name:     "ASP.NET_SessionId",
				Value:    "abc123",
				Domain:   "membership.gocrimson.com",
				Path:     "/",
				Expires:  -1,
				HTTPOnly: true,
				Secure:   true,
				SameSite: "Lax",
			},
			{
				Name:    "auth_token",
				Value:   "tok",
				Domain:  ".gocrimson.com",
				Path:    "/",
				Expires: 1767225600,
				Secure:  true,
			},
		},
		Origins: []OriginStorage{
			{
				Origin:       "https://membership.gocrimson.com",
				LocalStorage: map[string]string{"member": "jane"},
			},
		},
	}
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	want := sampleState()

	require.NoError(t, want.Write(path, nil))

	got, err := LoadState(path, nil)
	require.NoError(t, err)
	require.Equal(t, want.Cookies, got.Cookies)
	require.Equal(t, want.Origins, got.Origins)
}

func TestLoadStateMissingFile(t *testing.T) {
	st, err := LoadState(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.NoError(t, err)
	require.Nil(t, st)
}

func TestLoadStateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadState(path, nil)
	require.Error(t, err)
}

func TestStateSealedRoundTrip(t *testing.T) {
	sealer, err := SealerFromPassphrase("hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "state.json")
	want := sampleState()
	require.NoError(t, want.Write(path, sealer))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), sealedPrefix))
	require.NotContains(t, string(raw), "abc123")

	got, err := LoadState(path, sealer)
	require.NoError(t, err)
	require.Equal(t, want.Cookies, got.Cookies)
}

func TestLoadStateSealedWithoutSealer(t *testing.T) {
	sealer, err := SealerFromPassphrase("hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, sampleState().Write(path, sealer))

	_, err = LoadState(path, nil)
	require.Error(t, err)
}

func TestLoadStateSealedWrongPassphrase(t *testing.T) {
	sealer, err := SealerFromPassphrase("hunter2")
	require.NoError(t, err)
	other, err := SealerFromPassphrase("letmein")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, sampleState().Write(path, sealer))

	_, err = LoadState(path, other)
	require.Error(t, err)
}

func TestCookieParamsSkipSessionExpiry(t *testing.T) {
	st := sampleState()
	params := st.cookieParams()
	require.Len(t, params, 2)

	// Session cookie keeps a zero Expires so CDP treats it as such.
	require.Zero(t, params[0].Expires)
	require.NotZero(t, params[1].Expires)
	require.Equal(t, "ASP.NET_SessionId", params[0].Name)
}
