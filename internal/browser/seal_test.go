package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := SealerFromPassphrase("hunter2")
	require.NoError(t, err)

	enc, err := s.Seal([]byte(`{"cookies":[]}`))
	require.NoError(t, err)
	require.NotContains(t, enc, "cookies")

	plain, err := s.Open(enc)
	require.NoError(t, err)
	require.Equal(t, `{"cookies":[]}`, string(plain))
}

func TestSealerRejectsTamper(t *testing.T) {
	s, err := SealerFromPassphrase("hunter2")
	require.NoError(t, err)

	enc, err := s.Seal([]byte("payload"))
	require.NoError(t, err)

	flipped := []byte(enc)
	flipped[len(flipped)/2] ^= 0x01
	_, err = s.Open(string(flipped))
	require.Error(t, err)
}

func TestNewSealerRequiresKeys(t *testing.T) {
	_, err := NewSealer(nil, []byte("block"))
	require.Error(t, err)
	_, err = NewSealer([]byte("hash"), nil)
	require.Error(t, err)
	_, err = SealerFromPassphrase("")
	require.Error(t, err)
}
