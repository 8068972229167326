package secret

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESGCM_SealOpen(t *testing.T) {
	box, err := NewAESGCM(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	scope := Scope{OwnerID: 42, Purpose: PurposeSMTPPassword}
	ct, err := box.Seal([]byte("app-password"), scope)
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "app-password")

	pt, err := box.Open(ct, scope)
	require.NoError(t, err)
	assert.Equal(t, "app-password", string(pt))

	_, err = box.Open(ct, Scope{OwnerID: 43, Purpose: PurposeSMTPPassword})
	assert.ErrorIs(t, err, ErrDecryptFailed)

	ct[len(ct)-1] ^= 0xff
	_, err = box.Open(ct, scope)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestAESGCM_Errors(t *testing.T) {
	_, err := NewAESGCM([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	box, err := NewAESGCM(make([]byte, 32))
	require.NoError(t, err)

	_, err = box.Seal(nil, Scope{})
	assert.ErrorIs(t, err, ErrPlaintextEmpty)

	_, err = box.Open([]byte{0, 1}, Scope{})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	ct, err := box.Seal([]byte("x"), Scope{})
	require.NoError(t, err)
	ct[1] = 9
	_, err = box.Open(ct, Scope{})
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}
