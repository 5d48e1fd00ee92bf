package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(testKey())
	require.NoError(t, err)

	sealed, err := box.Seal("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "JBSWY3DPEHPK3PXP")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", opened)
}

func TestSecretBoxRejectsBadKeys(t *testing.T) {
	_, err := NewSecretBox("")
	assert.Error(t, err)
	_, err = NewSecretBox("not base64!!")
	assert.Error(t, err)
	_, err = NewSecretBox(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestSecretBoxTamper(t *testing.T) {
	box, err := NewSecretBox(testKey())
	require.NoError(t, err)
	sealed, err := box.Seal("secret")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	_, err = box.Open(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)

	_, err = box.Open(base64.StdEncoding.EncodeToString([]byte("x")))
	assert.Error(t, err)
}
