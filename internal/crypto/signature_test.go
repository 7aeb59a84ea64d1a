package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyHubSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	header := SignBody("app-secret", body)

	require.NoError(t, VerifyHubSignature("app-secret", body, header))
	assert.ErrorIs(t, VerifyHubSignature("other-secret", body, header), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyHubSignature("app-secret", []byte(`{}`), header), ErrInvalidSignature)
}

func TestVerifyHubSignatureMalformed(t *testing.T) {
	body := []byte("x")

	assert.ErrorIs(t, VerifyHubSignature("s", body, ""), ErrMissingSignature)
	assert.ErrorIs(t, VerifyHubSignature("s", body, "md5=abc"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifyHubSignature("s", body, "sha256=zz"), ErrInvalidSignature)
}

func TestGenerateVerifyToken(t *testing.T) {
	a, err := GenerateVerifyToken()
	require.NoError(t, err)
	b, err := GenerateVerifyToken()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
