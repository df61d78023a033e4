package vault

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

func TestVault_RoundTrip(t *testing.T) {
	v, err := New("test-passphrase")
	require.NoError(t, err)

	creds := models.Credentials{Email: "user@example.gov.br", Password: "s3cr3t!"}

	ciphertext, err := v.EncryptCredentials(creds)
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "s3cr3t!", "plaintext must not survive encryption")
	assert.NotContains(t, string(ciphertext), "user@example.gov.br")

	got, err := v.DecryptCredentials(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestVault_EncryptIsNonDeterministic(t *testing.T) {
	v, err := New("test-passphrase")
	require.NoError(t, err)

	creds := models.Credentials{Email: "a@b.c", Password: "pw"}
	first, err := v.EncryptCredentials(creds)
	require.NoError(t, err)
	second, err := v.EncryptCredentials(creds)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(first, second), "nonce must vary per encryption")
}

func TestVault_WrongKeyFails(t *testing.T) {
	v1, err := New("key-one")
	require.NoError(t, err)
	v2, err := New("key-two")
	require.NoError(t, err)

	ciphertext, err := v1.EncryptCredentials(models.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	_, err = v2.DecryptCredentials(ciphertext)
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrConfig))
}

func TestVault_EmptyInputs(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrConfig))

	v, err := New("key")
	require.NoError(t, err)

	_, err = v.DecryptCredentials(nil)
	require.Error(t, err)

	_, err = v.DecryptCredentials([]byte{0x01, 0x02})
	require.Error(t, err)
}
