package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// Vault implements symmetric authenticated encryption (AES-256-GCM) for
// tenant credentials. The key is derived from the process-global passphrase;
// plaintext exists only inside the pipeline process.
type Vault struct {
	key [32]byte
}

// Compile-time assertion
var _ interfaces.CredentialVault = (*Vault)(nil)

// New creates a vault from the configured passphrase
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: encryption key is not configured", interfaces.ErrConfig)
	}
	return &Vault{key: sha256.Sum256([]byte(passphrase))}, nil
}

// EncryptCredentials serializes and encrypts a credential pair.
// Output layout: nonce || ciphertext.
func (v *Vault) EncryptCredentials(creds models.Credentials) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credentials: %w", err)
	}

	gcm, err := v.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptCredentials decrypts and deserializes a credential pair. A tampered
// or foreign-key ciphertext fails authentication.
func (v *Vault) DecryptCredentials(ciphertext []byte) (models.Credentials, error) {
	var creds models.Credentials

	if len(ciphertext) == 0 {
		return creds, fmt.Errorf("%w: tenant has no stored credentials", interfaces.ErrConfig)
	}

	gcm, err := v.aead()
	if err != nil {
		return creds, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return creds, fmt.Errorf("%w: ciphertext too short", interfaces.ErrConfig)
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return creds, fmt.Errorf("%w: credential decryption failed", interfaces.ErrConfig)
	}

	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return creds, fmt.Errorf("%w: stored credentials are malformed", interfaces.ErrConfig)
	}
	return creds, nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
