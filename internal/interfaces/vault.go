package interfaces

import "github.com/IzacPS/conecta-sei-backend/internal/models"

// CredentialVault encrypts and decrypts tenant credentials with a
// process-global symmetric key. Plaintext exists only inside the pipeline
// process and never appears in logs, task summaries or error messages.
type CredentialVault interface {
	EncryptCredentials(creds models.Credentials) ([]byte, error)
	DecryptCredentials(ciphertext []byte) (models.Credentials, error)
}
