package jobs

import (
	"crypto/sha256"
	"fmt"

	"github.com/fernet/fernet-go"
)

// Cipher decrypts the portal passwords stored by the web application.
type Cipher struct {
	key *fernet.Key
}

// NewCipher builds the key the same way the web application does: the
// explicit encryption key when set, otherwise the SHA-256 of the secret key.
func NewCipher(encryptionKey, secretKey string) (*Cipher, error) {
	if encryptionKey != "" {
		k, err := fernet.DecodeKey(encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		return &Cipher{key: k}, nil
	}
	if secretKey == "" {
		return nil, fmt.Errorf("either an encryption key or a secret key is required")
	}

	var k fernet.Key
	digest := sha256.Sum256([]byte(secretKey))
	copy(k[:], digest[:])
	return &Cipher{key: &k}, nil
}

// Decrypt returns the plaintext of token, or "" when the token is empty or
// cannot be decrypted with this key.
func (c *Cipher) Decrypt(token string) string {
	if token == "" {
		return ""
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{c.key})
	if msg == nil {
		return ""
	}
	return string(msg)
}

// Encrypt returns a Fernet token for plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return string(tok), nil
}
