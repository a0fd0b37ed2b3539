package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/google/tink/go/subtle/random"
	"github.com/pkg/errors"
)

// Encrypt seals data with AES-GCM under a 32-byte key, nonce prepended.
func Encrypt(data []byte, key [32]byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := random.GetRandomBytes(uint32(gcm.NonceSize()))
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// Decrypt opens an Encrypt-produced ciphertext.
func Decrypt(data []byte, key [32]byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext is too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
