package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/samber/oops"
)

// NonceSize is the AES-GCM nonce size, equal to the discv5 message nonce.
const NonceSize = 12

// TagSize is the AES-GCM authentication tag size.
const TagSize = 16

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "%v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, oops.Wrapf(ErrInvalidKey, "%v", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with AES-128-GCM.
func Encrypt(key Key, nonce [NonceSize]byte, plaintext, ad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce[:], plaintext, ad)
	log.WithField("ciphertext_length", len(ciphertext)).Debug("message_encrypted")
	return ciphertext, nil
}

// Decrypt opens ciphertext with AES-128-GCM. Short input and tag mismatches
// both return ErrAuthenticationFailed.
func Decrypt(key Key, nonce [NonceSize]byte, ciphertext, ad []byte) ([]byte, error) {
	if len(ciphertext) < TagSize {
		return nil, oops.Wrapf(ErrAuthenticationFailed, "message not long enough to contain a tag: %d bytes", len(ciphertext))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce[:], ciphertext, ad)
	if err != nil {
		log.WithField("ciphertext_length", len(ciphertext)).Debug("message_authentication_failed")
		return nil, oops.Wrapf(ErrAuthenticationFailed, "%v", err)
	}
	return plaintext, nil
}
