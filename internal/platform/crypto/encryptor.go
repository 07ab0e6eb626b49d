package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// FieldCipher is the at-rest representation of an encrypted field: the
// ciphertext and its initialization vector, both base64-encoded, stored in
// separate columns.
type FieldCipher struct {
	CipherText string
	IV         string
}

// FieldEncryptor encrypts and decrypts individual record fields. The key
// context scopes the key derivation: a value encrypted under one context
// cannot be decrypted under another.
type FieldEncryptor interface {
	Encrypt(plaintext, keyContext string) (FieldCipher, error)
	Decrypt(fc FieldCipher, keyContext string) (string, error)
}

// Encryptor provides AES-256-GCM field-level encryption with per-context
// keys derived from a single 32-byte master key via HKDF-SHA256.
type Encryptor struct {
	master []byte
}

// NewEncryptor creates an Encryptor with the given 32-byte master key.
func NewEncryptor(master []byte) (*Encryptor, error) {
	if len(master) != 32 {
		return nil, fmt.Errorf("field encryptor: master key must be 32 bytes, got %d", len(master))
	}
	key := make([]byte, 32)
	copy(key, master)
	return &Encryptor{master: key}, nil
}

func (e *Encryptor) aead(keyContext string) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, e.master, nil, []byte("medagenda/field:"+keyContext))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("field encryptor: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("field encryptor: create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts the plaintext under the key derived for keyContext and
// returns the ciphertext with a fresh random IV.
func (e *Encryptor) Encrypt(plaintext, keyContext string) (FieldCipher, error) {
	aead, err := e.aead(keyContext)
	if err != nil {
		return FieldCipher{}, err
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return FieldCipher{}, fmt.Errorf("field encrypt: generate iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	return FieldCipher{
		CipherText: base64.StdEncoding.EncodeToString(sealed),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt reverses Encrypt. It fails if the ciphertext was produced under
// a different key context or has been tampered with.
func (e *Encryptor) Decrypt(fc FieldCipher, keyContext string) (string, error) {
	aead, err := e.aead(keyContext)
	if err != nil {
		return "", err
	}

	iv, err := base64.StdEncoding.DecodeString(fc.IV)
	if err != nil {
		return "", fmt.Errorf("field decrypt: decode iv: %w", err)
	}
	if len(iv) != aead.NonceSize() {
		return "", fmt.Errorf("field decrypt: iv must be %d bytes, got %d", aead.NonceSize(), len(iv))
	}

	sealed, err := base64.StdEncoding.DecodeString(fc.CipherText)
	if err != nil {
		return "", fmt.Errorf("field decrypt: decode ciphertext: %w", err)
	}

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("field decrypt: %w", err)
	}
	return string(plaintext), nil
}
