package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// Service provides field-level encryption for the application. It wraps a
// FieldEncryptor and adds a disabled mode for development environments
// where no master key is configured.
type Service struct {
	encryptor FieldEncryptor
	enabled   bool
}

// NewService creates the encryption service.
//
// If key is empty, encryption is disabled (development mode) and a warning
// is logged; Encrypt/Decrypt become pass-throughs. A non-empty key must be
// a 64-character hex string encoding a 32-byte master key, otherwise the
// application refuses to start.
func NewService(key string, logger zerolog.Logger) (*Service, error) {
	if key == "" {
		logger.Warn().Msg("field encryption disabled: ENCRYPTION_MASTER_KEY is not set")
		return &Service{enabled: false}, nil
	}

	keyBytes, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_MASTER_KEY is not valid hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_MASTER_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
	}

	enc, err := NewEncryptor(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("create field encryptor: %w", err)
	}

	logger.Info().Msg("field-level encryption enabled")
	return &Service{encryptor: enc, enabled: true}, nil
}

// Encryptor returns the underlying FieldEncryptor, or nil when disabled.
func (s *Service) Encryptor() FieldEncryptor {
	return s.encryptor
}

// IsEnabled reports whether encryption is active.
func (s *Service) IsEnabled() bool { return s.enabled }

// Encrypt encrypts a single field value. In disabled mode the value is
// returned unchanged with an empty IV.
func (s *Service) Encrypt(value, keyContext string) (FieldCipher, error) {
	if !s.enabled {
		return FieldCipher{CipherText: value}, nil
	}
	return s.encryptor.Encrypt(value, keyContext)
}

// Decrypt decrypts a single field value. In disabled mode the ciphertext
// is returned as-is.
func (s *Service) Decrypt(fc FieldCipher, keyContext string) (string, error) {
	if !s.enabled {
		return fc.CipherText, nil
	}
	return s.encryptor.Decrypt(fc, keyContext)
}
