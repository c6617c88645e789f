// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// crypto.go — snapshot sealer: authenticated encryption for exported
// clock state. Sealed payloads carry a magic prefix so ImportState can
// tell an encrypted snapshot from a plaintext one and fail with a clear
// error when the key is missing.

package tempo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// snapshotMagic prefixes every sealed payload: "TSS" + format version.
// Layout after the prefix: nonce || ciphertext+tag.
var snapshotMagic = []byte("TSS1")

// sealer wraps an AES-256-GCM AEAD constructed once from the configured
// key.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be exactly 32 bytes (got %d)",
			ErrInvalidConfig, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &sealer{aead: aead}, nil
}

// sealed reports whether data carries the sealed-snapshot prefix.
func sealed(data []byte) bool {
	return bytes.HasPrefix(data, snapshotMagic)
}

// seal encrypts a snapshot payload. Snapshots are tiny (tens of bytes),
// so the random nonce read is the only operation that can fail, and only
// on platforms without a usable entropy source.
func (s *sealer) seal(plain []byte) ([]byte, error) {
	out := make([]byte, len(snapshotMagic), len(snapshotMagic)+s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	copy(out, snapshotMagic)
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("tempo: snapshot nonce: %w", err)
	}
	out = append(out, nonce...)
	return s.aead.Seal(out, nonce, plain, snapshotMagic), nil
}

// open decrypts a payload produced by seal. Truncated, tampered, or
// wrong-key payloads all surface as ErrInvalidSnapshot.
func (s *sealer) open(data []byte) ([]byte, error) {
	body := data[len(snapshotMagic):]
	if len(body) < s.aead.NonceSize() {
		return nil, fmt.Errorf("%w: sealed payload truncated", ErrInvalidSnapshot)
	}
	nonce, ct := body[:s.aead.NonceSize()], body[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, snapshotMagic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return plain, nil
}
