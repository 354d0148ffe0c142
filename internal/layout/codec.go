package layout

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPayload indicates the wire form is not hex(iv):hex(ct).
	ErrMalformedPayload = errors.New("malformed layout payload")
	// ErrDecryptionFailed indicates the payload did not decrypt to a valid
	// layout. Wrong keys, tampered ciphertext and structurally invalid
	// plaintexts all land here; callers get no finer detail.
	ErrDecryptionFailed = errors.New("layout decryption failed")
)

// DeriveKey returns the per-session AES-256 key:
// SHA-256(serverSecret ∥ sessionID). Leaking one session's key never
// affects another.
func DeriveKey(serverSecret, sessionID string) []byte {
	sum := sha256.Sum256([]byte(serverSecret + sessionID))
	return sum[:]
}

// Encode encrypts a layout for transport: AES-256-CBC with PKCS#7 padding
// and a fresh random 16-byte IV, wire-encoded as hex(iv) + ":" + hex(ct).
func Encode(cards []int, key []byte) (string, error) {
	plaintext, err := json.Marshal(cards)
	if err != nil {
		return "", fmt.Errorf("marshal layout: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decode reverses Encode and validates the result against pairCount. The
// decoded layout is for rendering only; match outcomes are never decided
// from it.
func Decode(payload string, key []byte, pairCount int) ([]int, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrMalformedPayload
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrMalformedPayload
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, ErrMalformedPayload
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	var cards []int
	if err := json.Unmarshal(plain, &cards); err != nil {
		return nil, ErrDecryptionFailed
	}
	if !Valid(cards, pairCount) {
		return nil, ErrDecryptionFailed
	}
	return cards, nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
