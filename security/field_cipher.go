package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

const (
	keySize = 32
	ivSize  = aes.BlockSize
)

// ConfigError reports missing or malformed key material. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cipher config: %s %s", e.Field, e.Reason)
}

// DecryptError reports a ciphertext that could not be opened with the configured key.
type DecryptError struct {
	Reason string
}

func (e *DecryptError) Error() string {
	return "decrypt: " + e.Reason
}

// FieldCipher encrypts individual record fields with AES-256-CBC.
//
// The IV is fixed for the lifetime of the key, so equal plaintexts produce
// equal ciphertexts. Lookups never rely on that: identifiers are located
// through HashIdentifier.
type FieldCipher struct {
	block cipher.Block
	iv    []byte
}

// NewFieldCipher builds a cipher from hex-encoded key (32 bytes) and IV (16 bytes).
func NewFieldCipher(keyHex, ivHex string) (*FieldCipher, error) {
	if keyHex == "" {
		return nil, &ConfigError{Field: "AES_KEY_HEX", Reason: "is not set"}
	}
	if ivHex == "" {
		return nil, &ConfigError{Field: "AES_IV_HEX", Reason: "is not set"}
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, &ConfigError{Field: "AES_KEY_HEX", Reason: "is not valid hex"}
	}
	if len(key) != keySize {
		return nil, &ConfigError{Field: "AES_KEY_HEX", Reason: fmt.Sprintf("must decode to %d bytes, got %d", keySize, len(key))}
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, &ConfigError{Field: "AES_IV_HEX", Reason: "is not valid hex"}
	}
	if len(iv) != ivSize {
		return nil, &ConfigError{Field: "AES_IV_HEX", Reason: fmt.Sprintf("must decode to %d bytes, got %d", ivSize, len(iv))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &ConfigError{Field: "AES_KEY_HEX", Reason: err.Error()}
	}

	return &FieldCipher{block: block, iv: iv}, nil
}

// Encrypt returns the base64 ciphertext of plaintext.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.block == nil {
		return "", &ConfigError{Field: "cipher", Reason: "is not configured"}
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *FieldCipher) Decrypt(ciphertext string) (string, error) {
	if c == nil || c.block == nil {
		return "", &ConfigError{Field: "cipher", Reason: "is not configured"}
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptError{Reason: "ciphertext is not valid base64"}
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", &DecryptError{Reason: "ciphertext length is not a multiple of the block size"}
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", &DecryptError{Reason: "plaintext is not valid UTF-8"}
	}
	return string(plain), nil
}

// Decrypted is the outcome of opening one stored field.
type Decrypted struct {
	Value string
	Err   error
}

// Ok reports whether the field was decrypted.
func (d Decrypted) Ok() bool { return d.Err == nil }

// Or returns the plaintext, or fallback when decryption failed.
func (d Decrypted) Or(fallback string) string {
	if d.Err != nil {
		return fallback
	}
	return d.Value
}

// Open decrypts a field and captures the failure instead of returning it.
func (c *FieldCipher) Open(ciphertext string) Decrypted {
	v, err := c.Decrypt(ciphertext)
	return Decrypted{Value: v, Err: err}
}

// HashIdentifier returns the lowercase hex SHA-256 digest used as a lookup key.
func HashIdentifier(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, &DecryptError{Reason: "bad padding"}
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, &DecryptError{Reason: "bad padding"}
		}
	}
	return data[:len(data)-n], nil
}
