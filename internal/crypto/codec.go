package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Codec provides encryption and decryption for customer PII.
// Used to encrypt billing address fields before storing in database.
// Uses AES-256-GCM for authenticated encryption.
type Codec interface {
	// Encrypt encrypts plaintext and returns a blob of the form
	// iv:authTag:ciphertext with each segment hex-encoded.
	Encrypt(plaintext string) (string, error)

	// Decrypt decrypts a blob produced by Encrypt. Decryption never fails
	// into the caller: a malformed blob or a bad authentication tag yields
	// an empty string and a log entry, so one corrupt row cannot take down
	// a whole invoice.
	Decrypt(blob string) string

	// EncryptPostalCode encrypts a postal code, compressing digit-only
	// codes to a hex integer first.
	EncryptPostalCode(code string) (string, error)

	// DecryptPostalCode reverses EncryptPostalCode, zero-padding recovered
	// numeric codes back to at least five digits.
	DecryptPostalCode(blob string) string
}

const (
	keyBytes   = 32 // AES-256
	nonceBytes = 12
	tagBytes   = 16
)

// AESCodec implements Codec using AES-256-GCM. The key is supplied as a
// 64-character hex string and validated at startup; a service with a bad key
// must not boot into silently unreadable PII.
type AESCodec struct {
	aead   cipher.AEAD
	logger *slog.Logger
}

// NewAESCodec creates an AES-256-GCM codec from a hex-encoded 32-byte key.
func NewAESCodec(hexKey string, logger *slog.Logger) (*AESCodec, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("encryption key must be %d bytes (%d hex chars), got %d bytes", keyBytes, keyBytes*2, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &AESCodec{aead: aead, logger: logger}, nil
}

// Encrypt encrypts plaintext into an iv:authTag:ciphertext blob.
// Empty input stays empty so optional address fields round-trip cleanly.
func (c *AESCodec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, nonceBytes)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends ciphertext+tag; split the tag back out for the blob.
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-tagBytes]
	tag := sealed[len(sealed)-tagBytes:]

	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	), nil
}

// Decrypt reverses Encrypt. Any failure degrades to "".
func (c *AESCodec) Decrypt(blob string) string {
	if blob == "" {
		return ""
	}

	parts := strings.Split(blob, ":")
	if len(parts) != 3 {
		c.warn("malformed blob", "segments", len(parts))
		return ""
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceBytes {
		c.warn("bad nonce segment", "err", err)
		return ""
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagBytes {
		c.warn("bad tag segment", "err", err)
		return ""
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		c.warn("bad ciphertext segment", "err", err)
		return ""
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		c.warn("authentication failed", "err", err)
		return ""
	}
	return string(plaintext)
}

// EncryptPostalCode compresses digit-only postal codes to a hex integer
// before encryption; alphanumeric codes pass through unchanged.
func (c *AESCodec) EncryptPostalCode(code string) (string, error) {
	if isDigits(code) {
		n, err := strconv.ParseUint(code, 10, 64)
		if err != nil {
			// Too long to compress; store as-is.
			return c.Encrypt(code)
		}
		return c.Encrypt(strconv.FormatUint(n, 16))
	}
	return c.Encrypt(code)
}

// DecryptPostalCode reverses EncryptPostalCode. Recovered hex integers are
// zero-padded back to at least five digits; real-world alphanumeric codes
// contain uppercase letters or spaces, so they never parse as lowercase hex.
func (c *AESCodec) DecryptPostalCode(blob string) string {
	plain := c.Decrypt(blob)
	if plain == "" {
		return ""
	}
	if isLowerHex(plain) {
		n, err := strconv.ParseUint(plain, 16, 64)
		if err == nil {
			return fmt.Sprintf("%05d", n)
		}
	}
	return plain
}

func (c *AESCodec) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn("pii decrypt failed: "+msg, args...)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLowerHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
