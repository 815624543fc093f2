package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// Codec encrypts message bodies at rest with AES-256-CBC. Each value is
// stored as "keyID:iv_hex:ciphertext_hex" so the key can be rotated by
// adding a ring entry and switching the active id. Values written before
// key ids ("iv_hex:ciphertext_hex") decrypt under the primary key, and
// anything with fewer than two colon-delimited parts is treated as a
// legacy plaintext record and passed through untouched.
type Codec struct {
	ring     map[string][]byte
	activeID string
}

const keySize = 32

var errMalformed = errors.New("malformed ciphertext")

func NewCodec(secret string, keyID string) (*Codec, error) {
	if len(secret) != keySize {
		return nil, errors.New("message secret must be exactly 32 bytes")
	}
	if keyID == "" || strings.Contains(keyID, ":") {
		return nil, errors.New("invalid key id")
	}
	return &Codec{
		ring:     map[string][]byte{keyID: []byte(secret)},
		activeID: keyID,
	}, nil
}

// AddKey registers an additional decryption key under the given id.
// The active encryption key is unchanged.
func (c *Codec) AddKey(keyID string, secret string) error {
	if len(secret) != keySize {
		return errors.New("message secret must be exactly 32 bytes")
	}
	if keyID == "" || strings.Contains(keyID, ":") {
		return errors.New("invalid key id")
	}
	c.ring[keyID] = []byte(secret)
	return nil
}

// Encrypt encrypts plaintext under the active key with a fresh random IV.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	key := c.ring[c.activeID]
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return c.activeID + ":" + hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt recovers the plaintext for a stored value. It never fails:
// legacy plaintext records and undecryptable values come back unchanged,
// and the caller decides how to present a value it cannot read.
func (c *Codec) Decrypt(stored string) string {
	parts := strings.SplitN(stored, ":", 3)
	if len(parts) < 2 {
		return stored
	}

	if len(parts) == 3 {
		if key, ok := c.ring[parts[0]]; ok {
			if plaintext, err := decryptWith(key, parts[1], parts[2]); err == nil {
				return plaintext
			}
			return stored
		}
	}

	// No key id prefix: pre-versioning record, first segment is the IV.
	rest := stored[len(parts[0])+1:]
	if plaintext, err := decryptWith(c.ring[c.activeID], parts[0], rest); err == nil {
		return plaintext
	}
	return stored
}

func decryptWith(key []byte, ivHex, ciphertextHex string) (string, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", errMalformed
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errMalformed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) (string, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return "", errMalformed
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return "", errMalformed
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return "", errMalformed
		}
	}
	return string(data[:len(data)-padding]), nil
}
