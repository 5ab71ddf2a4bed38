package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPayload means the payload could not even be unframed
	// (bad base64, or too short to carry an IV).
	ErrMalformedPayload = errors.New("malformed gateway payload")
	// ErrDecryptionFailed means the cipher rejected the ciphertext.
	ErrDecryptionFailed = errors.New("gateway payload decryption failed")
)

// Encrypt encrypts plaintext with AES-128-CBC under the hex-encoded key and
// returns base64(IV || ciphertext). A fresh random IV is generated per call.
func Encrypt(plaintext, keyHex string) (string, error) {
	block, err := newCipher(keyHex)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt reverses Encrypt: base64-decode, split the leading IV, decrypt and
// unpad. Framing problems map to ErrMalformedPayload, cipher problems to
// ErrDecryptionFailed.
func Decrypt(payload, keyHex string) (string, error) {
	block, err := newCipher(keyHex)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
	}
	if len(raw) < aes.BlockSize {
		return "", fmt.Errorf("%w: payload shorter than iv", ErrMalformedPayload)
	}

	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d not block aligned", ErrDecryptionFailed, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(unpadded), nil
}

// ExtractXML locates the first "<?xml" occurrence and discards everything
// before it. The gateway is observed to prepend binary garbage to decrypted
// responses, so this is a required step, not cleanup.
func ExtractXML(plaintext string) (string, bool) {
	idx := strings.Index(plaintext, "<?xml")
	if idx < 0 {
		return "", false
	}
	return plaintext[idx:], true
}

func newCipher(keyHex string) (cipher.Block, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway key: %w", err)
	}
	return block, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
