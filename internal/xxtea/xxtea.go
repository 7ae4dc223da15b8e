// Package xxtea unwraps XXTEA-encrypted code blobs. Encrypted inputs carry
// the plaintext length in the last word and, optionally, a signature that
// is prepended to the plaintext before encryption.
package xxtea

import (
	"bytes"
	"errors"

	"github.com/xxtea/xxtea-go/xxtea"
)

// KeySize is the number of key bytes the cipher uses. Shorter keys are
// zero padded, longer keys truncated.
const KeySize = 16

var (
	ErrEmpty             = errors.New("xxtea: empty data")
	ErrBadLength         = errors.New("xxtea: invalid length in data")
	ErrShortForSignature = errors.New("xxtea: decrypted data too short for signature")
	ErrSignatureMismatch = errors.New("xxtea: signature mismatch")
)

func fixKey(key []byte) []byte {
	k := make([]byte, KeySize)
	copy(k, key)
	return k
}

// Encrypt encrypts data with key.
func Encrypt(data, key []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return xxtea.Encrypt(data, fixKey(key)), nil
}

// Decrypt decrypts data with key. A wrong key almost always shows up as
// ErrBadLength because the embedded length no longer fits the block.
func Decrypt(data, key []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	out := xxtea.Decrypt(data, fixKey(key))
	if out == nil {
		return nil, ErrBadLength
	}
	return out, nil
}

// EncryptWithSignature prepends signature to data and encrypts the result.
func EncryptWithSignature(data, key, signature []byte) ([]byte, error) {
	if len(signature) == 0 {
		return Encrypt(data, key)
	}
	combined := make([]byte, 0, len(signature)+len(data))
	combined = append(combined, signature...)
	combined = append(combined, data...)
	return Encrypt(combined, key)
}

// DecryptWithSignature decrypts data, checks that the plaintext starts
// with signature and strips it.
func DecryptWithSignature(data, key, signature []byte) ([]byte, error) {
	out, err := Decrypt(data, key)
	if err != nil {
		return nil, err
	}
	if len(signature) == 0 {
		return out, nil
	}
	if len(out) < len(signature) {
		return nil, ErrShortForSignature
	}
	if !bytes.HasPrefix(out, signature) {
		return nil, ErrSignatureMismatch
	}
	return out[len(signature):], nil
}
