package security

import (
	"crypto"
	"crypto/rsa"
	"errors"
	"math/big"
)

const (
	// maxSignChunk matches the plaintext block the gateway uses for its
	// 1024-bit keys.
	maxSignChunk     = 117
	pkcs1Overhead    = 11
	minPaddingLength = 8
)

var (
	errKeyTooSmall     = errors.New("security: key too small for PKCS#1 v1.5")
	errBlockOutOfRange = errors.New("security: ciphertext block out of range")
	errBadPadding      = errors.New("security: invalid PKCS#1 type 1 padding")
)

func signChunkSize(k int) int {
	size := k - pkcs1Overhead
	if size > maxSignChunk {
		size = maxSignChunk
	}
	return size
}

// privateEncrypt applies PKCS#1 v1.5 type 1 padding and the private key
// operation to every chunk of payload, concatenating the ciphertexts.
func privateEncrypt(key *rsa.PrivateKey, payload []byte) ([]byte, error) {
	k := key.Size()
	chunk := signChunkSize(k)
	if chunk <= 0 {
		return nil, errKeyTooSmall
	}
	if len(payload) == 0 {
		out, err := rsa.SignPKCS1v15(nil, key, crypto.Hash(0), payload)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	out := make([]byte, 0, ((len(payload)+chunk-1)/chunk)*k)
	for start := 0; start < len(payload); start += chunk {
		end := start + chunk
		if end > len(payload) {
			end = len(payload)
		}
		block, err := rsa.SignPKCS1v15(nil, key, crypto.Hash(0), payload[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

// publicDecrypt reverses privateEncrypt. Each k-byte block is raised to the
// public exponent and its type 1 padding is stripped.
func publicDecrypt(key *rsa.PublicKey, ciphertext []byte) ([]byte, error) {
	k := key.Size()
	if k < pkcs1Overhead || len(ciphertext) == 0 || len(ciphertext)%k != 0 {
		return nil, errBlockOutOfRange
	}

	exponent := big.NewInt(int64(key.E))
	out := make([]byte, 0, len(ciphertext))
	for start := 0; start < len(ciphertext); start += k {
		c := new(big.Int).SetBytes(ciphertext[start : start+k])
		if c.Sign() <= 0 || c.Cmp(key.N) >= 0 {
			return nil, errBlockOutOfRange
		}
		m := new(big.Int).Exp(c, exponent, key.N)
		em := m.FillBytes(make([]byte, k))
		plain, err := unpadType1(em)
		if err != nil {
			return nil, err
		}
		out = append(out, plain...)
	}
	return out, nil
}

func unpadType1(em []byte) ([]byte, error) {
	if len(em) < pkcs1Overhead || em[0] != 0x00 || em[1] != 0x01 {
		return nil, errBadPadding
	}
	i := 2
	for i < len(em) && em[i] == 0xFF {
		i++
	}
	if i == len(em) || em[i] != 0x00 || i-2 < minPaddingLength {
		return nil, errBadPadding
	}
	return em[i+1:], nil
}
