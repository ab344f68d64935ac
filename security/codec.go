package security

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// Sign canonicalizes fields without the sign field and signs the payload in
// chunks with the private key. The result is base64 encoded.
func Sign(fields map[string]any, key *KeyMaterial) (string, error) {
	if !key.canSign() {
		return "", signingError("security: signing requires a private key", nil, map[string]any{"role": string(key.Role())})
	}
	payload := Canonicalize(fields, signExcluded...)
	ciphertext, err := privateEncrypt(key.private, payload)
	if err != nil {
		return "", signingError("security: private key operation failed", err, map[string]any{
			"payload_bytes": len(payload),
			"key_bytes":     key.Size(),
		})
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Verify reports whether signature matches fields under key. Any decoding or
// key failure yields false.
func Verify(signature string, fields map[string]any, key *KeyMaterial) bool {
	if !key.canVerify() {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	ciphertext, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	recovered, err := publicDecrypt(key.public, ciphertext)
	if err != nil {
		return false
	}
	expected := Canonicalize(fields, verifyExcluded...)
	if len(recovered) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(recovered, expected) == 1
}

// Codec pairs the merchant signing key with the key used to verify gateway
// signatures.
type Codec struct {
	signing      *KeyMaterial
	verification *KeyMaterial
}

func NewCodec(signing, verification *KeyMaterial) *Codec {
	return &Codec{signing: signing, verification: verification}
}

// NewCodecFromStrings loads both keys from their PEM-less bodies. The
// verification key is optional; when empty only signing is available.
func NewCodecFromStrings(privateKey, publicKey string) (*Codec, error) {
	codec := &Codec{}
	if strings.TrimSpace(privateKey) != "" {
		signing, err := LoadPrivateKey(privateKey)
		if err != nil {
			return nil, err
		}
		codec.signing = signing
	}
	if strings.TrimSpace(publicKey) != "" {
		verification, err := LoadPublicKey(publicKey)
		if err != nil {
			return nil, err
		}
		codec.verification = verification
	}
	return codec, nil
}

func (c *Codec) Sign(fields map[string]any) (string, error) {
	if c == nil {
		return Sign(fields, nil)
	}
	return Sign(fields, c.signing)
}

func (c *Codec) Verify(signature string, fields map[string]any) bool {
	if c == nil {
		return false
	}
	return Verify(signature, fields, c.verification)
}

func (c *Codec) CanSign() bool {
	return c != nil && c.signing.canSign()
}

func (c *Codec) CanVerify() bool {
	return c != nil && c.verification.canVerify()
}
