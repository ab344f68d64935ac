package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// KeyRole selects how a base64 key body is armored and parsed.
type KeyRole string

const (
	KeyRolePrivate KeyRole = "private"
	KeyRolePublic  KeyRole = "public"
)

const pemLineWidth = 64

// KeyMaterial is a parsed RSA key usable by the signature codec. It is
// immutable once loaded.
type KeyMaterial struct {
	role    KeyRole
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

func LoadPrivateKey(raw string) (*KeyMaterial, error) {
	return LoadKey(KeyRolePrivate, raw)
}

func LoadPublicKey(raw string) (*KeyMaterial, error) {
	return LoadKey(KeyRolePublic, raw)
}

// LoadKey wraps a PEM-less key body in the armor for role and parses it.
// Input that is already PEM armored is parsed as-is.
func LoadKey(role KeyRole, raw string) (*KeyMaterial, error) {
	role = KeyRole(strings.ToLower(strings.TrimSpace(string(role))))
	if role != KeyRolePrivate && role != KeyRolePublic {
		return nil, invalidKeyError("security: unsupported key role", nil, map[string]any{"role": string(role)})
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalidKeyError("security: key material is empty", nil, map[string]any{"role": string(role)})
	}

	armored := raw
	if !strings.Contains(raw, "-----BEGIN") {
		armored = armorKey(role, raw)
	}
	block, _ := pem.Decode([]byte(armored))
	if block == nil {
		return nil, invalidKeyError("security: key material is not valid PEM", nil, map[string]any{"role": string(role)})
	}

	switch role {
	case KeyRolePrivate:
		key, err := parsePrivateKey(block.Bytes)
		if err != nil {
			return nil, invalidKeyError("security: parse private key", err, map[string]any{"role": string(role)})
		}
		return &KeyMaterial{role: role, private: key, public: &key.PublicKey}, nil
	default:
		key, err := parsePublicKey(block.Bytes)
		if err != nil {
			return nil, invalidKeyError("security: parse public key", err, map[string]any{"role": string(role)})
		}
		return &KeyMaterial{role: role, public: key}, nil
	}
}

func (k *KeyMaterial) Role() KeyRole {
	if k == nil {
		return ""
	}
	return k.role
}

// Size returns the modulus length in bytes.
func (k *KeyMaterial) Size() int {
	if k == nil || k.public == nil {
		return 0
	}
	return k.public.Size()
}

func (k *KeyMaterial) canSign() bool {
	return k != nil && k.role == KeyRolePrivate && k.private != nil
}

func (k *KeyMaterial) canVerify() bool {
	return k != nil && k.public != nil && k.public.N != nil
}

func armorKey(role KeyRole, body string) string {
	label := "PUBLIC KEY"
	if role == KeyRolePrivate {
		label = "PRIVATE KEY"
	}
	body = strings.Join(strings.Fields(body), "")

	var b strings.Builder
	b.WriteString("-----BEGIN " + label + "-----\n")
	for len(body) > pemLineWidth {
		b.WriteString(body[:pemLineWidth])
		b.WriteByte('\n')
		body = body[pemLineWidth:]
	}
	if body != "" {
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteString("-----END " + label + "-----\n")
	return b.String()
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key type %T is not RSA", parsed)
		}
		return key, nil
	}
	return x509.ParsePKCS1PrivateKey(der)
}

func parsePublicKey(der []byte) (*rsa.PublicKey, error) {
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("key type %T is not RSA", parsed)
		}
		return key, nil
	}
	return x509.ParsePKCS1PublicKey(der)
}
