package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

// RelayKeys holds the Ed25519 keypair used to sign relay capability tokens.
// Loaded once at startup; the private key never leaves process memory.
type RelayKeys struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
	KeyID   string
}

// LoadRelayKeys parses an Ed25519 private key from PEM (or base64-encoded
// PEM). When material is empty a fresh keypair is generated; callers should
// warn, since tokens then fail verification after a restart.
// keyID overrides the derived id when non-empty.
func LoadRelayKeys(material, keyID string) (*RelayKeys, bool, error) {
	if strings.TrimSpace(material) == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate ed25519 key: %w", err)
		}
		return newRelayKeys(priv, pub, keyID), true, nil
	}

	pemData := []byte(material)
	if !strings.Contains(material, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(material))
		if err != nil {
			return nil, false, fmt.Errorf("relay private key is neither PEM nor base64 PEM: %w", err)
		}
		pemData = decoded
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, false, fmt.Errorf("failed to parse PEM block containing the relay private key")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse relay private key: %w", err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, false, fmt.Errorf("relay private key is not an ed25519 key")
	}

	return newRelayKeys(priv, priv.Public().(ed25519.PublicKey), keyID), false, nil
}

func newRelayKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, keyID string) *RelayKeys {
	if keyID == "" {
		keyID = DeriveKeyID(pub)
	}
	return &RelayKeys{Private: priv, Public: pub, KeyID: keyID}
}

// DeriveKeyID returns a stable identifier for a public key:
// "relay_cp_" + first 8 bytes of SHA-256(pubkey), hex-encoded.
func DeriveKeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "relay_cp_" + hex.EncodeToString(sum[:8])
}

// MarshalPrivateKeyPEM encodes an Ed25519 private key as PKCS#8 PEM.
// Used by the keygen tool, never by the server.
func MarshalPrivateKeyPEM(priv ed25519.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	out := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return string(out), nil
}

// PublicKeyBase64 returns the raw public key bytes, base64-encoded, the way
// the relay's verifier expects to receive it from /keys/public.
func (k *RelayKeys) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.Public)
}
