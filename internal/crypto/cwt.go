package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CWT emission for the downstream sync relay.
//
// The relay verifies a byte-exact COSE_Sign1 layout: CBOR tag 61 (CWT)
// wrapping tag 18 (COSE_Sign1) wrapping the 4-element array
// [protected bstr, unprotected map, payload bstr, signature bstr].
// The protected header carries only {1: -8} (alg: EdDSA), without a kid.
// The claims map carries exactly {1: iss, 6: iat, -80201: scope}, without
// exp or aud. The relay rejects any extra header entry or claim.

const (
	cwtCBORTag      = 61
	coseSign1Tag    = 18
	algEdDSA        = -8
	claimIssuer     = 1
	claimIssuedAt   = 6
	claimScope      = -80201
	ed25519SigBytes = 64
)

// CWTClaims is the claim set carried in a relay capability token.
type CWTClaims struct {
	Issuer   string `cbor:"1,keyasint"`
	IssuedAt int64  `cbor:"6,keyasint"`
	Scope    string `cbor:"-80201,keyasint"`
}

type coseProtected struct {
	Alg int64 `cbor:"1,keyasint"`
}

type coseSign1 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signature   []byte
}

// sigStructure is the canonical COSE Sig_structure for COSE_Sign1.
type sigStructure struct {
	_           struct{} `cbor:",toarray"`
	Context     string
	Protected   []byte
	ExternalAAD []byte
	Payload     []byte
}

// DocScope builds a scope string for a document capability:
// "doc:<doc_id>:rw" for write, "doc:<doc_id>:r" for read.
// doc_id is opaque; it is never parsed or path-checked here.
func DocScope(docID string, write bool) string {
	if write {
		return "doc:" + docID + ":rw"
	}
	return "doc:" + docID + ":r"
}

// MintCWT signs a relay capability token and returns it base64url-encoded
// without padding.
func MintCWT(priv ed25519.PrivateKey, issuer, scope string, now time.Time) (string, error) {
	protected, err := cbor.Marshal(coseProtected{Alg: algEdDSA})
	if err != nil {
		return "", fmt.Errorf("failed to encode protected header: %w", err)
	}

	payload, err := cbor.Marshal(CWTClaims{
		Issuer:   issuer,
		IssuedAt: now.Unix(),
		Scope:    scope,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}

	sigInput, err := cbor.Marshal(sigStructure{
		Context:     "Signature1",
		Protected:   protected,
		ExternalAAD: []byte{},
		Payload:     payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode sig structure: %w", err)
	}

	signature := ed25519.Sign(priv, sigInput)

	wrapped, err := cbor.Marshal(cbor.Tag{
		Number: cwtCBORTag,
		Content: cbor.Tag{
			Number: coseSign1Tag,
			Content: coseSign1{
				Protected:   protected,
				Unprotected: map[any]any{},
				Payload:     payload,
				Signature:   signature,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode cwt: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(wrapped), nil
}

// VerifyCWT decodes and verifies a token produced by MintCWT. It enforces the
// exact shape the relay requires: both tags present, a single protected header
// entry, an empty unprotected map, exactly three claims, and a valid Ed25519
// signature. Used by tests; the relay implements the same checks.
func VerifyCWT(pub ed25519.PublicKey, token string) (*CWTClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token encoding: %w", err)
	}

	var outer cbor.RawTag
	if err := cbor.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("invalid cwt envelope: %w", err)
	}
	if outer.Number != cwtCBORTag {
		return nil, fmt.Errorf("expected cwt tag %d, got %d", cwtCBORTag, outer.Number)
	}

	var inner cbor.RawTag
	if err := cbor.Unmarshal(outer.Content, &inner); err != nil {
		return nil, fmt.Errorf("invalid cose envelope: %w", err)
	}
	if inner.Number != coseSign1Tag {
		return nil, fmt.Errorf("expected cose_sign1 tag %d, got %d", coseSign1Tag, inner.Number)
	}

	var msg coseSign1
	if err := cbor.Unmarshal(inner.Content, &msg); err != nil {
		return nil, fmt.Errorf("invalid cose_sign1 structure: %w", err)
	}

	var header map[int64]int64
	if err := cbor.Unmarshal(msg.Protected, &header); err != nil {
		return nil, fmt.Errorf("invalid protected header: %w", err)
	}
	if len(header) != 1 || header[1] != algEdDSA {
		return nil, fmt.Errorf("protected header must be exactly {1: %d}", algEdDSA)
	}
	if len(msg.Unprotected) != 0 {
		return nil, fmt.Errorf("unprotected header must be empty")
	}
	if len(msg.Signature) != ed25519SigBytes {
		return nil, fmt.Errorf("signature must be %d bytes", ed25519SigBytes)
	}

	var claimKeys map[int64]cbor.RawMessage
	if err := cbor.Unmarshal(msg.Payload, &claimKeys); err != nil {
		return nil, fmt.Errorf("invalid claims: %w", err)
	}
	if len(claimKeys) != 3 {
		return nil, fmt.Errorf("claims must contain exactly iss, iat and scope")
	}
	for _, k := range []int64{claimIssuer, claimIssuedAt, claimScope} {
		if _, ok := claimKeys[k]; !ok {
			return nil, fmt.Errorf("missing claim %d", k)
		}
	}

	sigInput, err := cbor.Marshal(sigStructure{
		Context:     "Signature1",
		Protected:   msg.Protected,
		ExternalAAD: []byte{},
		Payload:     msg.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sig structure: %w", err)
	}
	if !ed25519.Verify(pub, sigInput, msg.Signature) {
		return nil, fmt.Errorf("signature verification failed")
	}

	var claims CWTClaims
	if err := cbor.Unmarshal(msg.Payload, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	return &claims, nil
}
