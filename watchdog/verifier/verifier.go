package verifier

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

// Scheme names the signature algorithm a price source signs with.
type Scheme string

const (
	SchemeEd25519   Scheme = "ed25519"
	SchemeSecp256k1 Scheme = "secp256k1"
)

// ParseScheme is case insensitive.
func ParseScheme(s string) (Scheme, error) {
	switch scheme := Scheme(strings.ToLower(strings.TrimSpace(s))); scheme {
	case SchemeEd25519, SchemeSecp256k1:
		return scheme, nil
	default:
		return "", fmt.Errorf("unsupported signing scheme %q", s)
	}
}

// Verify checks freshness and authenticity of a single reading.
// A reading is fresh while now - timestamp is strictly below maxAge.
func Verify(reading types.RawPriceReading, identity types.OracleIdentity, now time.Time, maxAge time.Duration, scheme Scheme) types.SourceVote {
	return types.SourceVote{
		Source:         reading.Source,
		TimestampValid: VerifyTimestamp(reading.Timestamp, now, maxAge),
		SignatureValid: VerifySignature(reading.Payload, reading.Signature, identity.PubKeys, scheme),
	}
}

func VerifyTimestamp(timestamp int64, now time.Time, maxAge time.Duration) bool {
	return now.Sub(time.Unix(timestamp, 0)) < maxAge
}

// VerifySignature reports whether sig verifies against any of the keys.
func VerifySignature(payload, sig []byte, pubKeys [][]byte, scheme Scheme) bool {
	var verify func(pub, payload, sig []byte) bool
	switch scheme {
	case SchemeEd25519:
		verify = verifyEd25519
	case SchemeSecp256k1:
		verify = verifySecp256k1
	default:
		return false
	}

	for _, pub := range pubKeys {
		if verify(pub, payload, sig) {
			return true
		}
	}

	return false
}

func verifyEd25519(pub, payload, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), payload, sig)
}

// verifySecp256k1 expects R||S, optionally followed by the recovery byte,
// over keccak256 of the payload.
func verifySecp256k1(pub, payload, sig []byte) bool {
	if len(pub) != 33 && len(pub) != 65 {
		return false
	}
	if len(sig) == 65 {
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false
	}

	return crypto.VerifySignature(pub, crypto.Keccak256(payload), sig)
}
