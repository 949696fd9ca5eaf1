package verifier

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

func TestVerifyTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	maxAge := 180 * time.Second

	testCases := []struct {
		name      string
		timestamp int64
		valid     bool
	}{
		{"fresh", now.Unix() - 10, true},
		{"one second before the window", now.Unix() - 179, true},
		{"exactly at the window", now.Unix() - 180, false},
		{"stale", now.Unix() - 600, false},
		{"from the future", now.Unix() + 30, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.valid, VerifyTimestamp(tc.timestamp, now, maxAge))
		})
	}
}

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload := []byte("prices:ton=5.12,usdt=1.00")
	sig := ed25519.Sign(priv, payload)

	require.True(t, VerifySignature(payload, sig, [][]byte{pub}, SchemeEd25519))
	// any registered key is enough
	require.True(t, VerifySignature(payload, sig, [][]byte{otherPub, pub}, SchemeEd25519))
	require.False(t, VerifySignature(payload, sig, [][]byte{otherPub}, SchemeEd25519))
	require.False(t, VerifySignature([]byte("tampered"), sig, [][]byte{pub}, SchemeEd25519))
	require.False(t, VerifySignature(payload, sig[:10], [][]byte{pub}, SchemeEd25519))
	require.False(t, VerifySignature(payload, sig, nil, SchemeEd25519))
}

func TestVerifySecp256k1(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	payload := []byte("prices:ton=5.12")
	sig, err := crypto.Sign(crypto.Keccak256(payload), key)
	require.NoError(t, err)

	uncompressed := crypto.FromECDSAPub(&key.PublicKey)
	compressed := crypto.CompressPubkey(&key.PublicKey)

	require.True(t, VerifySignature(payload, sig, [][]byte{uncompressed}, SchemeSecp256k1))
	require.True(t, VerifySignature(payload, sig[:64], [][]byte{compressed}, SchemeSecp256k1))
	require.False(t, VerifySignature([]byte("other"), sig, [][]byte{uncompressed}, SchemeSecp256k1))

	// an ed25519 sized key is skipped rather than rejected loudly
	require.False(t, VerifySignature(payload, sig, [][]byte{make([]byte, 32)}, SchemeSecp256k1))
}

func TestVerifyUnknownScheme(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	payload := []byte("x")
	require.False(t, VerifySignature(payload, ed25519.Sign(priv, payload), [][]byte{pub}, Scheme("rsa")))
}

func TestVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	payload := []byte("payload")
	identity := types.OracleIdentity{Address: "EQoracle", PubKeys: [][]byte{pub}}

	vote := Verify(types.RawPriceReading{
		Source:    "iota",
		Timestamp: now.Unix() - 5,
		Payload:   payload,
		Signature: ed25519.Sign(priv, payload),
	}, identity, now, time.Minute, SchemeEd25519)
	require.Equal(t, types.SourceVote{Source: "iota", TimestampValid: true, SignatureValid: true}, vote)
	require.True(t, vote.Confirms())

	vote = Verify(types.RawPriceReading{
		Source:    "icp",
		Timestamp: now.Unix() - 60,
		Payload:   payload,
		Signature: make([]byte, ed25519.SignatureSize),
	}, identity, now, time.Minute, SchemeEd25519)
	require.False(t, vote.TimestampValid)
	require.False(t, vote.SignatureValid)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme(" Ed25519 ")
	require.NoError(t, err)
	require.Equal(t, SchemeEd25519, s)

	s, err = ParseScheme("secp256k1")
	require.NoError(t, err)
	require.Equal(t, SchemeSecp256k1, s)

	_, err = ParseScheme("bls")
	require.Error(t, err)
}
