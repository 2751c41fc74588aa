package ssi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestRequestSigner_SignProducesVerifiableSignature(t *testing.T) {
	key := testKey(t)
	signer := NewRequestSigner(key)

	body := []byte(`{"symbol":"FPT"}`)
	sig, ts, err := signer.Sign("POST", "/orders", body)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	assert.NotEmpty(t, ts)

	bodyDigest := sha256.Sum256(body)
	canonical := fmt.Sprintf("%s\n%s\n%s\n%s", ts, "POST", "/orders", hex.EncodeToString(bodyDigest[:]))
	digest := sha256.Sum256([]byte(canonical))
	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], raw))
}

func TestSignSortedPayload_IsOrderIndependent(t *testing.T) {
	key := testKey(t)

	sigA, err := signSortedPayload(key, map[string]string{"a": "1", "b": "2"})
	require.NoError(t, err)
	sigB, err := signSortedPayload(key, map[string]string{"b": "2", "a": "1"})
	require.NoError(t, err)

	assert.Equal(t, sigA, sigB, "canonicalization must be insensitive to Go map iteration order")
}
