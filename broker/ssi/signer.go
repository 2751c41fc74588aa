package ssi

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// RequestSigner signs every outbound order/query request with RSA-SHA256
// over a canonical message, independent of the one-time session auth in
// auth.go. The broker protocol uses RSA for both occasions (spec.md
// §4.7/§6); see DESIGN.md for the reconciliation with the two divergent
// original implementations this was grounded on.
type RequestSigner struct {
	key *rsa.PrivateKey
}

func NewRequestSigner(key *rsa.PrivateKey) *RequestSigner {
	return &RequestSigner{key: key}
}

// Sign produces the base64 RSA-SHA256 signature over
// "timestamp\nMETHOD\npath\nsha256_hex(body)".
func (s *RequestSigner) Sign(method, path string, body []byte) (signature, timestamp string, err error) {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	bodyDigest := sha256.Sum256(body)
	canonical := fmt.Sprintf("%s\n%s\n%s\n%s", ts, method, path, hex.EncodeToString(bodyDigest[:]))

	msgDigest := sha256.Sum256([]byte(canonical))
	sig, err := rsa.SignPKCS1v15(nil, s.key, crypto.SHA256, msgDigest[:])
	if err != nil {
		return "", "", fmt.Errorf("ssi: sign request: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), ts, nil
}
