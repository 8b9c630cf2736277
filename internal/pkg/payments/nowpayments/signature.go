package nowpayments

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingSignature means the IPN header was absent or empty.
	ErrMissingSignature = errors.New("missing ipn signature")
	// ErrInvalidSignature means the signature did not match the payload.
	ErrInvalidSignature = errors.New("invalid ipn signature")
)

// CanonicalJSON re-encodes a JSON document with deterministic, recursively
// sorted object keys. NOWPayments signs this canonical form, not the raw
// delivery bytes.
func CanonicalJSON(payload []byte) ([]byte, error) {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	// encoding/json sorts map keys lexically on marshal, recursing into
	// nested objects, which is exactly the canonical form the provider
	// computes.
	return json.Marshal(doc)
}

// VerifySignature checks the provider-supplied HMAC-SHA512 hex signature
// against the canonical payload form. The length check runs before the
// constant-time comparison, which requires equal-length inputs.
func VerifySignature(payload []byte, signatureHeader, ipnSecret string) error {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}

	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return fmt.Errorf("canonicalize payload: %w", err)
	}

	mac := hmac.New(sha512.New, []byte(ipnSecret))
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	if len(sig) != len(expected) {
		return ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(sig)), []byte(expected)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
