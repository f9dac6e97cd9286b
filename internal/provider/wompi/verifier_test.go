// internal/provider/wompi/verifier_test.go
package wompi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	xerrors "mesafacil-billing/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifier_ValidSignature(t *testing.T) {
	body := []byte(`{"event":"transaction.updated","data":{"transaction":{"id":"trx-1"}}}`)
	v := NewVerifier("events-secret", true, zap.NewNop())

	assert.NoError(t, v.Verify(body, sign("events-secret", body)))
}

func TestVerifier_UppercaseSignatureAccepted(t *testing.T) {
	body := []byte(`{"event":"transaction.updated"}`)
	v := NewVerifier("events-secret", true, zap.NewNop())

	assert.NoError(t, v.Verify(body, strings.ToUpper(sign("events-secret", body))))
}

func TestVerifier_TamperedBodyRejected(t *testing.T) {
	body := []byte(`{"event":"transaction.updated","amount":100}`)
	v := NewVerifier("events-secret", false, zap.NewNop())
	signature := sign("events-secret", body)

	// flip one byte after signing
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] = '9'

	assert.ErrorIs(t, v.Verify(tampered, signature), xerrors.ErrSignatureInvalid)
}

func TestVerifier_WrongSecretRejected(t *testing.T) {
	body := []byte(`{"event":"transaction.updated"}`)
	v := NewVerifier("events-secret", true, zap.NewNop())

	assert.ErrorIs(t, v.Verify(body, sign("other-secret", body)), xerrors.ErrSignatureInvalid)
}

func TestVerifier_MissingSignature(t *testing.T) {
	body := []byte(`{}`)

	prod := NewVerifier("events-secret", true, zap.NewNop())
	assert.ErrorIs(t, prod.Verify(body, ""), xerrors.ErrSignatureInvalid)

	dev := NewVerifier("events-secret", false, zap.NewNop())
	assert.NoError(t, dev.Verify(body, ""), "non-production accepts and warns")
}

func TestVerifier_MissingSecret(t *testing.T) {
	body := []byte(`{}`)
	signature := sign("whatever", body)

	prod := NewVerifier("", true, zap.NewNop())
	assert.ErrorIs(t, prod.Verify(body, signature), xerrors.ErrSignatureInvalid)

	dev := NewVerifier("", false, zap.NewNop())
	assert.NoError(t, dev.Verify(body, signature))
}
