// internal/provider/wompi/verifier.go
package wompi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	xerrors "mesafacil-billing/internal/pkg/errors"

	"go.uber.org/zap"
)

// Verifier authenticates inbound Wompi webhook deliveries. Wompi signs the
// request body with HMAC-SHA256 using the merchant's events secret; the
// digest arrives in the `signature` or `x-signature` header.
type Verifier struct {
	secret     string
	production bool
	logger     *zap.Logger
}

func NewVerifier(secret string, production bool, logger *zap.Logger) *Verifier {
	return &Verifier{secret: secret, production: production, logger: logger}
}

// Verify checks the digest against the body exactly as received on the
// wire. The body must not be re-serialized from a parsed object: field
// ordering and whitespace differences would change the digest.
//
// When a secret is configured but no signature header arrived, production
// rejects; other environments log a warning and continue so development can
// run without signing infrastructure.
func (v *Verifier) Verify(rawBody []byte, signature string) error {
	if signature == "" {
		if v.production {
			v.logger.Error("wompi webhook rejected: missing signature header")
			return xerrors.ErrSignatureInvalid
		}
		v.logger.Warn("wompi webhook missing signature header, accepting in non-production environment")
		return nil
	}

	if v.secret == "" {
		if v.production {
			v.logger.Error("wompi webhook rejected: no events secret configured")
			return xerrors.ErrSignatureInvalid
		}
		v.logger.Warn("wompi events secret not configured, accepting unverified webhook in non-production environment")
		return nil
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return xerrors.ErrSignatureInvalid
	}
	return nil
}
