// internal/provider/wompi/client.go
package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	xerrors "mesafacil-billing/internal/pkg/errors"
)

// Transaction statuses reported by Wompi.
const (
	StatusApproved        = "APPROVED"
	StatusApprovedPartial = "APPROVED_PARTIAL"
	StatusDeclined        = "DECLINED"
	StatusVoided          = "VOIDED"
	StatusError           = "ERROR"
	StatusPending         = "PENDING"
)

// Client talks to the Wompi REST API. Card tokenization uses the public
// key; transaction creation and lookup use the private (secret) key as a
// bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	publicKey  string
	privateKey string
}

func NewClient(baseURL, publicKey, privateKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    baseURL,
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

type Transaction struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	FinalizedAt   string `json:"finalized_at"`
}

type transactionEnvelope struct {
	Data Transaction `json:"data"`
}

type CardToken struct {
	ID string `json:"id"`
}

type cardTokenEnvelope struct {
	Data   CardToken `json:"data"`
	Status string    `json:"status"`
}

type CardDetails struct {
	Number   string `json:"number"`
	CVC      string `json:"cvc"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	Holder   string `json:"card_holder"`
}

// TokenizeCard exchanges raw card details for a single-use payment token.
func (c *Client) TokenizeCard(ctx context.Context, card CardDetails) (string, error) {
	body, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("marshal card details: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens/cards", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.publicKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: tokenize card: %v", xerrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.apiError("tokenize card", resp)
	}

	var result cardTokenEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode tokenize response: %w", err)
	}
	return result.Data.ID, nil
}

// CreateTransactionInput carries everything Wompi needs to run a charge.
type CreateTransactionInput struct {
	AmountInCents  int64
	Currency       string
	CustomerEmail  string
	Reference      string
	PaymentToken   string
	InstallmentNum int
}

// CreateTransaction runs a charge. The returned transaction may still be
// PENDING: sandbox settlement can lag the synchronous response, so callers
// should re-check status before treating PENDING as a failure.
func (c *Client) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*Transaction, error) {
	installments := in.InstallmentNum
	if installments < 1 {
		installments = 1
	}

	payload := map[string]interface{}{
		"amount_in_cents": in.AmountInCents,
		"currency":        in.Currency,
		"customer_email":  in.CustomerEmail,
		"reference":       in.Reference,
		"payment_method": map[string]interface{}{
			"type":         "CARD",
			"token":        in.PaymentToken,
			"installments": installments,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.privateKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: create transaction: %v", xerrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError("create transaction", resp)
	}

	var result transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode transaction response: %w", err)
	}
	return &result.Data, nil
}

// GetTransaction looks up the current status of a transaction.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transactions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.privateKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction: %v", xerrors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError("get transaction", resp)
	}

	var result transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode transaction response: %w", err)
	}
	return &result.Data, nil
}

// apiError maps an HTTP failure to the billing error taxonomy: client-side
// rejections surface as charge errors, everything else as provider
// unavailability.
func (c *Client) apiError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %s: wompi %d: %s", xerrors.ErrChargeRejected, op, resp.StatusCode, string(b))
	}
	return fmt.Errorf("%w: %s: wompi %d: %s", xerrors.ErrProviderUnavailable, op, resp.StatusCode, string(b))
}

// Settled reports whether a status is a confirmed successful settlement.
func Settled(status string) bool {
	return status == StatusApproved || status == StatusApprovedPartial
}
