package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	paymentdm "github.com/frahmantamala/invoice-payments/internal/core/datamodel/payment"
)

const (
	defaultName        = "paystack"
	defaultTimeout     = 20 * time.Second
	defaultBackoff     = 250 * time.Millisecond
	maxResponseBytes   = 1 << 20
	defaultVerifyTries = 3
)

var ErrNotConfigured = errors.New("payment gateway credentials are not configured")

// APIError is a response the gateway produced but did not accept.
type APIError struct {
	HTTPStatus int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.HTTPStatus, e.Message)
}

// Retryable reports whether repeating the same idempotent call may succeed.
func (e *APIError) Retryable() bool {
	return e.HTTPStatus >= http.StatusInternalServerError || e.HTTPStatus == http.StatusTooManyRequests
}

type Config struct {
	Name             string
	BaseURL          string
	SecretKey        string
	CallbackURL      string
	Timeout          time.Duration
	VerifyMaxRetries uint64
	VerifyBackoff    time.Duration
}

type Client struct {
	name        string
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
	maxRetries  uint64
	backoff     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	backoff := config.VerifyBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	maxRetries := config.VerifyMaxRetries
	if maxRetries == 0 {
		maxRetries = defaultVerifyTries
	}

	name := config.Name
	if name == "" {
		name = defaultName
	}

	return &Client{
		name:        name,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		secretKey:   config.SecretKey,
		callbackURL: config.CallbackURL,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		backoff:     backoff,
		logger:      logger,
		now:         time.Now,
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != "" && c.secretKey != ""
}

// Charge asks the gateway to debit a mobile-money wallet. It is not idempotent
// on the gateway side and is therefore sent exactly once.
func (c *Client) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	payload := chargePayload{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: c.callbackURL,
		MobileMoney: mobileMoneyPayload{
			Phone:    req.Phone,
			Provider: req.Provider,
		},
		Metadata: req.Metadata,
	}

	c.logger.Info("gateway: sending charge",
		"reference", req.Reference,
		"amount_minor", req.AmountMinor,
		"provider", req.Provider)

	raw, err := c.do(ctx, http.MethodPost, "/charge", payload)
	if err != nil {
		return nil, err
	}

	var resp envelopeResponse[chargeData]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode charge response: %w", err)
	}
	if !resp.Status {
		return nil, &APIError{HTTPStatus: http.StatusOK, Message: resp.Message}
	}

	reference := resp.Data.Reference
	if reference == "" {
		reference = req.Reference
	}

	result := &ChargeResult{
		Reference:     reference,
		Status:        TranslateStatus(resp.Data.Status),
		GatewayStatus: resp.Data.Status,
		Message:       resp.Message,
		DisplayText:   resp.Data.DisplayText,
		USSDCode:      resp.Data.USSDCode,
		Data:          resp.Data.raw(raw),
		Envelope:      c.envelope(paymentdm.OperationCharge, resp.Data.Status, raw),
	}

	c.logger.Info("gateway: charge accepted",
		"reference", result.Reference,
		"gateway_status", result.GatewayStatus,
		"status", result.Status)

	return result, nil
}

// Verify fetches the gateway's view of a reference. Verification is read-only,
// so transport failures and 5xx/429 responses are retried with exponential backoff.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(reference) == "" {
		return nil, errors.New("reference is required")
	}

	var result *VerifyResult
	attempt := 0
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		res, err := c.verifyOnce(ctx, reference)
		if err == nil {
			result = res
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}

		c.logger.Warn("gateway: verify attempt failed, retrying",
			"reference", reference,
			"attempt", attempt,
			"error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) verifyOnce(ctx context.Context, reference string) (*VerifyResult, error) {
	raw, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var resp envelopeResponse[verifyData]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if !resp.Status {
		return nil, &APIError{HTTPStatus: http.StatusOK, Message: resp.Message}
	}

	message := resp.Data.GatewayResponse
	if message == "" {
		message = resp.Message
	}

	return &VerifyResult{
		Reference:     reference,
		Status:        TranslateStatus(resp.Data.Status),
		GatewayStatus: resp.Data.Status,
		Message:       message,
		AmountMinor:   resp.Data.Amount,
		PaidAt:        resp.Data.paidAt(),
		Envelope:      c.envelope(paymentdm.OperationVerify, resp.Data.Status, raw),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &failure)
		if failure.Message == "" {
			failure.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{HTTPStatus: resp.StatusCode, Message: failure.Message}
	}

	return raw, nil
}

func (c *Client) envelope(op paymentdm.GatewayOperation, gatewayStatus string, raw []byte) paymentdm.GatewayEnvelope {
	payload := json.RawMessage(raw)
	if !json.Valid(raw) {
		payload, _ = json.Marshal(string(raw))
	}
	return paymentdm.GatewayEnvelope{
		Version:       paymentdm.EnvelopeVersion,
		Provider:      c.name,
		Operation:     op,
		GatewayStatus: gatewayStatus,
		RawPayload:    payload,
		ReceivedAt:    c.now().UTC(),
	}
}
