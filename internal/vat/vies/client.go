// Package vies talks to the VIES-equivalent VAT registry over its REST
// check-vat contract. A well-formed "invalid VAT id" answer is a normal
// response here; errors mean the question could not be asked at all.
package vies

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fakturo/internal/platform/config"
)

// CheckRequest carries the buyer VAT id split into country and number.
// The requester pair is the supplier's own VAT id; the registry issues a
// consultation number only when it is present.
type CheckRequest struct {
	CountryCode              string `json:"countryCode"`
	VatNumber                string `json:"vatNumber"`
	RequesterMemberStateCode string `json:"requesterMemberStateCode,omitempty"`
	RequesterNumber          string `json:"requesterNumber,omitempty"`
}

// CheckResponse echoes the checked id and carries the registry's verdict.
type CheckResponse struct {
	CountryCode        string    `json:"countryCode"`
	VatNumber          string    `json:"vatNumber"`
	Valid              bool      `json:"valid"`
	RequestDate        time.Time `json:"requestDate"`
	ConsultationNumber string    `json:"requestIdentifier"`
}

// Client is the registry capability the validator consumes.
type Client interface {
	CheckVat(ctx context.Context, req CheckRequest) (*CheckResponse, error)
}

// Category normalizes client failures.
type Category string

const (
	// CategoryBadRequest: malformed VAT id or unsupported country; not
	// retryable and never eligible for the offline fallback.
	CategoryBadRequest Category = "bad_request"
	// CategoryUnavailable: the registry itself is unreachable; retryable
	// and eligible for the offline fallback.
	CategoryUnavailable Category = "unavailable"
	// CategoryInternal: everything else (decode failures, bad contract).
	CategoryInternal Category = "internal"
)

// ClientError wraps registry failures with normalized categorization.
type ClientError struct {
	Category   Category
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ClientError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("vies [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("vies [%s]: %s", e.Category, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Underlying
}

// NewClientError creates a categorized client error.
func NewClientError(category Category, message string, underlying error) *ClientError {
	return &ClientError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryUnavailable,
	}
}

// IsBadRequest reports whether the error is a malformed-input rejection.
func IsBadRequest(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Category == CategoryBadRequest
}

// IsUnavailable reports whether the registry could not be reached.
func IsUnavailable(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Category == CategoryUnavailable
}

// HTTPClient is the production Client over the registry's REST endpoint.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	tracer  trace.Tracer
}

// NewHTTPClient builds a client with the configured network timeout. The
// timeout is the whole degradation budget; retries are owned by the
// validator's offline fallback, not by the transport.
func NewHTTPClient(cfg config.ViesConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		tracer:  otel.Tracer("fakturo/vies"),
	}
}

// CheckVat posts the check-vat request and maps transport and status
// failures onto the error taxonomy.
func (c *HTTPClient) CheckVat(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	ctx, span := c.tracer.Start(ctx, "vies.check_vat",
		trace.WithAttributes(attribute.String("vat.country", req.CountryCode)))
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewClientError(CategoryInternal, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check-vat-number", bytes.NewReader(body))
	if err != nil {
		return nil, NewClientError(CategoryInternal, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return nil, NewClientError(CategoryUnavailable, "registry unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		err := fmt.Errorf("status %d: %s", resp.StatusCode, readBodyPrefix(resp.Body))
		span.RecordError(err)
		return nil, NewClientError(CategoryBadRequest, "registry rejected request", err)
	default:
		err := fmt.Errorf("status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, NewClientError(CategoryUnavailable, "registry error", err)
	}

	var out CheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		span.RecordError(err)
		return nil, NewClientError(CategoryInternal, "decode response", err)
	}
	span.SetAttributes(attribute.Bool("vat.valid", out.Valid))
	return &out, nil
}

func readBodyPrefix(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return string(b)
}
