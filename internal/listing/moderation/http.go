package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"dealerhub/internal/listing/models"
	"dealerhub/internal/platform/metrics"
	"dealerhub/pkg/platform/circuit"
)

const (
	DefaultTimeout  = 5 * time.Second
	maxResponseBody = 64 << 10
)

// HTTPChecker calls a JSON moderation endpoint:
//
//	POST <url> {"title", "description", "image_refs"} -> {"violation", "reason"}
//
// Consecutive failures open the breaker and further calls fail fast until a
// probe succeeds.
type HTTPChecker struct {
	url     string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type HTTPOption func(*HTTPChecker)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPChecker) {
		if c != nil {
			h.client = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) HTTPOption {
	return func(h *HTTPChecker) {
		if b != nil {
			h.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTPChecker) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) HTTPOption {
	return func(h *HTTPChecker) {
		h.metrics = m
	}
}

// NewHTTPChecker creates a checker for url; timeout <= 0 uses DefaultTimeout.
func NewHTTPChecker(url string, timeout time.Duration, opts ...HTTPOption) *HTTPChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := &HTTPChecker{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New("moderation"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPChecker) Check(ctx context.Context, req Request) (models.Verdict, error) {
	if !h.breaker.Allow() {
		return models.Verdict{}, newError(FailureCircuitOpen, "circuit open", nil)
	}
	start := time.Now()
	verdict, err := h.do(ctx, req)
	h.metrics.ObserveModerationLatency(time.Since(start))
	if err != nil {
		if _, change := h.breaker.RecordFailure(); change.Opened {
			h.logger.WarnContext(ctx, "moderation circuit opened", "error", err)
		}
		return models.Verdict{}, err
	}
	if _, change := h.breaker.RecordSuccess(); change.Closed {
		h.logger.InfoContext(ctx, "moderation circuit closed")
	}
	return verdict, nil
}

func (h *HTTPChecker) do(ctx context.Context, req Request) (models.Verdict, error) {
	if req.ImageRefs == nil {
		req.ImageRefs = []string{}
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return models.Verdict{}, newError(FailureBadResponse, "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(raw))
	if err != nil {
		return models.Verdict{}, newError(FailureOutage, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return models.Verdict{}, newError(FailureTimeout, "request timed out", err)
		}
		return models.Verdict{}, newError(FailureOutage, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return models.Verdict{}, newError(FailureOutage, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Verdict{}, newError(FailureOutage, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var out struct {
		Violation *bool  `json:"violation"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return models.Verdict{}, newError(FailureBadResponse, "decode response", err)
	}
	if out.Violation == nil {
		return models.Verdict{}, newError(FailureBadResponse, "response missing violation", nil)
	}
	return models.Verdict{Violation: *out.Violation, Reason: out.Reason}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
