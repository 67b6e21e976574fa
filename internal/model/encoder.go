package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"mindpattern/internal/config"
)

// Activation is one forward pass of the neural network: the pooled feature
// vector and the classification logits computed from it.
type Activation struct {
	Features []float64 `json:"features"`
	Logits   []float64 `json:"logits"`
}

// Encoder runs the neural network over one text.
type Encoder interface {
	Encode(ctx context.Context, text string) (*Activation, error)
}

// ErrStatus is returned when the model server answers with a non-200 status.
type ErrStatus struct {
	Code int
	Body string
}

func (e *ErrStatus) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("model server error: %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("model server error: %d", e.Code)
}

// RemoteEncoder calls a model-serving endpoint over HTTP.
type RemoteEncoder struct {
	baseURL   string
	model     string
	tokenizer string
	maxLength int
	retry     config.RetryConfig
	client    *http.Client
	gate      *semaphore.Weighted
}

// NewRemoteEncoder builds a client for one model. gate may be shared between
// encoders to bound concurrent inference on the same server; nil means
// unbounded.
func NewRemoteEncoder(cfg config.EncoderConfig, model, tokenizer string, gate *semaphore.Weighted) *RemoteEncoder {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &RemoteEncoder{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		model:     model,
		tokenizer: tokenizer,
		maxLength: cfg.MaxLength,
		retry:     cfg.Retry,
		client:    &http.Client{Timeout: timeout},
		gate:      gate,
	}
}

// NewGate returns the shared concurrency gate for n concurrent calls, or nil
// when n is zero.
func NewGate(n int) *semaphore.Weighted {
	if n <= 0 {
		return nil
	}
	return semaphore.NewWeighted(int64(n))
}

func (e *RemoteEncoder) Encode(ctx context.Context, text string) (*Activation, error) {
	if e.gate != nil {
		if err := e.gate.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer e.gate.Release(1)
	}

	attempts := e.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		act, err := e.forward(ctx, text)
		if err == nil {
			return act, nil
		}
		lastErr = err

		if !retryable(err) || attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.backoff(attempt)):
		}
	}

	return nil, lastErr
}

func (e *RemoteEncoder) forward(ctx context.Context, text string) (*Activation, error) {
	body, err := json.Marshal(map[string]any{
		"model":      e.model,
		"tokenizer":  e.tokenizer,
		"text":       text,
		"max_length": e.maxLength,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/v1/forward", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ErrStatus{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var act Activation
	if err := json.NewDecoder(resp.Body).Decode(&act); err != nil {
		return nil, fmt.Errorf("decode activation: %w", err)
	}
	if len(act.Features) == 0 && len(act.Logits) == 0 {
		return nil, fmt.Errorf("model server returned an empty activation")
	}

	return &act, nil
}

func (e *RemoteEncoder) backoff(attempt int) time.Duration {
	wait := float64(e.retry.InitialWait) * math.Pow(e.retry.Multiplier, float64(attempt))
	if limit := float64(e.retry.MaxWait); limit > 0 && wait > limit {
		wait = limit
	}
	// +/-25% jitter
	wait *= 0.75 + rand.Float64()*0.5
	return time.Duration(wait)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var status *ErrStatus
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.Is(err, io.ErrUnexpectedEOF)
}
