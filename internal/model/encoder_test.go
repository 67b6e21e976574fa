package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindpattern/internal/config"
)

func encoderConfig(url string) config.EncoderConfig {
	return config.EncoderConfig{
		URL:       url,
		Timeout:   time.Second,
		MaxLength: 256,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     5 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

func TestRemoteEncoder_Encode(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forward", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"features": [0.5, 0.25], "logits": [1, 2, 3]}`))
	}))
	defer srv.Close()

	enc := NewRemoteEncoder(encoderConfig(srv.URL+"/"), "distilbert-bilstm-hybrid", DefaultTokenizer, nil)
	act, err := enc.Encode(context.Background(), "I feel anxious")
	require.NoError(t, err)

	assert.Equal(t, []float64{0.5, 0.25}, act.Features)
	assert.Equal(t, []float64{1, 2, 3}, act.Logits)
	assert.Equal(t, "distilbert-bilstm-hybrid", got["model"])
	assert.Equal(t, DefaultTokenizer, got["tokenizer"])
	assert.Equal(t, "I feel anxious", got["text"])
	assert.EqualValues(t, 256, got["max_length"])
}

func TestRemoteEncoder_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"logits": [1, 2]}`))
	}))
	defer srv.Close()

	act, err := NewRemoteEncoder(encoderConfig(srv.URL), "m", "t", nil).Encode(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, act.Logits)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRemoteEncoder_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewRemoteEncoder(encoderConfig(srv.URL), "m", "t", nil).Encode(context.Background(), "text")

	var status *ErrStatus
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.Code)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRemoteEncoder_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewRemoteEncoder(encoderConfig(srv.URL), "m", "t", nil).Encode(context.Background(), "text")

	var status *ErrStatus
	require.ErrorAs(t, err, &status)
	assert.Equal(t, "unknown model", status.Body)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRemoteEncoder_EmptyActivation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewRemoteEncoder(encoderConfig(srv.URL), "m", "t", nil).Encode(context.Background(), "text")
	assert.Error(t, err)
}

func TestRemoteEncoder_GateHonorsContext(t *testing.T) {
	gate := NewGate(1)
	require.True(t, gate.TryAcquire(1))
	defer gate.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRemoteEncoder(encoderConfig("http://127.0.0.1:1"), "m", "t", gate).Encode(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewGate(t *testing.T) {
	assert.Nil(t, NewGate(0))
	assert.NotNil(t, NewGate(2))
}
