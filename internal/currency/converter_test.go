package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConverter(baseURL string, retries uint) *Converter {
	return NewConverter(Config{
		APIBaseURL: baseURL,
		Timeout:    2 * time.Second,
		Retries:    retries,
	}, zap.NewNop())
}

func TestConvert_SameCurrencySkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for identical currencies")
	}))
	defer srv.Close()

	c := newTestConverter(srv.URL, 1)
	got, err := c.Convert(context.Background(), 42.5, "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 42.5, got)
}

func TestConvert_AppliesRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/EUR", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"USD":1.10,"GBP":0.85}}`))
	}))
	defer srv.Close()

	c := newTestConverter(srv.URL, 1)
	got, err := c.Convert(context.Background(), 100, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 110.0, got, 1e-9)
}

func TestConvert_UnknownTargetCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"USD":1.10}}`))
	}))
	defer srv.Close()

	c := newTestConverter(srv.URL, 1)
	_, err := c.Convert(context.Background(), 100, "EUR", "JPY")
	assert.Error(t, err)
}

func TestConvert_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"base":"GBP","rates":{"USD":1.25}}`))
	}))
	defer srv.Close()

	c := newTestConverter(srv.URL, 3)
	got, err := c.Convert(context.Background(), 80, "GBP", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 1e-9)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConvert_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestConverter(srv.URL, 2)
	_, err := c.Convert(context.Background(), 10, "EUR", "USD")
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
