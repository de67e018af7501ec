// Package currency converts submitted amounts into the company currency
// before an expense enters the approval engine. The exchange-rate API is
// an external collaborator; the engine itself never does I/O.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

// Config holds converter configuration
type Config struct {
	APIBaseURL string
	Timeout    time.Duration
	Retries    uint
}

// Converter fetches exchange rates and converts amounts
type Converter struct {
	baseURL string
	retries uint
	client  *http.Client
	logger  *zap.Logger
}

// NewConverter creates a new converter
func NewConverter(cfg Config, logger *zap.Logger) *Converter {
	return &Converter{
		baseURL: cfg.APIBaseURL,
		retries: cfg.Retries,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Convert converts amount from one currency to another. Identical
// currencies short-circuit without a network call.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}

	var rate float64
	err := retry.Do(
		func() error {
			r, err := c.fetchRate(ctx, from, to)
			if err != nil {
				return err
			}
			rate = r
			return nil
		},
		retry.Attempts(c.retries),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		c.logger.Error("Currency conversion failed",
			zap.String("from", from), zap.String("to", to), zap.Error(err))
		return 0, err
	}

	return amount * rate, nil
}

func (c *Converter) fetchRate(ctx context.Context, from, to string) (float64, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rates for %s: %w", from, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate API returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode rates response: %w", err)
	}

	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("no rate from %s to %s", from, to)
	}
	return rate, nil
}
