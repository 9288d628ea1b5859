// Package live polls a PiAware receiver and turns its aircraft feed into
// stored minute snapshots, squawk transition events, and reception coverage
// records.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skyward/flighttrack/pkg/logger"
)

// RawSnapshot is the PiAware aircraft.json payload. Aircraft objects are kept
// as raw maps: the field-alias sprawl is resolved by the normalizer, not here.
type RawSnapshot struct {
	Now      float64          `json:"now"`
	Messages int              `json:"messages"`
	Aircraft []map[string]any `json:"aircraft"`
}

// ReceiverInfo is the subset of receiver.json the service needs
type ReceiverInfo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Client fetches data from a PiAware receiver
type Client struct {
	httpClient *http.Client
	sourceURL  string
	logger     *logger.Logger
}

// NewClient creates a PiAware client. sourceURL points at the aircraft.json
// endpoint; the receiver endpoint is derived from it.
func NewClient(sourceURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		sourceURL:  sourceURL,
		logger:     log.Named("piaware-cli"),
	}
}

// FetchAircraft fetches the current aircraft snapshot
func (c *Client) FetchAircraft(ctx context.Context) (*RawSnapshot, error) {
	body, err := c.get(ctx, c.sourceURL)
	if err != nil {
		return nil, err
	}

	var data RawSnapshot
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	c.logger.Debug("Fetched aircraft data",
		logger.Int("aircraft_count", len(data.Aircraft)),
		logger.Int("message_count", data.Messages))
	return &data, nil
}

// FetchReceiver fetches the receiver position
func (c *Client) FetchReceiver(ctx context.Context) (*ReceiverInfo, error) {
	url := strings.Replace(c.sourceURL, "aircraft.json", "receiver.json", 1)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var info ReceiverInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
