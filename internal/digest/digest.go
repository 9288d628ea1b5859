// Package digest produces a short natural-language summary of one day of
// traffic using the Gemini API. It is optional and never sits on the
// tracking or rollup path.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.0-flash"

// Config controls the digest service
type Config struct {
	Enabled bool
	APIKey  string
	Model   string
}

// Service generates and caches daily digests
type Service struct {
	client *genai.Client
	model  string
	logger *logger.Logger

	mu    sync.Mutex
	cache map[string]string // day (YYYY-MM-DD) -> digest text
}

// NewService creates the digest service. Returns an error when enabled
// without an API key.
func NewService(ctx context.Context, cfg Config, log *logger.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("digest requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Info("Digest service ready", logger.String("model", cfg.Model))
	return &Service{
		client: client,
		model:  cfg.Model,
		logger: log.Named("digest"),
		cache:  make(map[string]string),
	}, nil
}

// DailyDigest returns the digest for one day's rollup bucket, generating it
// on first request
func (s *Service) DailyDigest(ctx context.Context, day time.Time, bucket *tracker.RollupBucket) (string, error) {
	key := day.UTC().Format("2006-01-02")

	s.mu.Lock()
	if text, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return text, nil
	}
	s.mu.Unlock()

	prompt := buildPrompt(day, bucket)
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate digest: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned an empty digest")
	}

	s.mu.Lock()
	s.cache[key] = text
	s.mu.Unlock()

	s.logger.Info("Generated daily digest",
		logger.String("day", key),
		logger.Int("length", len(text)))
	return text, nil
}

// buildPrompt renders the bucket into a compact plain-text briefing request
func buildPrompt(day time.Time, bucket *tracker.RollupBucket) string {
	summary := bucket.Summary()

	airlines := make(map[string]int)
	for _, f := range bucket.Flights {
		if f.AirlineName != "" && f.AirlineName != "Unknown" {
			airlines[f.AirlineName]++
		}
	}
	type airlineCount struct {
		name  string
		count int
	}
	top := make([]airlineCount, 0, len(airlines))
	for name, count := range airlines {
		top = append(top, airlineCount{name, count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].count != top[j].count {
			return top[i].count > top[j].count
		}
		return top[i].name < top[j].name
	})
	if len(top) > 5 {
		top = top[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a short, friendly traffic summary (3-4 sentences) for an ADS-B receiver dashboard, for %s.\n", day.UTC().Format("January 2, 2006"))
	fmt.Fprintf(&b, "Flights observed: %d from %d unique aircraft (%d distinct callsigns).\n",
		len(bucket.Flights), summary.UniqueAircraft, summary.UniqueCallsigns)
	fmt.Fprintf(&b, "Squawk code changes: %d.\n", len(bucket.Transitions))
	if len(top) > 0 {
		b.WriteString("Busiest airlines: ")
		for i, a := range top {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%d)", a.name, a.count)
		}
		b.WriteString(".\n")
	}
	b.WriteString("Mention anything notable. Plain text only, no markdown.")
	return b.String()
}
