// Package trends gathers current web context (search results, related
// searches, news) for a content request. Trend context is optional input to
// the outline and content stages; a failed lookup never fails a stage.
package trends

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// Provider returns trend context for a query as prompt-ready text.
type Provider interface {
	Context(ctx context.Context, query string) (string, error)
	Name() string
}

// ProviderType identifies a trend backend.
type ProviderType string

const (
	ProviderNone       ProviderType = "none"
	ProviderSerpAPI    ProviderType = "serpapi"
	ProviderDuckDuckGo ProviderType = "duckduckgo"
	ProviderMock       ProviderType = "mock"
)

const (
	DefaultMaxResults = 5
	DefaultTimeout    = 15 * time.Second
	DefaultCacheTTL   = 6 * time.Hour

	maxRelated      = 10
	relatedInDigest = 5
)

// Result is one web or news hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
	Source  string `json:"source,omitempty"` // Publisher, news only
	Date    string `json:"date,omitempty"`   // As reported by the backend, news only
	Rank    int    `json:"rank"`
}

// Digest is everything a provider found for one query.
type Digest struct {
	Query   string   `json:"query"`
	Web     []Result `json:"web"`
	Related []string `json:"related"`
	News    []Result `json:"news"`
}

// Empty reports whether the digest holds nothing worth sending to a model.
func (d Digest) Empty() bool {
	return len(d.Web) == 0 && len(d.Related) == 0 && len(d.News) == 0
}

// Text renders the digest as a prompt block. An empty digest renders as "".
func (d Digest) Text() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current Information for: %s\n\n", d.Query)
	if len(d.Web) > 0 {
		sb.WriteString("Recent Web Results:\n")
		for i, r := range d.Web {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
			if r.Snippet != "" {
				fmt.Fprintf(&sb, "   %s\n", r.Snippet)
			}
			sb.WriteString("\n")
		}
	}
	if len(d.Related) > 0 {
		sb.WriteString("Related Trending Topics:\n")
		for _, q := range d.Related[:min(len(d.Related), relatedInDigest)] {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
		sb.WriteString("\n")
	}
	if len(d.News) > 0 {
		sb.WriteString("Recent News:\n")
		for i, r := range d.News {
			date := r.Date
			if date == "" {
				date = "N/A"
			}
			fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, r.Title, date)
			if r.Snippet != "" {
				fmt.Fprintf(&sb, "   %s\n", r.Snippet)
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// None is the disabled provider. It always returns no context.
type None struct{}

func (None) Context(context.Context, string) (string, error) { return "", nil }
func (None) Name() string                                     { return string(ProviderNone) }

// New builds the provider named in cfg, wrapped in a Redis cache when a
// cache URL is configured. A provider that holds connections implements
// io.Closer.
func New(ctx context.Context, cfg config.Trends) (Provider, error) {
	max := cfg.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	timeout := config.ParseDuration(cfg.Timeout, DefaultTimeout)

	var p Provider
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case "", ProviderNone:
		return None{}, nil
	case ProviderSerpAPI:
		s, err := NewSerpAPI(cfg.SerpAPI.APIKey, max, timeout)
		if err != nil {
			return nil, err
		}
		p = s
	case ProviderDuckDuckGo:
		p = NewDuckDuckGo(max, timeout)
	case ProviderMock:
		p = NewMock()
	default:
		return nil, core.Errorf(core.KindInvalidArgument, "trends.New", "unsupported trends provider %q", cfg.Provider)
	}

	if cfg.Cache.RedisURL == "" {
		return p, nil
	}
	store, err := OpenRedis(ctx, cfg.Cache.RedisURL)
	if err != nil {
		// A cache outage only costs extra lookups.
		logger.Warn("Trend cache unavailable, continuing without it", "error", err.Error())
		return p, nil
	}
	return NewCached(p, store, config.ParseDuration(cfg.Cache.TTL, DefaultCacheTTL)), nil
}

// Close releases p's resources when it holds any.
func Close(p Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Lookup fetches context for query and swallows failures: the caller gets
// "" and a warning is logged.
func Lookup(ctx context.Context, p Provider, query string) string {
	if p == nil || strings.TrimSpace(query) == "" {
		return ""
	}
	start := time.Now()
	text, err := p.Context(ctx, query)
	if err != nil {
		logger.Warn("Trend lookup failed, continuing without trends",
			"provider", p.Name(), "query", query, "error", err.Error())
		return ""
	}
	logger.Debug("Trend lookup finished",
		"provider", p.Name(), "chars", len(text), "latency_ms", time.Since(start).Milliseconds())
	return text
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
