package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

const serpAPIURL = "https://serpapi.com/search"

// SerpAPI reads Google results through serpapi.com.
type SerpAPI struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
}

// NewSerpAPI creates a SerpAPI provider.
func NewSerpAPI(apiKey string, maxResults int, timeout time.Duration) (*SerpAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.Errorf(core.KindInvalidArgument, "trends.NewSerpAPI", "SerpAPI key is required")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &SerpAPI{
		apiKey:     apiKey,
		baseURL:    serpAPIURL,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (s *SerpAPI) Name() string { return string(ProviderSerpAPI) }

// Context implements Provider.
func (s *SerpAPI) Context(ctx context.Context, query string) (string, error) {
	d, err := s.Digest(ctx, query)
	if err != nil {
		return "", err
	}
	return d.Text(), nil
}

type serpResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic_results"`
	Related []struct {
		Query string `json:"query"`
	} `json:"related_searches"`
	News []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Source   string `json:"source"`
		Date     string `json:"date"`
		Position int    `json:"position"`
	} `json:"news_results"`
	Error string `json:"error"`
}

// Digest runs the web search (organic results plus related searches) and
// the news search concurrently.
func (s *SerpAPI) Digest(ctx context.Context, query string) (Digest, error) {
	d := Digest{Query: query}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := s.call(gctx, query, "")
		if err != nil {
			return err
		}
		for i, r := range resp.Organic {
			if i >= s.maxResults {
				break
			}
			d.Web = append(d.Web, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Domain: domainOf(r.Link), Rank: r.Position})
		}
		for _, r := range resp.Related {
			if r.Query != "" && len(d.Related) < maxRelated {
				d.Related = append(d.Related, r.Query)
			}
		}
		return nil
	})
	g.Go(func() error {
		resp, err := s.call(gctx, query, "nws")
		if err != nil {
			return err
		}
		for i, r := range resp.News {
			if i >= s.maxResults {
				break
			}
			d.News = append(d.News, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Domain: domainOf(r.Link), Source: r.Source, Date: r.Date, Rank: r.Position})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return Digest{Query: query}, err
	}
	logger.Info("SerpAPI lookup completed",
		"query", query, "web", len(d.Web), "related", len(d.Related), "news", len(d.News))
	return d, nil
}

func (s *SerpAPI) call(ctx context.Context, query, tbm string) (*serpResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("api_key", s.apiKey)
	params.Set("num", strconv.Itoa(s.maxResults))
	if tbm != "" {
		params.Set("tbm", tbm)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, core.Wrap(core.KindInvalidArgument, "trends.SerpAPI", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, core.Wrap(core.KindDataUnavailable, "trends.SerpAPI", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return nil, core.Wrap(core.KindInputMalformed, "trends.SerpAPI", err)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, core.Errorf(core.KindDataUnavailable, "trends.SerpAPI", "status %d: %s", resp.StatusCode, msg)
	}
	return &out, nil
}

// TestConnection runs a one-result search.
func (s *SerpAPI) TestConnection(ctx context.Context) bool {
	_, err := s.call(ctx, "test", "")
	if err != nil {
		logger.Warn("SerpAPI connection test failed", "error", fmt.Sprint(err))
	}
	return err == nil
}
