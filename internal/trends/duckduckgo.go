package trends

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

const (
	duckDuckGoURL = "https://html.duckduckgo.com/html/"
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DuckDuckGo scrapes the HTML results page. It needs no key and reports web
// results only.
type DuckDuckGo struct {
	baseURL    string
	maxResults int
	client     *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo provider.
func NewDuckDuckGo(maxResults int, timeout time.Duration) *DuckDuckGo {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &DuckDuckGo{baseURL: duckDuckGoURL, maxResults: maxResults, client: &http.Client{Timeout: timeout}}
}

func (d *DuckDuckGo) Name() string { return string(ProviderDuckDuckGo) }

// Context implements Provider.
func (d *DuckDuckGo) Context(ctx context.Context, query string) (string, error) {
	dg, err := d.Digest(ctx, query)
	if err != nil {
		return "", err
	}
	return dg.Text(), nil
}

// Digest fetches and parses one results page.
func (d *DuckDuckGo) Digest(ctx context.Context, query string) (Digest, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", "in-en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Digest{}, core.Wrap(core.KindInvalidArgument, "trends.DuckDuckGo", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.client.Do(req)
	if err != nil {
		return Digest{}, core.Wrap(core.KindDataUnavailable, "trends.DuckDuckGo", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Digest{}, core.Errorf(core.KindDataUnavailable, "trends.DuckDuckGo", "status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Digest{}, core.Wrap(core.KindInputMalformed, "trends.DuckDuckGo", err)
	}

	dg := Digest{Query: query, Web: parseDuckDuckGo(doc, d.maxResults)}
	if len(dg.Web) == 0 && doc.Find(".anomaly-modal, #challenge-form").Length() > 0 {
		return Digest{}, core.Errorf(core.KindDataUnavailable, "trends.DuckDuckGo", "blocked by a bot challenge")
	}
	logger.Info("DuckDuckGo lookup completed", "query", query, "web", len(dg.Web))
	return dg, nil
}

func parseDuckDuckGo(doc *goquery.Document, max int) []Result {
	var out []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		a := s.Find("a.result__a").First()
		href, _ := a.Attr("href")
		link := resolveDuckDuckGoLink(href)
		if link == "" {
			return true
		}
		out = append(out, Result{
			Title:   collapse(a.Text()),
			URL:     link,
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
			Domain:  domainOf(link),
			Rank:    len(out) + 1,
		})
		return len(out) < max
	})
	return out
}

// resolveDuckDuckGoLink unwraps "/l/?uddg=<target>" redirect links.
func resolveDuckDuckGoLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
