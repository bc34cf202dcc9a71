package trends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
)

func TestDigestText(t *testing.T) {
	if (Digest{Query: "x"}).Text() != "" {
		t.Error("Expected empty text for empty digest")
	}

	d := NewMock().Digest
	d.Query = "IIT Bombay"
	for i := 0; i < 8; i++ {
		d.Related = append(d.Related, fmt.Sprintf("extra %d", i))
	}
	got := d.Text()
	for _, want := range []string{
		"Current Information for: IIT Bombay",
		"Recent Web Results:\n1. JoSAA 2025 counselling schedule announced\n   Round one seat allocation dates.",
		"Related Trending Topics:\n- jee advanced 2025 cutoff",
		"Recent News:\n1. NIRF 2025 rankings released (2 days ago)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "extra 3") {
		t.Error("Expected related topics limited in the text block")
	}
}

func TestSerpAPI(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		seen = append(seen, q.Get("tbm"))
		mu.Unlock()
		if q.Get("api_key") != "key" || q.Get("q") != "IIT Bombay admissions" {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		if q.Get("tbm") == "nws" {
			fmt.Fprint(w, `{"news_results":[{"title":"JEE Advanced results out","link":"https://news.example.in/a","snippet":"s","source":"Desk","date":"1 day ago"}]}`)
			return
		}
		fmt.Fprint(w, `{"organic_results":[
			{"title":"IIT Bombay Admissions","link":"https://www.iitb.ac.in/admissions","snippet":"Official page","position":1},
			{"title":"Second","link":"https://b.example","position":2},
			{"title":"Third","link":"https://c.example","position":3}],
			"related_searches":[{"query":"iit bombay cutoff"},{"query":""},{"query":"iit bombay fees"}]}`)
	}))
	defer srv.Close()

	s, err := NewSerpAPI("key", 2, time.Second)
	if err != nil {
		t.Fatalf("NewSerpAPI error: %v", err)
	}
	s.baseURL = srv.URL

	d, err := s.Digest(context.Background(), "IIT Bombay admissions")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}
	if len(d.Web) != 2 || d.Web[0].Domain != "iitb.ac.in" {
		t.Errorf("Expected 2 web results with domain, got %+v", d.Web)
	}
	if len(d.Related) != 2 || d.Related[1] != "iit bombay fees" {
		t.Errorf("Unexpected related searches: %v", d.Related)
	}
	if len(d.News) != 1 || d.News[0].Date != "1 day ago" {
		t.Errorf("Unexpected news: %+v", d.News)
	}
	if len(seen) != 2 {
		t.Errorf("Expected 2 backend calls, got %d", len(seen))
	}

	if _, err := s.Context(context.Background(), "other"); !errors.Is(err, core.ErrDataUnavailable) {
		t.Errorf("Expected DataUnavailable for backend error, got %v", err)
	}
}

func TestNewSerpAPIRequiresKey(t *testing.T) {
	if _, err := NewSerpAPI(" ", 5, time.Second); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

const ddgPage = `<html><body>
<div class="result results_links result--ad"><a class="result__a" href="https://ads.example/x">Ad</a></div>
<div class="result results_links">
  <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.nirfindia.org%2F2025&amp;rut=abc">NIRF   2025 <b>Rankings</b></a></h2>
  <a class="result__snippet">Engineering ranking list.</a>
</div>
<div class="result results_links">
  <a class="result__a" href="javascript:void(0)">Broken</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://collegedunia.example/iitb">IIT Bombay Fees</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://third.example">Third</a>
</div>
</body></html>`

func TestDuckDuckGo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" || r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, ddgPage)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(2, time.Second)
	d.baseURL = srv.URL

	dg, err := d.Digest(context.Background(), "nirf 2025")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}
	if len(dg.Web) != 2 {
		t.Fatalf("Expected 2 results, got %+v", dg.Web)
	}
	first := dg.Web[0]
	if first.URL != "https://www.nirfindia.org/2025" || first.Title != "NIRF 2025 Rankings" || first.Snippet != "Engineering ranking list." || first.Domain != "nirfindia.org" {
		t.Errorf("Unexpected first result: %+v", first)
	}
	if dg.Web[1].Rank != 2 || dg.Web[1].Title != "IIT Bombay Fees" {
		t.Errorf("Unexpected second result: %+v", dg.Web[1])
	}
}

func TestDuckDuckGoBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="anomaly-modal">Unusual traffic</div></body></html>`)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5, time.Second)
	d.baseURL = srv.URL
	if _, err := d.Context(context.Background(), "x"); !errors.Is(err, core.ErrDataUnavailable) {
		t.Errorf("Expected DataUnavailable, got %v", err)
	}
}

type memStore struct {
	data    map[string]string
	failGet bool
	closed  bool
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	if m.failGet {
		return "", false, errors.New("connection refused")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

func TestCached(t *testing.T) {
	mock := NewMock()
	store := &memStore{data: map[string]string{}}
	c := NewCached(mock, store, time.Minute)

	first, err := c.Context(context.Background(), "IIT  Bombay")
	if err != nil {
		t.Fatalf("Context error: %v", err)
	}
	second, _ := c.Context(context.Background(), "iit bombay")
	if first != second || mock.Calls() != 1 {
		t.Errorf("Expected second lookup served from cache, got %d provider calls", mock.Calls())
	}
	if _, ok := store.data[CacheKey("mock", "iit bombay")]; !ok {
		t.Error("Expected value stored under the normalized key")
	}
	if !strings.HasPrefix(CacheKey("mock", "q"), "trends:") {
		t.Error("Expected trends: key prefix")
	}

	store.failGet = true
	if _, err := c.Context(context.Background(), "iit bombay"); err != nil || mock.Calls() != 2 {
		t.Errorf("Expected fall-through on store failure, got %v with %d calls", err, mock.Calls())
	}

	if err := c.Close(); err != nil || !store.closed {
		t.Errorf("Expected store closed, got %v", err)
	}
}

func TestLookupSwallowsFailures(t *testing.T) {
	m := NewMock()
	m.Err = core.Errorf(core.KindDataUnavailable, "test", "down")
	if got := Lookup(context.Background(), m, "q"); got != "" {
		t.Errorf("Expected empty context on failure, got %q", got)
	}
	if got := Lookup(context.Background(), nil, "q"); got != "" {
		t.Errorf("Expected empty context without provider, got %q", got)
	}
	if got := Lookup(context.Background(), NewMock(), "q"); !strings.Contains(got, "Recent News") {
		t.Errorf("Expected mock context, got %q", got)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     config.Trends
		want    string
		wantErr bool
	}{
		{config.Trends{}, "none", false},
		{config.Trends{Provider: "DuckDuckGo"}, "duckduckgo", false},
		{config.Trends{Provider: "mock"}, "mock", false},
		{config.Trends{Provider: "serpapi", SerpAPI: config.SerpAPIConfig{APIKey: "k"}}, "serpapi", false},
		{config.Trends{Provider: "serpapi"}, "", true},
		{config.Trends{Provider: "bing"}, "", true},
	}
	for _, tt := range tests {
		p, err := New(context.Background(), tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q): expected error", tt.cfg.Provider)
			}
			continue
		}
		if err != nil || p.Name() != tt.want {
			t.Errorf("New(%q) = %v, %v; want %s", tt.cfg.Provider, p, err, tt.want)
		}
		if err := Close(p); err != nil {
			t.Errorf("Close error: %v", err)
		}
	}
}
