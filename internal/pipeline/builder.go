package pipeline

import (
	"context"

	"collegecontent/internal/collegedb"
	"collegecontent/internal/config"
	"collegecontent/internal/content"
	"collegecontent/internal/contenttypes"
	"collegecontent/internal/core"
	"collegecontent/internal/datafetch"
	"collegecontent/internal/llm"
	"collegecontent/internal/outline"
	"collegecontent/internal/query"
	"collegecontent/internal/topics"
	"collegecontent/internal/trends"
	"collegecontent/internal/workflow"
)

// Builder helps construct a fully configured Orchestrator
type Builder struct {
	gateway  llm.Gateway
	store    collegedb.Querier
	trends   trends.Provider
	catalog  *contenttypes.Catalog
	sessions *workflow.Manager
	stages   config.Stages
	query    config.Query
	config   *Config

	// Component overrides, mostly for tests
	extractor FilterExtractor
	fetcher   DataFetcher
}

// NewBuilder creates a new builder with default settings
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithGateway sets the model gateway shared by every generation stage
func (b *Builder) WithGateway(gw llm.Gateway) *Builder {
	b.gateway = gw
	return b
}

// WithStore sets the college data store. Without one, fetches fail with
// DataUnavailable and only the CSV path works.
func (b *Builder) WithStore(store collegedb.Querier) *Builder {
	b.store = store
	return b
}

// WithTrends sets the optional trend context provider
func (b *Builder) WithTrends(p trends.Provider) *Builder {
	b.trends = p
	return b
}

// WithCatalog sets the content type catalog
func (b *Builder) WithCatalog(c *contenttypes.Catalog) *Builder {
	b.catalog = c
	return b
}

// WithSessions sets the session manager
func (b *Builder) WithSessions(m *workflow.Manager) *Builder {
	b.sessions = m
	return b
}

// WithStages sets the sampling settings of the generation stages
func (b *Builder) WithStages(s config.Stages) *Builder {
	b.stages = s
	return b
}

// WithQuery sets the extractor's cap bounds
func (b *Builder) WithQuery(q config.Query) *Builder {
	b.query = q
	return b
}

// WithConfig sets the orchestrator configuration
func (b *Builder) WithConfig(cfg *Config) *Builder {
	b.config = cfg
	return b
}

// WithFetcher replaces the store-backed fetch stage
func (b *Builder) WithFetcher(f DataFetcher) *Builder {
	b.fetcher = f
	return b
}

// WithExtractor replaces the query filter extractor
func (b *Builder) WithExtractor(e FilterExtractor) *Builder {
	b.extractor = e
	return b
}

// FromConfig applies the settings of a loaded configuration
func (b *Builder) FromConfig(cfg *config.Config) *Builder {
	b.stages = cfg.Stages
	b.query = cfg.Query
	if b.config == nil {
		b.config = DefaultConfig()
	}
	b.config.SessionTTL = config.ParseDuration(cfg.Workflow.SessionTTL, workflow.DefaultSessionTTL)
	return b
}

// Build constructs the Orchestrator
func (b *Builder) Build() (*Orchestrator, error) {
	// Validate required components
	if b.gateway == nil {
		return nil, core.Errorf(core.KindInvalidArgument, "pipeline.Build", "a model gateway is required")
	}

	cfg := b.config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DefaultContentType == "" {
		cfg.DefaultContentType = DefaultConfig().DefaultContentType
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultConfig().SearchLimit
	}

	o := &Orchestrator{
		sessions:  b.sessions,
		extractor: b.extractor,
		fetcher:   b.fetcher,
		topics:    topics.New(b.gateway, b.stages),
		outlines:  outline.New(b.gateway, b.stages.Outline),
		writer:    content.New(b.gateway, b.stages.Content),
		trends:    b.trends,
		catalog:   b.catalog,
		config:    cfg,
	}
	if o.sessions == nil {
		o.sessions = workflow.NewManager(cfg.SessionTTL)
	}
	if o.catalog == nil {
		o.catalog = contenttypes.Default()
	}
	if o.extractor == nil {
		o.extractor = query.NewExtractor(b.query.DefaultCap, b.query.MaxCap)
	}
	if o.fetcher == nil {
		o.fetcher = datafetch.New(b.store)
	}
	if b.store != nil {
		o.search = storeSearcher{b.store}
	}
	if _, ok := o.catalog.Lookup(cfg.DefaultContentType); !ok {
		return nil, core.Errorf(core.KindNotFound, "pipeline.Build", "default content type %q is not in the catalog", cfg.DefaultContentType)
	}
	return o, nil
}

// storeSearcher adapts the package-level search to CollegeSearcher
type storeSearcher struct {
	q collegedb.Querier
}

func (s storeSearcher) SearchColleges(ctx context.Context, term string, limit int) ([]core.CollegeRecord, error) {
	return collegedb.SearchColleges(ctx, s.q, term, limit)
}
