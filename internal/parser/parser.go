package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/pydocs/internal/config"
	"github.com/pfrederiksen/pydocs/internal/dom"
	"github.com/pfrederiksen/pydocs/internal/fetcher"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/report"
	"github.com/pfrederiksen/pydocs/internal/storage"
)

// Mode names accepted on the command line.
const (
	ModeWhatsNew       = "whats-new"
	ModeLatestVersions = "latest-versions"
	ModeDownload       = "download"
	ModePEP            = "pep"
)

var (
	ErrUnknownMode  = errors.New("unknown mode")
	ErrNothingFound = errors.New("nothing found")
)

// Getter is the subset of *fetcher.Fetcher the extractors use.
type Getter interface {
	Get(ctx context.Context, rawURL string, opts ...fetcher.RequestOption) *fetcher.Response
	Download(ctx context.Context, rawURL string) ([]byte, error)
}

// ModeFunc runs one extraction.
type ModeFunc func(ctx context.Context) (*report.Table, error)

// Parser runs extractions against the configured documentation roots.
type Parser struct {
	fetch    Getter
	cfg      *config.Config
	store    *storage.Storage
	log      *logger.Logger
	metrics  *logger.Metrics
	progress io.Writer
}

// Option configures a Parser.
type Option func(*Parser)

func WithLogger(l *logger.Logger) Option {
	return func(p *Parser) { p.log = l }
}

func WithMetrics(m *logger.Metrics) Option {
	return func(p *Parser) { p.metrics = m }
}

// WithProgress renders progress bars for the detail-page loops on w.
func WithProgress(w io.Writer) Option {
	return func(p *Parser) { p.progress = w }
}

// New creates a Parser. store may be nil for modes that write no files.
func New(f Getter, cfg *config.Config, store *storage.Storage, opts ...Option) *Parser {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Parser{
		fetch:   f,
		cfg:     cfg,
		store:   store,
		log:     logger.Default(),
		metrics: logger.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Modes returns the mode names in the order they are documented.
func Modes() []string {
	return []string{ModeWhatsNew, ModeLatestVersions, ModeDownload, ModePEP}
}

// Mode looks up the extractor for name.
func (p *Parser) Mode(name string) (ModeFunc, error) {
	switch name {
	case ModeWhatsNew:
		return p.WhatsNew, nil
	case ModeLatestVersions:
		return p.LatestVersions, nil
	case ModeDownload:
		return p.Download, nil
	case ModePEP:
		return p.PEP, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
}

// Run executes the named mode.
func (p *Parser) Run(ctx context.Context, name string) (*report.Table, error) {
	fn, err := p.Mode(name)
	if err != nil {
		return nil, err
	}
	return fn(ctx)
}

// page fetches rawURL and parses it. A nil selection with a nil error means
// the fetch was skipped.
func (p *Parser) page(ctx context.Context, rawURL string) (*goquery.Selection, error) {
	resp := p.fetch.Get(ctx, rawURL)
	if resp == nil {
		return nil, nil
	}
	doc, err := dom.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rawURL, err)
	}
	return doc.Selection, nil
}

// resolve joins ref onto base the way a browser resolves a link.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing link %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// href returns the href of the first <a> under sel.
func href(sel *goquery.Selection) (string, error) {
	a, err := dom.FindRequired(sel, "a")
	if err != nil {
		return "", err
	}
	return a.AttrOr("href", ""), nil
}
