// Package httpcache stores HTTP responses keyed by request identity.
//
// Two implementations share the Cache interface: SQLite persists entries in a
// file so they survive across runs until Clear is called, and Memory keeps
// them in an LRU for tests and one-off runs.
package httpcache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/purell"
)

// Entry is a cached response.
type Entry struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// Cache is the storage behind the fetcher. Get reports a miss with ok=false
// and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	Set(ctx context.Context, key string, entry *Entry) error
	Clear(ctx context.Context) error
	Close() error
}

const normalizeFlags = purell.FlagsSafe |
	purell.FlagRemoveFragment |
	purell.FlagSortQuery

// Key builds the cache key for a request: method, normalized URL and any extra
// parameters in sorted order. Two spellings of the same URL map to one key.
func Key(method, rawURL string, params url.Values) (string, error) {
	normalized, err := purell.NormalizeURLString(rawURL, normalizeFlags)
	if err != nil {
		return "", fmt.Errorf("normalizing %q: %w", rawURL, err)
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(normalized)
	if len(params) > 0 {
		b.WriteByte('|')
		b.WriteString(params.Encode())
	}
	return b.String(), nil
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Header = e.Header.Clone()
	out.Body = append([]byte(nil), e.Body...)
	return &out
}
