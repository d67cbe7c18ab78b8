package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pfrederiksen/pydocs/internal/config"
	"github.com/pfrederiksen/pydocs/internal/dom"
	"github.com/pfrederiksen/pydocs/internal/fetcher"
	"github.com/pfrederiksen/pydocs/internal/httpcache"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docRoot = "https://docs.python.org/3/"
	pepRoot = "https://peps.python.org/"
)

func TestMain(m *testing.M) {
	logger.SetDefault(logger.Discard())
	os.Exit(m.Run())
}

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", name))
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

// pepPage renders a PEP detail page. An empty status leaves the Status field out.
func pepPage(status string) string {
	var b strings.Builder
	b.WriteString(`<html><body><section id="pep-content"><h1 class="page-title">PEP</h1>`)
	b.WriteString(`<dl class="rfc2822 field-list simple">`)
	b.WriteString(`<dt class="field-odd">Author<span class="colon">:</span></dt><dd class="field-odd">Somebody</dd>`)
	if status != "" {
		fmt.Fprintf(&b, `<dt class="field-even">Status<span class="colon">:</span></dt><dd class="field-even"><abbr title="status">%s</abbr></dd>`, status)
	}
	b.WriteString(`<dt class="field-odd">Type<span class="colon">:</span></dt><dd class="field-odd">Standards Track</dd>`)
	b.WriteString(`</dl></section></body></html>`)
	return b.String()
}

// pepSite maps paths under the PEP root to page bodies. pep-0404 is absent.
func pepSite(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"":          loadFixture(t, "pep_index.html"),
		"pep-0001/": pepPage("Active"),
		"pep-0008/": pepPage("Final"),
		"pep-0020/": pepPage("Active"),
		"pep-0042/": pepPage("Draft"),
		"pep-0099/": pepPage("Final"),
		"pep-0500/": pepPage(""),
	}
}

func docSite(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"":                   loadFixture(t, "docs_index.html"),
		"whatsnew/":          loadFixture(t, "whatsnew_index.html"),
		"whatsnew/3.13.html": loadFixture(t, "whatsnew_3.13.html"),
		"whatsnew/3.12.html": loadFixture(t, "whatsnew_3.12.html"),
		"download.html":      loadFixture(t, "download.html"),
	}
}

// fakeGetter serves pages from memory. Unknown URLs behave like a transport failure.
type fakeGetter struct {
	mu        sync.Mutex
	pages     map[string]string
	archives  map[string][]byte
	gets      map[string]int
	downloads []string
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{
		pages:    map[string]string{},
		archives: map[string][]byte{},
		gets:     map[string]int{},
	}
}

func (f *fakeGetter) add(root string, site map[string]string) *fakeGetter {
	for path, body := range site {
		f.pages[root+path] = body
	}
	return f
}

func (f *fakeGetter) Get(_ context.Context, rawURL string, _ ...fetcher.RequestOption) *fetcher.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[rawURL]++
	body, ok := f.pages[rawURL]
	if !ok {
		return nil
	}
	return &fetcher.Response{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}
}

func (f *fakeGetter) Download(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, rawURL)
	data, ok := f.archives[rawURL]
	if !ok {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, fetcher.ErrUnexpectedStatus)
	}
	return data, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DocURL = docRoot
	cfg.PEPURL = pepRoot
	return cfg
}

func newTestParser(t *testing.T, g Getter) (*Parser, *bytes.Buffer, *logger.Metrics) {
	t.Helper()
	var logs bytes.Buffer
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	metrics := logger.NewMetrics()
	p := New(g, testConfig(), store,
		WithLogger(logger.New(logger.LevelDebug, &logs)),
		WithMetrics(metrics),
	)
	return p, &logs, metrics
}

func messages(t *testing.T, logs *bytes.Buffer, message string) []logger.LogEntry {
	t.Helper()
	entries, err := logger.ReadEntries(bytes.NewReader(logs.Bytes()))
	require.NoError(t, err)
	var out []logger.LogEntry
	for _, e := range entries {
		if e.Message == message {
			out = append(out, e)
		}
	}
	return out
}

func TestModes(t *testing.T) {
	want := []string{"whats-new", "latest-versions", "download", "pep"}
	assert.Equal(t, want, Modes())

	p := New(newFakeGetter(), nil, nil)
	for _, name := range Modes() {
		fn, err := p.Mode(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn, name)
	}

	_, err := p.Mode("changelog")
	assert.ErrorIs(t, err, ErrUnknownMode)
	_, err = p.Run(context.Background(), "changelog")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestWhatsNew(t *testing.T) {
	g := newFakeGetter().add(docRoot, docSite(t))
	p, _, _ := newTestParser(t, g)

	tbl, err := p.WhatsNew(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tbl)

	assert.Equal(t, []string{"Article link", "Title", "Editor / Author"}, tbl.Header)
	require.Equal(t, 2, tbl.Len(), "three articles listed, one unreachable")

	first := tbl.Rows[0]
	assert.Equal(t, "https://docs.python.org/3/whatsnew/3.13.html", first[0])
	assert.Equal(t, "What’s New In Python 3.13", first[1])
	authors := first[2].(string)
	assert.NotContains(t, authors, "\n")
	assert.Contains(t, authors, "Editors:")
	assert.Contains(t, authors, "Adam Turner and Thomas Wouters")

	assert.Equal(t, "https://docs.python.org/3/whatsnew/3.12.html", tbl.Rows[1][0])
	assert.Equal(t, 1, g.gets["https://docs.python.org/3/whatsnew/3.11.html"], "unreachable article attempted once")
	assert.Zero(t, g.gets["https://docs.python.org/3/whatsnew/3.13.html#summary-release-highlights"],
		"nested toctree entries are not articles")
}

func TestWhatsNew_IndexUnreachable(t *testing.T) {
	p, _, _ := newTestParser(t, newFakeGetter())

	tbl, err := p.WhatsNew(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, tbl)
}

func TestWhatsNew_MissingLayout(t *testing.T) {
	g := newFakeGetter().add(docRoot, map[string]string{
		"whatsnew/": `<html><body><div id="something-else"></div></body></html>`,
	})
	p, _, _ := newTestParser(t, g)

	tbl, err := p.WhatsNew(context.Background())
	assert.Nil(t, tbl)

	var nf *dom.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "div", nf.Tag)
	assert.Equal(t, []string{`id="what-s-new-in-python"`}, nf.Attrs)
}

func TestLatestVersions(t *testing.T) {
	g := newFakeGetter().add(docRoot, docSite(t))
	p, _, _ := newTestParser(t, g)

	tbl, err := p.LatestVersions(context.Background())
	require.NoError(t, err)

	want := [][]string{
		{"Documentation link", "Version", "Status"},
		{"https://docs.python.org/3.14/", "3.14", "in development"},
		{"https://docs.python.org/3.13/", "3.13", "stable"},
		{"https://docs.python.org/3.12/", "3.12", "security-fixes"},
		{"https://docs.python.org/2.7/", "Python 2.7", ""},
		{"https://www.python.org/doc/versions/", "All versions", ""},
	}
	if diff := cmp.Diff(want, tbl.Records()); diff != "" {
		t.Errorf("LatestVersions() mismatch (-want +got):\n%s", diff)
	}
}

func TestLatestVersions_NothingFound(t *testing.T) {
	g := newFakeGetter().add(docRoot, map[string]string{
		"": `<html><body><div class="sphinxsidebarwrapper"><ul><li><a href="download.html">Download</a></li></ul></div></body></html>`,
	})
	p, logs, _ := newTestParser(t, g)

	tbl, err := p.LatestVersions(context.Background())
	assert.Nil(t, tbl)
	assert.ErrorIs(t, err, ErrNothingFound)
	assert.Len(t, messages(t, logs, "version list not found"), 1)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		text        string
		wantVersion string
		wantStatus  string
	}{
		{"Python 3.11 (stable)", "3.11", "stable"},
		{"Python 3.9 (security-fixes)", "3.9", "security-fixes"},
		{"Python 3.14 (in development)", "3.14", "in development"},
		{"Python 2.7", "Python 2.7", ""},
		{"All versions", "All versions", ""},
		{"Latest Python 3.12 (stable)", "Latest Python 3.12 (stable)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			version, status := parseVersion(tt.text)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestDownload(t *testing.T) {
	archiveURL := "https://docs.python.org/3/archives/python-3.13-docs-pdf-a4.zip"
	g := newFakeGetter().add(docRoot, docSite(t))
	g.archives[archiveURL] = []byte("PK\x03\x04pdf")

	p, logs, _ := newTestParser(t, g)

	tbl, err := p.Download(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tbl, "download produces no table")

	assert.Equal(t, []string{archiveURL}, g.downloads)
	assert.Zero(t, g.gets[archiveURL], "archives never go through the page cache")

	path := filepath.Join(p.store.DownloadsDir(), "python-3.13-docs-pdf-a4.zip")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04pdf", string(data))

	saved := messages(t, logs, "archive downloaded and saved")
	require.Len(t, saved, 1)
	assert.Equal(t, "INFO", saved[0].Level)
	assert.Equal(t, path, saved[0].Fields["path"])
}

func TestDownload_Failures(t *testing.T) {
	t.Run("no a4 archive", func(t *testing.T) {
		g := newFakeGetter().add(docRoot, map[string]string{
			"download.html": `<html><body><div role="main"><table class="docutils"><tr><td><a href="archives/docs-html.zip">HTML</a></td></tr></table></div></body></html>`,
		})
		p, _, _ := newTestParser(t, g)

		_, err := p.Download(context.Background())
		assert.ErrorIs(t, err, dom.ErrNotFound)
		assert.Empty(t, g.downloads)
	})

	t.Run("archive request fails", func(t *testing.T) {
		g := newFakeGetter().add(docRoot, docSite(t))
		p, _, _ := newTestParser(t, g)

		_, err := p.Download(context.Background())
		assert.ErrorIs(t, err, fetcher.ErrUnexpectedStatus)
		_, statErr := os.Stat(p.store.DownloadsDir())
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing written on failure")
	})

	t.Run("page unreachable", func(t *testing.T) {
		p, _, _ := newTestParser(t, newFakeGetter())

		tbl, err := p.Download(context.Background())
		assert.NoError(t, err)
		assert.Nil(t, tbl)
	})

	t.Run("no storage", func(t *testing.T) {
		p := New(newFakeGetter(), testConfig(), nil)
		_, err := p.Download(context.Background())
		assert.ErrorIs(t, err, ErrNoStorage)
	})
}

func TestArchiveName(t *testing.T) {
	name, err := archiveName("https://docs.python.org/3/archives/python-3.12-docs-pdf-a4.zip?x=1")
	require.NoError(t, err)
	assert.Equal(t, "python-3.12-docs-pdf-a4.zip", name)
}

func TestPEP(t *testing.T) {
	g := newFakeGetter().add(pepRoot, pepSite(t))
	p, logs, metrics := newTestParser(t, g)

	tbl, err := p.PEP(context.Background())
	require.NoError(t, err)

	want := [][]string{
		{"Status", "Count"},
		{"A", "1"},
		{"F", "2"},
		{"", "1"},
		{"X", "1"},
		{"Total", "5"},
	}
	if diff := cmp.Diff(want, tbl.Records()); diff != "" {
		t.Errorf("PEP() mismatch (-want +got):\n%s", diff)
	}

	mismatches := messages(t, logs, "status mismatch")
	require.Len(t, mismatches, 1)
	assert.Equal(t, "https://peps.python.org/pep-0020/", mismatches[0].Fields["url"])

	unknown := messages(t, logs, "unknown preview status")
	require.Len(t, unknown, 1)
	assert.Equal(t, "X", unknown[0].Fields["code"])

	unreachable := messages(t, logs, "could not open page")
	require.Len(t, unreachable, 1)
	assert.Equal(t, "WARN", unreachable[0].Level)
	assert.Equal(t, "https://peps.python.org/pep-0404/", unreachable[0].Fields["url"])

	noStatus := messages(t, logs, "page declares no status")
	require.Len(t, noStatus, 1)
	assert.Equal(t, "https://peps.python.org/pep-0500/", noStatus[0].Fields["url"])

	assert.EqualValues(t, 1, metrics.Counter("pep.mismatch"))
	assert.EqualValues(t, 1, metrics.Counter("pep.unknown_code"))
}

func TestPEP_MissingHeaderBlockIsFatal(t *testing.T) {
	site := pepSite(t)
	site["pep-0008/"] = `<html><body><dl class="docutils"><dt>Status</dt><dd>Final</dd></dl></body></html>`
	g := newFakeGetter().add(pepRoot, site)
	p, _, _ := newTestParser(t, g)

	tbl, err := p.PEP(context.Background())
	assert.Nil(t, tbl)

	var nf *dom.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "dl", nf.Tag)
}

func TestPEP_IndexLayout(t *testing.T) {
	g := newFakeGetter().add(pepRoot, map[string]string{
		"": `<html><body><section id="introduction"></section></body></html>`,
	})
	p, _, _ := newTestParser(t, g)

	_, err := p.PEP(context.Background())
	assert.ErrorIs(t, err, dom.ErrNotFound)
	assert.Equal(t, `tag <section id="numerical-index"> not found`, err.Error())
}

func TestPEP_Cancelled(t *testing.T) {
	g := newFakeGetter().add(pepRoot, pepSite(t))
	p, _, _ := newTestParser(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.PEP(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreviewCode(t *testing.T) {
	tests := map[string]string{
		"SF":   "F",
		"IA":   "A",
		"S":    "",
		"":     "",
		" PW ": "W",
		"ÜF":   "F",
	}
	for cell, want := range tests {
		assert.Equal(t, want, previewCode(cell), "previewCode(%q)", cell)
	}
}

func TestDeclaredStatus(t *testing.T) {
	doc, err := dom.Parse([]byte(pepPage("Provisional")))
	require.NoError(t, err)

	status, ok, err := declaredStatus(doc.Selection)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Provisional", status)

	doc, err = dom.Parse([]byte(`<dl class="rfc2822 field-list simple"><dt>Status</dt><dd>Final</dd></dl>`))
	require.NoError(t, err)
	status, ok, err = declaredStatus(doc.Selection)
	require.NoError(t, err)
	assert.True(t, ok, "plain term without colon")
	assert.Equal(t, "Final", status)

	doc, err = dom.Parse([]byte(pepPage("")))
	require.NoError(t, err)
	_, ok, err = declaredStatus(doc.Selection)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestPEP_ServedFromCache runs the pep mode twice against a live server through
// a real Fetcher. The second run must produce the same table without
// refetching any page that was cached.
func TestPEP_ServedFromCache(t *testing.T) {
	site := pepSite(t)

	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/peps/")
		mu.Lock()
		hits[path]++
		mu.Unlock()

		body, ok := site[path]
		if !ok {
			// Drop the connection so the client sees a transport failure.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		io.WriteString(w, body)
	}))
	defer server.Close()

	f := fetcher.New(httpcache.NewMemory(0), fetcher.WithLogger(logger.Discard()))
	cfg := testConfig()
	cfg.PEPURL = server.URL + "/peps/"
	p := New(f, cfg, nil, WithLogger(logger.Discard()), WithMetrics(logger.NewMetrics()))

	first, err := p.PEP(context.Background())
	require.NoError(t, err)

	mu.Lock()
	before := map[string]int{}
	for k, v := range hits {
		before[k] = v
	}
	mu.Unlock()

	second, err := p.PEP(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(first.Records(), second.Records()); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, "5", second.Records()[len(second.Records())-1][1])

	mu.Lock()
	defer mu.Unlock()
	for path := range site {
		assert.Equal(t, before[path], hits[path], "cached page %q refetched", path)
	}
}

func TestProgress(t *testing.T) {
	g := newFakeGetter().add(pepRoot, pepSite(t))
	p := New(g, testConfig(), nil,
		WithLogger(logger.Discard()),
		WithMetrics(logger.NewMetrics()),
		WithProgress(io.Discard),
	)

	tbl, err := p.PEP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, tbl.Len())

	var nilBar *bar
	nilBar.increment()
	nilBar.finish()
	assert.Nil(t, startBar(nil, "pep", 3))
	assert.Nil(t, startBar(io.Discard, "pep", 0))
}
