package parser

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/pydocs/internal/dom"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/report"
)

// versionPattern matches sidebar links like "Python 3.12 (stable)".
var versionPattern = regexp.MustCompile(`^Python (?P<version>\d\.\d+) \((?P<status>.*)\)`)

// LatestVersions lists the documentation versions linked from the sidebar of
// the documentation root.
func (p *Parser) LatestVersions(ctx context.Context) (*report.Table, error) {
	root, err := p.page(ctx, p.cfg.DocURL)
	if root == nil || err != nil {
		return nil, err
	}

	sidebar, err := dom.FindRequired(root, "div", dom.Attr("class", "sphinxsidebarwrapper"))
	if err != nil {
		return nil, err
	}

	lists := sidebar.Find("ul")
	versions := lists.FilterFunction(func(_ int, ul *goquery.Selection) bool {
		return strings.Contains(ul.Text(), "All versions")
	}).First()
	if versions.Length() == 0 {
		p.log.Error("version list not found", logger.Fields{"url": p.cfg.DocURL}, ErrNothingFound)
		return nil, ErrNothingFound
	}

	results := report.New("Documentation link", "Version", "Status")
	links := versions.Find("a")
	for i := 0; i < links.Length(); i++ {
		a := links.Eq(i)
		version, status := parseVersion(a.Text())
		results.Add(a.AttrOr("href", ""), version, status)
	}
	return results, nil
}

// parseVersion splits "Python 3.12 (stable)" into "3.12" and "stable". Text
// that does not follow that shape is returned whole with an empty status.
func parseVersion(text string) (version, status string) {
	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return text, ""
	}
	return m[versionPattern.SubexpIndex("version")], m[versionPattern.SubexpIndex("status")]
}
