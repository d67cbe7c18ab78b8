package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/pfrederiksen/pydocs/internal/dom"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/report"
)

var (
	ErrNoStorage = errors.New("no storage configured")

	pdfA4Pattern = regexp.MustCompile(`.+pdf-a4\.zip$`)
)

// Download saves the A4 PDF documentation archive under downloads/. It
// produces no table.
func (p *Parser) Download(ctx context.Context) (*report.Table, error) {
	if p.store == nil {
		return nil, ErrNoStorage
	}

	pageURL, err := resolve(p.cfg.DocURL, "download.html")
	if err != nil {
		return nil, err
	}

	root, err := p.page(ctx, pageURL)
	if root == nil || err != nil {
		return nil, err
	}

	content, err := dom.FindRequired(root, "div", dom.Attr("role", "main"))
	if err != nil {
		return nil, err
	}
	table, err := dom.FindRequired(content, "table", dom.Attr("class", "docutils"))
	if err != nil {
		return nil, err
	}
	link, err := dom.FindRequired(table, "a", dom.AttrPattern("href", pdfA4Pattern))
	if err != nil {
		return nil, err
	}

	archiveURL, err := resolve(pageURL, link.AttrOr("href", ""))
	if err != nil {
		return nil, err
	}
	name, err := archiveName(archiveURL)
	if err != nil {
		return nil, err
	}

	data, err := p.fetch.Download(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	p.metrics.SetGauge("download.bytes", float64(len(data)))

	archivePath, err := p.store.SaveDownload(name, data)
	if err != nil {
		return nil, err
	}

	p.log.Info("archive downloaded and saved", logger.Fields{"path": archivePath, "url": archiveURL})
	return nil, nil
}

// archiveName is the last path segment of archiveURL.
func archiveName(archiveURL string) (string, error) {
	u, err := url.Parse(archiveURL)
	if err != nil {
		return "", fmt.Errorf("parsing archive URL: %w", err)
	}
	return path.Base(u.Path), nil
}
