package parser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/pydocs/internal/dom"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/report"
)

// WhatsNew lists every "What's New" article with its title and editors.
func (p *Parser) WhatsNew(ctx context.Context) (*report.Table, error) {
	indexURL, err := resolve(p.cfg.DocURL, "whatsnew/")
	if err != nil {
		return nil, err
	}

	root, err := p.page(ctx, indexURL)
	if root == nil || err != nil {
		return nil, err
	}

	mainDiv, err := dom.FindRequired(root, "div", dom.Attr("id", "what-s-new-in-python"))
	if err != nil {
		return nil, err
	}
	wrapper, err := dom.FindRequired(mainDiv, "div", dom.Attr("class", "toctree-wrapper"))
	if err != nil {
		return nil, err
	}
	sections := dom.Find(wrapper, "li", dom.Attr("class", "toctree-l1"))

	results := report.New("Article link", "Title", "Editor / Author")
	progress := startBar(p.progress, "whats-new", sections.Length())
	defer progress.finish()

	for i := 0; i < sections.Length(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress.increment()

		ref, err := href(sections.Eq(i))
		if err != nil {
			return nil, err
		}
		link, err := resolve(indexURL, ref)
		if err != nil {
			return nil, err
		}

		article, err := p.page(ctx, link)
		if err != nil {
			return nil, err
		}
		if article == nil {
			continue
		}

		title, authors, err := articleHeading(article)
		if err != nil {
			return nil, err
		}
		results.Add(link, title, authors)
	}

	p.log.Debug("whats-new articles collected", logger.Fields{"count": results.Len()})
	return results, nil
}

// articleHeading returns the <h1> text and the first <dl> text flattened to one line.
func articleHeading(article *goquery.Selection) (string, string, error) {
	h1, err := dom.FindRequired(article, "h1")
	if err != nil {
		return "", "", err
	}
	dl, err := dom.FindRequired(article, "dl")
	if err != nil {
		return "", "", err
	}
	return h1.Text(), strings.ReplaceAll(dl.Text(), "\n", " "), nil
}
