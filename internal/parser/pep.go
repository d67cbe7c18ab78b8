package parser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/pydocs/internal/dom"
	"github.com/pfrederiksen/pydocs/internal/logger"
	"github.com/pfrederiksen/pydocs/internal/reconcile"
	"github.com/pfrederiksen/pydocs/internal/report"
)

// PEP walks the numerical PEP index, reads the status from every PEP page and
// returns the number of PEPs per preview code.
func (p *Parser) PEP(ctx context.Context) (*report.Table, error) {
	indexURL := p.cfg.PEPURL

	root, err := p.page(ctx, indexURL)
	if root == nil || err != nil {
		return nil, err
	}

	section, err := dom.FindRequired(root, "section", dom.Attr("id", "numerical-index"))
	if err != nil {
		return nil, err
	}
	tbody, err := dom.FindRequired(section, "tbody")
	if err != nil {
		return nil, err
	}
	rows := tbody.Find("tr")

	rec := reconcile.New(reconcile.NewExpectedTable(p.cfg.ExpectedStatus), p.log).WithMetrics(p.metrics)
	progress := startBar(p.progress, "pep", rows.Length())
	defer progress.finish()

	for i := 0; i < rows.Length(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress.increment()
		row := rows.Eq(i)

		td, err := dom.FindRequired(row, "td")
		if err != nil {
			return nil, err
		}
		code := previewCode(td.Text())

		ref, err := href(row)
		if err != nil {
			return nil, err
		}
		link, err := resolve(indexURL, ref)
		if err != nil {
			return nil, err
		}

		detail, err := p.page(ctx, link)
		if err != nil {
			return nil, err
		}
		if detail == nil {
			p.log.Warn("could not open page", logger.Fields{"url": link})
			continue
		}

		status, ok, err := declaredStatus(detail)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.log.Warn("page declares no status", logger.Fields{"url": link})
			continue
		}

		rec.Observe(code, status, link)
	}

	return rec.Table(), nil
}

// previewCode drops the type letter from an index cell such as "SF", leaving
// the status letter. A single-letter cell yields the empty code.
func previewCode(cell string) string {
	runes := []rune(strings.TrimSpace(cell))
	if len(runes) == 0 {
		return ""
	}
	return string(runes[1:])
}

// declaredStatus reads the Status field from the header block of a PEP page.
// The header block itself is required; ok is false when it has no Status term.
func declaredStatus(page *goquery.Selection) (status string, ok bool, err error) {
	fields, err := dom.FindRequired(page, "dl", dom.Attr("class", "rfc2822 field-list simple"))
	if err != nil {
		return "", false, err
	}

	term := dom.Find(fields, "dt").FilterFunction(func(_ int, dt *goquery.Selection) bool {
		return fieldName(dt.Text()) == "Status"
	}).First()
	if term.Length() == 0 {
		return "", false, nil
	}

	dd := term.NextAllFiltered("dd").First()
	if dd.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(dd.Text()), true, nil
}

func fieldName(text string) string {
	return strings.TrimSuffix(strings.TrimSpace(text), ":")
}
