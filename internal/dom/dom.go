// Package dom locates the HTML elements the extractors depend on.
//
// FindRequired is strict: a page without the expected element does not have
// the layout the extractor was written for, so the miss is logged and returned
// as a *NotFoundError that aborts the whole extraction.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/pydocs/internal/logger"
)

// ErrNotFound is wrapped by every NotFoundError.
var ErrNotFound = errors.New("required tag not found")

// NotFoundError names the search that came back empty.
type NotFoundError struct {
	Tag   string
	Attrs []string
}

func (e *NotFoundError) Error() string {
	if len(e.Attrs) == 0 {
		return fmt.Sprintf("tag <%s> not found", e.Tag)
	}
	return fmt.Sprintf("tag <%s %s> not found", e.Tag, strings.Join(e.Attrs, " "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Matcher filters candidate elements.
type Matcher interface {
	Match(sel *goquery.Selection) bool
	String() string
}

type attrExact struct{ key, value string }

// Attr matches an attribute by exact value. For class the whole attribute or
// any single class name may match, so Attr("class", "toctree-wrapper") finds
// <div class="toctree-wrapper compound">.
func Attr(key, value string) Matcher {
	return attrExact{key: key, value: value}
}

func (m attrExact) Match(sel *goquery.Selection) bool {
	v, ok := sel.Attr(m.key)
	if !ok {
		return false
	}
	if v == m.value {
		return true
	}
	if m.key == "class" {
		for _, class := range strings.Fields(v) {
			if class == m.value {
				return true
			}
		}
	}
	return false
}

func (m attrExact) String() string {
	return fmt.Sprintf("%s=%q", m.key, m.value)
}

type attrPattern struct {
	key     string
	pattern *regexp.Regexp
}

// AttrPattern matches an attribute whose value matches pattern, e.g. an href
// ending in pdf-a4.zip.
func AttrPattern(key string, pattern *regexp.Regexp) Matcher {
	return attrPattern{key: key, pattern: pattern}
}

func (m attrPattern) Match(sel *goquery.Selection) bool {
	v, ok := sel.Attr(m.key)
	return ok && m.pattern.MatchString(v)
}

func (m attrPattern) String() string {
	return fmt.Sprintf("%s=~/%s/", m.key, m.pattern)
}

type textExact struct{ value string }

// Text matches elements whose trimmed text equals value.
func Text(value string) Matcher {
	return textExact{value: value}
}

func (m textExact) Match(sel *goquery.Selection) bool {
	return strings.TrimSpace(sel.Text()) == m.value
}

func (m textExact) String() string {
	return fmt.Sprintf("text=%q", m.value)
}

// Parse builds a document from an HTML body.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return doc, nil
}

// Find returns every descendant of sel named tag that satisfies all matchers,
// in document order.
func Find(sel *goquery.Selection, tag string, matchers ...Matcher) *goquery.Selection {
	return sel.Find(tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		for _, m := range matchers {
			if !m.Match(s) {
				return false
			}
		}
		return true
	})
}

// FindRequired returns the first element under sel named tag that satisfies
// all matchers. A miss is logged with the search criteria and returned as a
// *NotFoundError.
func FindRequired(sel *goquery.Selection, tag string, matchers ...Matcher) (*goquery.Selection, error) {
	found := Find(sel, tag, matchers...)
	if found.Length() > 0 {
		return found.First(), nil
	}

	err := &NotFoundError{Tag: tag}
	for _, m := range matchers {
		err.Attrs = append(err.Attrs, m.String())
	}
	logger.Error("required tag not found", logger.Fields{
		"tag":   tag,
		"attrs": strings.Join(err.Attrs, " "),
	}, err)
	return nil, err
}
