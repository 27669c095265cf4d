package scraper

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// goqueryDocument is a Document backed by a parsed goquery tree
type goqueryDocument struct {
	url string
	doc *goquery.Document
}

// NewDocument parses HTML from r into a Document
func NewDocument(url string, r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &goqueryDocument{url: url, doc: doc}, nil
}

// NewDocumentFromString parses an HTML string into a Document
func NewDocumentFromString(url, html string) (Document, error) {
	return NewDocument(url, strings.NewReader(html))
}

func (d *goqueryDocument) Locate(selector string) Element {
	if selector == "" {
		return nil
	}
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return &goqueryElement{sel: sel}
}

func (d *goqueryDocument) BodyText() string {
	body := d.doc.Find("body").First()
	if body.Length() == 0 {
		body = d.doc.Selection
	}
	clean := body.Clone()
	clean.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(clean.Text()), " ")
}

func (d *goqueryDocument) URL() string {
	return d.url
}

type goqueryElement struct {
	sel *goquery.Selection
}

func (e *goqueryElement) Text() string {
	return strings.Join(strings.Fields(e.sel.Text()), " ")
}

func (e *goqueryElement) Attr(name string) (string, bool) {
	v, ok := e.sel.Attr(name)
	return strings.TrimSpace(v), ok
}
