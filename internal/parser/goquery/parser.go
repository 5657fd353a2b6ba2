// Package goqueryparser implements scraper.Parser using goquery.
package goqueryparser

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Tags removed before content extraction. Noise tags carry no readable
// content; boilerplate tags repeat on every page of a site.
var (
	noiseTags       = []string{"script", "style", "iframe", "noscript", "meta", "link", "svg", "form", "input", "button"}
	boilerplateTags = []string{"header", "footer", "nav", "aside"}
)

// Attributes preserved on content elements. Everything else (classes, ids,
// inline styles, data-* handlers) is stripped before conversion.
var allowedAttrs = map[string]bool{
	"src":   true,
	"href":  true,
	"alt":   true,
	"title": true,
}

const defaultTitle = "No title"

// Parser extracts structure and outgoing links from HTML documents.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse builds the structured page for html as served at baseURL. Outgoing
// links are resolved against baseURL, restricted to http(s), and returned in
// normalized form with duplicates removed. Links are collected before the
// content cleanup so navigation links still feed the crawl.
func (p *Parser) Parse(html []byte, baseURL string) (scraper.Page, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return scraper.Page{}, &scraper.ParseError{URL: baseURL, Err: errors.New("empty document")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return scraper.Page{}, &scraper.ParseError{URL: baseURL, Err: err}
	}

	page := scraper.Page{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Links:       extractLinks(doc, baseURL),
	}

	body := doc.Find("body")
	cleanContent(body)
	content, err := body.Html()
	if err != nil {
		return scraper.Page{}, &scraper.ParseError{URL: baseURL, Err: err}
	}
	page.ContentHTML = content

	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return defaultTitle
	}
	return title
}

func extractDescription(doc *goquery.Document) string {
	desc, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	return strings.TrimSpace(desc)
}

func extractLinks(doc *goquery.Document, baseURL string) []string {
	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := scraper.ResolveLink(baseURL, href)
		if err != nil {
			return
		}
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links
}

func cleanContent(body *goquery.Selection) {
	for _, tag := range noiseTags {
		body.Find(tag).Remove()
	}
	for _, tag := range boilerplateTags {
		body.Find(tag).Remove()
	}
	body.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		var drop []string
		for _, attr := range sel.Nodes[0].Attr {
			if !allowedAttrs[attr.Key] {
				drop = append(drop, attr.Key)
			}
		}
		for _, key := range drop {
			sel.RemoveAttr(key)
		}
	})
}
