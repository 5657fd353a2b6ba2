// Package markdown implements scraper.Converter using html-to-markdown.
package markdown

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Converter renders parsed pages as GitHub-flavored Markdown.
type Converter struct {
	converter *md.Converter
}

// New creates a Converter.
func New() *Converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &Converter{converter: c}
}

// Convert renders the page as Markdown: title heading, optional description,
// then the converted content. Runs of three or more newlines are collapsed
// to a single blank line. An empty page converts to the empty string.
func (c *Converter) Convert(page scraper.Page) (string, error) {
	body, err := c.converter.ConvertString(page.ContentHTML)
	if err != nil {
		return "", &scraper.ConversionError{Err: err}
	}

	var b strings.Builder
	if page.Title != "" {
		b.WriteString("# ")
		b.WriteString(page.Title)
		b.WriteString("\n\n")
	}
	if page.Description != "" {
		b.WriteString(page.Description)
		b.WriteString("\n\n")
	}
	b.WriteString(body)

	out := excessNewlines.ReplaceAllString(b.String(), "\n\n")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}
