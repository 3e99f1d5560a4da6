// Package extract turns raw HTML into structured page content. It is a pure
// function over its inputs: no network I/O, no shared state, safe to call
// standalone for ad-hoc analysis of already-fetched HTML.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

const (
	maxImages = 10
	maxLinks  = 20
)

// mainContentSelectors are probed in priority order before falling back to
// the stripped document body.
var mainContentSelectors = []string{
	"article", "main", ".content", "#content",
	".post-content", ".entry-content", ".article-content",
}

// Document is the structured output of one extraction.
type Document struct {
	URL             string         `json:"url"`
	Title           string         `json:"title,omitempty"`
	MetaDescription string         `json:"meta_description,omitempty"`
	MetaKeywords    []string       `json:"meta_keywords,omitempty"`
	Content         string         `json:"content,omitempty"`
	WordCount       int            `json:"word_count"`
	ImageCount      int            `json:"image_count"`
	LinkCount       int            `json:"link_count"`
	Images          []string       `json:"extracted_images,omitempty"`
	Links           []string       `json:"extracted_links,omitempty"`
	StructuredData  map[string]any `json:"structured_data,omitempty"`
}

// Extract parses rawHTML and applies the extraction rules. Relative image and
// link URLs are resolved against pageURL. Each caller-supplied selector is
// applied to the whole document; selectors with zero matches are omitted, and
// a StructuredData of nil means no selector produced anything.
func Extract(rawHTML, pageURL string, selectors map[string]string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Document{}, &scraper.ExtractionError{Err: err}
	}

	out := Document{URL: pageURL}
	out.Title = collapse(doc.Find("title").First().Text())

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		out.MetaDescription = strings.TrimSpace(desc)
	}
	if kw, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		out.MetaKeywords = splitKeywords(kw)
	}

	out.Content = mainContent(doc)
	out.WordCount = len(strings.Fields(out.Content))

	images := doc.Find("img")
	links := doc.Find("a[href]")
	out.ImageCount = images.Length()
	out.LinkCount = links.Length()

	base, baseErr := url.Parse(pageURL)
	images.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if ok && src != "" {
			out.Images = append(out.Images, resolveRef(base, baseErr, src))
		}
		return len(out.Images) < maxImages
	})
	links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if ok && href != "" && !strings.HasPrefix(href, "#") {
			out.Links = append(out.Links, resolveRef(base, baseErr, href))
		}
		return len(out.Links) < maxLinks
	})

	out.StructuredData = applySelectors(doc, selectors)
	return out, nil
}

// Links returns the anchor targets found in rawHTML resolved against pageURL,
// capped at limit. Fragment-only links are skipped.
func Links(rawHTML, pageURL string, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &scraper.ExtractionError{Err: err}
	}
	base, baseErr := url.Parse(pageURL)
	var out []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if ok && href != "" && !strings.HasPrefix(href, "#") {
			out = append(out, resolveRef(base, baseErr, href))
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// Images returns the image sources found in rawHTML resolved against pageURL,
// capped at limit.
func Images(rawHTML, pageURL string, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, &scraper.ExtractionError{Err: err}
	}
	base, baseErr := url.Parse(pageURL)
	var out []string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if ok && src != "" {
			out = append(out, resolveRef(base, baseErr, src))
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

func mainContent(doc *goquery.Document) string {
	for _, sel := range mainContentSelectors {
		if text := collapse(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	stripped := body.Clone()
	stripped.Find("script, style, nav, header, footer").Remove()
	return collapse(stripped.Text())
}

func applySelectors(doc *goquery.Document, selectors map[string]string) map[string]any {
	if len(selectors) == 0 {
		return nil
	}
	structured := make(map[string]any)
	for key, sel := range selectors {
		matches := doc.Find(sel)
		switch matches.Length() {
		case 0:
		case 1:
			structured[key] = collapse(matches.Text())
		default:
			values := make([]string, 0, matches.Length())
			matches.Each(func(_ int, s *goquery.Selection) {
				values = append(values, collapse(s.Text()))
			})
			structured[key] = values
		}
	}
	if len(structured) == 0 {
		return nil
	}
	return structured
}

func resolveRef(base *url.URL, baseErr error, ref string) string {
	if baseErr != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		return nil
	}
	return keywords
}

// collapse reduces text to single-space-separated visible tokens.
func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
