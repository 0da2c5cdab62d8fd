package matcher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/brokerscan/internal/model"
)

// page is a parsed broker response.
type page struct {
	doc *goquery.Document
}

// parsePage parses body. Script and style contents are removed so they do
// not leak into the visible text.
func parsePage(body string) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript").Remove()
	return &page{doc: doc}, nil
}

// text returns the folded visible text with whitespace collapsed.
func (p *page) text() string {
	return normalizeText(p.doc.Text())
}

// title returns the first h1, h2 or title element's text, truncated.
func (p *page) title() string {
	sel := p.doc.Find("h1, h2, title").First()
	if sel.Length() == 0 {
		return ""
	}
	return truncate(collapse(sel.Text()), titleMaxRunes)
}

// anchors calls fn for each anchor until fn returns false.
func (p *page) anchors(fn func(href, text string) bool) {
	p.doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return fn(strings.TrimSpace(href), collapse(s.Text()))
	})
}

// collapse joins the whitespace-separated fields of s with single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeText collapses whitespace and folds case and accents.
func normalizeText(s string) string {
	return model.FoldText(collapse(s))
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// containsName reports whether folded text contains both tokens, or only
// first when last is empty.
func containsName(text, first, last string) bool {
	if first == "" {
		return false
	}
	if last == "" {
		return strings.Contains(text, first)
	}
	return strings.Contains(text, first) && strings.Contains(text, last)
}
