package matcher

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/brokerscan/internal/model"
)

// blacklistedPathTerms mark navigation and legal pages that never hold a listing.
var blacklistedPathTerms = []string{
	"help", "privacy", "terms", "login", "signin", "signup", "register",
	"pricing", "about", "contact", "faq", "support", "blog", "careers",
	"opt-out", "optout", "removal", "dmca", "legal", "cookie", "account",
}

// profilePathMarkers are path fragments of person or result pages.
var profilePathMarkers = []string{
	"/name/", "/person/", "/people/", "/profile/", "/details",
	"/result", "/records", "/people-search/",
}

// anchor is an <a href> with its text.
type anchor struct {
	href string
	text string
}

// ExtractLinks returns profile-looking links of body that belong to domain.
// Relative hrefs are resolved against https://<domain>/. Links on another
// host (subdomains of domain are allowed), navigation or legal pages and
// paths without a profile marker are dropped. When both first and last are
// given, each link must carry both tokens in its path or in its anchor
// text. At most limit links are returned, deduplicated in page order.
func ExtractLinks(body, domain, first, last string, limit int) []string {
	base := &url.URL{Scheme: "https", Host: domain, Path: "/"}
	return extractLinks(body, base, domain, model.FoldText(first), model.FoldText(last), limit)
}

func extractLinks(body string, base *url.URL, domain, first, last string, limit int) []string {
	if limit <= 0 || body == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	links := make([]string, 0, limit)
	for _, a := range collectAnchors(doc) {
		resolved, ok := resolveHref(base, a.href)
		if !ok {
			continue
		}
		if !sameSite(resolved.Hostname(), domain, base.Hostname()) {
			continue
		}
		path := strings.ToLower(resolved.Path)
		if isBlacklisted(path) || !hasProfileMarker(path) {
			continue
		}
		if first != "" && last != "" {
			foldedPath := model.FoldText(resolved.Path)
			if !containsName(foldedPath, first, last) && !containsName(normalizeText(a.text), first, last) {
				continue
			}
		}

		link := resolved.String()
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
		if len(links) >= limit {
			break
		}
	}
	return links
}

// collectAnchors walks the DOM and returns every anchor with an href.
func collectAnchors(doc *html.Node) []anchor {
	anchors := make([]anchor, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := getAttr(n, "href"); href != "" {
				anchors = append(anchors, anchor{href: href, text: nodeText(n)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return anchors
}

// nodeText concatenates the text nodes below n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// resolveHref resolves href against base, skipping script and mail links.
func resolveHref(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "#"} {
		if strings.HasPrefix(lower, prefix) {
			return nil, false
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	resolved.RawQuery = escapeRawQuery(resolved.RawQuery)
	return resolved, true
}

// escapeRawQuery percent-encodes the bytes url.Parse lets through in a query
// (spaces, controls, non-ASCII and a few delimiters). Existing escapes and
// the order of parameters are kept.
func escapeRawQuery(q string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(q); i++ {
		c := q[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte("\"<>\\^`{|}", c) >= 0 {
			sb.WriteByte('%')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0x0f])
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// sameSite reports whether host is domain, a subdomain of it, or the host
// the page was actually fetched from.
func sameSite(host, domain, fetchedHost string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	if host == domain || strings.HasSuffix(host, "."+domain) {
		return true
	}
	return fetchedHost != "" && host == strings.ToLower(fetchedHost)
}

// isBlacklisted reports whether a segment of path is a blacklisted term.
// Terms match whole segments, ignoring a file extension, so name slugs such
// as "joe-bloggs" survive. The leading segment also matches a term followed
// by a dash or underscore ("/help-center", "/privacy_policy").
func isBlacklisted(path string) bool {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for i, seg := range segments {
		if dot := strings.IndexByte(seg, '.'); dot > 0 {
			seg = seg[:dot]
		}
		for _, term := range blacklistedPathTerms {
			if seg == term {
				return true
			}
			if i == 0 && (strings.HasPrefix(seg, term+"-") || strings.HasPrefix(seg, term+"_")) {
				return true
			}
		}
	}
	return false
}

func hasProfileMarker(path string) bool {
	for _, marker := range profilePathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
