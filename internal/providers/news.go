// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/models"
)

// NewSearchQuery builds a news-scraper QuerySpec against one allow-listed
// domain.
func NewSearchQuery(domain, query string, daysBack int) models.QuerySpec {
	if daysBack <= 0 {
		daysBack = 30
	}
	return models.QuerySpec{
		Provider: models.ProviderNews,
		Role:     models.RoleSupporting,
		Category: models.CategoryMetadata,
		Domains:  []string{domain},
		Query:    query,
		DaysBack: daysBack,
	}
}

// NewsAdapter scrapes article listings from an explicit domain allow-list.
// A spec naming a non-allow-listed domain is refused before any request is
// built, and extracted links outside the allow-list are discarded.
type NewsAdapter struct {
	allowed []string
}

// NewNewsAdapter creates a news adapter restricted to the given domains.
func NewNewsAdapter(allowedDomains []string) *NewsAdapter {
	return &NewsAdapter{allowed: allowedDomains}
}

func (a *NewsAdapter) Provider() models.Provider {
	return models.ProviderNews
}

// Allowed reports whether a host is covered by the allow-list, either
// exactly or as a subdomain.
func (a *NewsAdapter) Allowed(host string) bool {
	host = strings.ToLower(host)
	for _, d := range a.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (a *NewsAdapter) BuildRequest(ctx context.Context, spec models.QuerySpec) (*http.Request, error) {
	if len(spec.Domains) == 0 {
		return nil, fmt.Errorf("news query needs a target domain")
	}
	domain := spec.Domains[0]
	if !a.Allowed(domain) {
		return nil, fmt.Errorf("domain %q is not on the allow-list", domain)
	}

	q := url.Values{}
	q.Set("q", spec.Query)
	return http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain+"/busca?"+q.Encode(), nil)
}

// Parse extracts article records from a listing page. Each <article>
// element contributes one record: its first heading as the title, its
// paragraphs as the body, its first link as the URL and its <time datetime>
// as the publication time. Articles linking outside the allow-list are
// dropped; the recency window is applied downstream via WithinWindow, since
// the parser does not see the spec.
func (a *NewsAdapter) Parse(raw models.RawResponse) models.NormalizedResult {
	doc, err := html.Parse(strings.NewReader(string(raw.Body)))
	if err != nil {
		logging.Warn().Err(err).Msg("malformed news page, degrading to partial")
		return partial(models.ProviderNews)
	}

	base, _ := url.Parse(raw.URL)
	result := models.NormalizedResult{Provider: models.ProviderNews}

	for _, node := range findAll(doc, "article") {
		article, ok := a.extractArticle(node, base)
		if !ok {
			result.Partial = true
			continue
		}
		result.Articles = append(result.Articles, article)
	}

	if len(result.Articles) == 0 {
		return partial(models.ProviderNews)
	}
	return result
}

func (a *NewsAdapter) extractArticle(node *html.Node, base *url.URL) (models.Article, bool) {
	article := models.Article{
		Title: firstHeadingText(node),
		Body:  paragraphText(node),
	}
	if article.Title == "" {
		return models.Article{}, false
	}

	href := firstAttr(node, "a", "href")
	if href != "" {
		ref, err := url.Parse(href)
		if err != nil {
			return models.Article{}, false
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if !a.Allowed(ref.Hostname()) {
			return models.Article{}, false
		}
		article.URL = ref.String()
		article.Source = ref.Hostname()
	} else if base != nil {
		article.Source = base.Hostname()
	}

	if stamp := firstAttr(node, "time", "datetime"); stamp != "" {
		if ts, ok := parsePublishedAt(stamp); ok {
			article.PublishedAt = ts
		}
	}
	return article, true
}

// WithinWindow filters articles to the spec's recency window. Articles
// without a parseable publication time are dropped when a window applies.
func WithinWindow(articles []models.Article, daysBack int, now time.Time) []models.Article {
	if daysBack <= 0 {
		return articles
	}
	cutoff := now.AddDate(0, 0, -daysBack)
	kept := articles[:0:0]
	for _, a := range articles {
		if !a.PublishedAt.IsZero() && !a.PublishedAt.Before(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

var publishedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

func parsePublishedAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range publishedAtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// HTML walking helpers built on x/net/html.

func findAll(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func firstHeadingText(root *html.Node) string {
	for _, tag := range []string{"h1", "h2", "h3"} {
		if nodes := findAll(root, tag); len(nodes) > 0 {
			return strings.TrimSpace(nodeText(nodes[0]))
		}
	}
	return ""
}

func paragraphText(root *html.Node) string {
	var parts []string
	for _, p := range findAll(root, "p") {
		if text := strings.TrimSpace(nodeText(p)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func firstAttr(root *html.Node, tag, attr string) string {
	nodes := findAll(root, tag)
	if len(nodes) == 0 {
		return ""
	}
	for _, a := range nodes[0].Attr {
		if a.Key == attr {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
