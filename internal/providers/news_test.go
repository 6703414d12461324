// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package providers

import (
	"context"
	"testing"
	"time"

	"github.com/rcpassos/marketscope/internal/models"
)

func testAllowList() []string {
	return []string{"agenciabrasil.ebc.com.br", "www.ibge.gov.br"}
}

func TestNewsBuildRequestEnforcesAllowList(t *testing.T) {
	adapter := NewNewsAdapter(testAllowList())

	spec := NewSearchQuery("agenciabrasil.ebc.com.br", "economia", 30)
	req, err := adapter.BuildRequest(context.Background(), spec)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.URL.Host != "agenciabrasil.ebc.com.br" {
		t.Errorf("host = %s", req.URL.Host)
	}
	if req.URL.Query().Get("q") != "economia" {
		t.Errorf("query = %q", req.URL.Query().Get("q"))
	}

	bad := NewSearchQuery("evil.example.com", "economia", 30)
	if _, err := adapter.BuildRequest(context.Background(), bad); err == nil {
		t.Fatal("non-allow-listed domain must be refused before any request is built")
	}
}

const newsListing = `<html><body>
<article>
  <h2>Inflação desacelera em agosto</h2>
  <a href="/noticia/inflacao-agosto">leia mais</a>
  <time datetime="2026-08-20T10:30:00Z"></time>
  <p>O índice oficial registrou queda.</p>
  <p>Analistas esperavam alta.</p>
</article>
<article>
  <h2>Link externo suspeito</h2>
  <a href="https://evil.example.com/phishing">leia</a>
  <p>corpo</p>
</article>
<article>
  <h2>Sem data mas com link bom</h2>
  <a href="https://www.ibge.gov.br/novidades/1"></a>
  <p>corpo</p>
</article>
</body></html>`

func TestNewsParse(t *testing.T) {
	adapter := NewNewsAdapter(testAllowList())

	raw := models.RawResponse{
		Provider: models.ProviderNews,
		URL:      "https://agenciabrasil.ebc.com.br/busca?q=economia",
		Body:     []byte(newsListing),
	}
	result := adapter.Parse(raw)

	if len(result.Articles) != 2 {
		t.Fatalf("articles = %d, want 2 (off-list link discarded)", len(result.Articles))
	}
	if !result.Partial {
		t.Error("a discarded article must mark the result partial")
	}

	first := result.Articles[0]
	if first.Title != "Inflação desacelera em agosto" {
		t.Errorf("title = %q", first.Title)
	}
	if first.URL != "https://agenciabrasil.ebc.com.br/noticia/inflacao-agosto" {
		t.Errorf("relative link not resolved against the page URL: %q", first.URL)
	}
	if first.Source != "agenciabrasil.ebc.com.br" {
		t.Errorf("source = %q", first.Source)
	}
	if first.PublishedAt.IsZero() {
		t.Error("published time should be parsed from <time datetime>")
	}
	if first.Body == "" {
		t.Error("body paragraphs should be extracted")
	}

	for _, a := range result.Articles {
		if a.Source == "evil.example.com" {
			t.Error("off-list source leaked into results")
		}
	}
}

func TestNewsParseNoArticlesIsPartial(t *testing.T) {
	adapter := NewNewsAdapter(testAllowList())

	result := adapter.Parse(models.RawResponse{Body: []byte("<html><body><p>nada</p></body></html>")})
	if !result.Partial || len(result.Articles) != 0 {
		t.Errorf("want empty partial result, got %+v", result)
	}
}

func TestWithinWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	articles := []models.Article{
		{Title: "fresh", PublishedAt: now.AddDate(0, 0, -5)},
		{Title: "stale", PublishedAt: now.AddDate(0, 0, -60)},
		{Title: "undated"},
	}

	kept := WithinWindow(articles, 30, now)
	if len(kept) != 1 || kept[0].Title != "fresh" {
		t.Errorf("kept = %v, want only the fresh article", kept)
	}

	all := WithinWindow(articles, 0, now)
	if len(all) != 3 {
		t.Errorf("a zero window must keep everything, got %d", len(all))
	}
}

func TestAllowedMatchesSubdomains(t *testing.T) {
	adapter := NewNewsAdapter([]string{"ebc.com.br"})

	if !adapter.Allowed("agenciabrasil.ebc.com.br") {
		t.Error("subdomain of an allow-listed domain should pass")
	}
	if adapter.Allowed("ebc.com.br.evil.com") {
		t.Error("suffix spoofing must not pass")
	}
}
