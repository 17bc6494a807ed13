// Package render turns article Markdown into sanitized HTML.
package render

import (
	"bytes"
	"html"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"blog-cms/metrics"
	"blog-cms/models"
	"blog-cms/oops"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type cacheKey struct {
	id        uint
	updatedAt int64
}

// Renderer caches rendered articles by id and last update, so an edit
// invalidates the entry without explicit eviction.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strip  *bluemonday.Policy
	cache  *lru.Cache[cacheKey, template.HTML]
}

func New(cacheSize int) (*Renderer, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[cacheKey, template.HTML](cacheSize)
	if err != nil {
		return nil, oops.New(err, "failed to create render cache")
	}

	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
		strip:  bluemonday.StrictPolicy(),
		cache:  cache,
	}, nil
}

// Markdown converts source to HTML that is safe to embed in a page.
func (r *Renderer) Markdown(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", oops.New(err, "failed to convert markdown")
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// Article renders the article body, served from the cache when the article
// has not changed since it was last rendered. Conversion failures fall back
// to the escaped source.
func (r *Renderer) Article(article models.Article) template.HTML {
	key := cacheKey{id: article.ID, updatedAt: article.UpdatedAt.UnixNano()}
	if html, ok := r.cache.Get(key); ok {
		metrics.RecordRenderCache(true)
		return html
	}
	metrics.RecordRenderCache(false)

	html, err := r.Markdown(article.Content)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(article.Content))
	}
	if article.ID != 0 && !article.UpdatedAt.Equal(time.Time{}) {
		r.cache.Add(key, html)
	}
	return html
}

// Excerpt returns at most limit runes of the article's plain text. The text
// is unescaped; templates escape it when printing.
func (r *Renderer) Excerpt(source string, limit int) string {
	rendered, err := r.Markdown(source)
	if err != nil {
		rendered = template.HTML(source)
	}
	plain := html.UnescapeString(r.strip.Sanitize(string(rendered)))
	text := strings.Join(strings.Fields(plain), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func (r *Renderer) Len() int {
	return r.cache.Len()
}

// FuncMap exposes the renderer to templates.
func (r *Renderer) FuncMap() template.FuncMap {
	return template.FuncMap{
		"articleHTML": r.Article,
		"excerpt":     r.Excerpt,
	}
}
