// ABOUTME: Markdown rendering for project descriptions
// ABOUTME: Converts with goldmark (GFM) and sanitizes the HTML with bluemonday's UGC policy

package projects

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns user-authored markdown into HTML that is safe to embed.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer creates a renderer with GitHub-flavored markdown enabled.
func NewRenderer() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts markdown to sanitized HTML. Conversion errors fall back to
// the escaped source text.
func (r *Renderer) Render(markdown string) string {
	if markdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return r.policy.Sanitize("<p>" + markdown + "</p>")
	}
	return r.policy.Sanitize(buf.String())
}
