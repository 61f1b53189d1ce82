package utils

import (
	"bytes"
	stdhtml "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	// 评论只允许基础排版，不允许图片和标题
	policy = bluemonday.NewPolicy()
	strict = bluemonday.StrictPolicy()
)

func init() {
	policy.AllowElements("p", "br", "strong", "em", "del", "code", "pre", "blockquote", "ul", "ol", "li")
	policy.AllowStandardURLs()
	policy.AllowAttrs("href").OnElements("a")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
}

// RenderMarkdown converts comment/reply markdown to sanitized HTML.
func RenderMarkdown(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return strict.Sanitize(source)
	}

	sanitized := policy.SanitizeBytes(buf.Bytes())
	return EnhanceLinks(string(sanitized))
}

// StripHTML removes every tag from user input before it is stored.
// Entities escaped by the sanitizer are decoded again so "a & b" survives.
func StripHTML(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(strict.Sanitize(s)))
}
