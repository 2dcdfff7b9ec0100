package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// MailPolicy is the sanitization policy applied to composed and displayed
// mail bodies.
var MailPolicy *bluemonday.Policy

func init() {
	MailPolicy = bluemonday.UGCPolicy()

	// Rich-text editors emit a fairly small element set; allow it plus the
	// usual structural tags found in mail bodies.
	MailPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	MailPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	MailPolicy.AllowElements("ul", "ol", "li")
	MailPolicy.AllowElements("blockquote")
	MailPolicy.AllowElements("a", "img")

	MailPolicy.AllowAttrs("href").OnElements("a")
	MailPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	MailPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	MailPolicy.RequireParseableURLs(true)
	MailPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeMailHTML sanitizes an HTML mail body for storage and display.
func SanitizeMailHTML(body string) string {
	return MailPolicy.Sanitize(body)
}

// PreviewText extracts the plain text of an HTML body and trims it to at
// most max characters, breaking at a word boundary where possible.
func PreviewText(body string, max int) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(body))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return trimPreview(sb.String(), max)
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func trimPreview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	if idx := strings.LastIndex(text[:max], " "); idx > 0 {
		return text[:idx] + "..."
	}
	return text[:max] + "..."
}
