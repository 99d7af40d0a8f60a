// Package textutil holds small text-cleaning helpers shared by the
// ingestion pipeline.
package textutil

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ExcerptLen is the display-excerpt budget for report descriptions.
const ExcerptLen = 300

var (
	htmlTagRe = regexp.MustCompile(`<.*?>|&([a-z0-9]+|#[0-9]{1,6}|#x[0-9a-f]{1,6});`)
	addrRe    = regexp.MustCompile(`<(.*?)>`)
	etagRe    = regexp.MustCompile(`"(.*?)"`)
)

// StripHTML removes tags and entities from an email body.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// Excerpt returns the HTML-stripped body truncated to the first ExcerptLen
// characters, suitable for the report description column.
func Excerpt(body string) string {
	cleaned := []rune(StripHTML(body))
	if len(cleaned) > ExcerptLen {
		cleaned = cleaned[:ExcerptLen]
	}
	return string(cleaned)
}

// SenderAddress extracts the bare address from a From header such as
// `"Analyst Desk" <desk@broker.example>`. Headers without angle brackets
// are returned as-is.
func SenderAddress(from string) string {
	m := addrRe.FindStringSubmatch(from)
	if len(m) < 2 {
		logrus.Warnf("no address in From header %q, using raw value", from)
		return strings.TrimSpace(from)
	}
	return m[1]
}

// DomainSuffix returns the sender's domain including the '@', the
// allow-list key. Addresses with no '@' yield the empty string.
func DomainSuffix(addr string) string {
	i := strings.LastIndex(addr, "@")
	if i < 0 {
		return ""
	}
	return addr[i:]
}

// UnquoteETag strips the double quotes the object store wraps around
// returned ETags.
func UnquoteETag(etag string) string {
	m := etagRe.FindStringSubmatch(etag)
	if len(m) < 2 {
		return etag
	}
	return m[1]
}
