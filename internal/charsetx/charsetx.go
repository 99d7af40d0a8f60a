// Package charsetx decodes raw header and body bytes through an ordered
// fallback chain of character sets. The terminal fallback (ISO-8859-1)
// accepts any byte sequence, so decoding never fails.
package charsetx

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Default fallback order, tried after the declared charset.
var DefaultFallbacks = []string{"gb18030", "iso-8859-1"}

// knownEncodings pins the fallback charsets so the chain does not depend on
// index lookup spelling.
var knownEncodings = map[string]encoding.Encoding{
	"gb18030":    simplifiedchinese.GB18030,
	"gbk":        simplifiedchinese.GBK,
	"iso-8859-1": charmap.ISO8859_1,
	"latin1":     charmap.ISO8859_1,
}

// Decoder resolves declared charsets and walks the fallback chain.
type Decoder struct {
	fallbacks []string
}

// NewDecoder returns a decoder with the given fallback chain. An empty chain
// falls back to DefaultFallbacks.
func NewDecoder(fallbacks ...string) *Decoder {
	if len(fallbacks) == 0 {
		fallbacks = DefaultFallbacks
	}
	return &Decoder{fallbacks: fallbacks}
}

// Decode converts raw bytes to a string, trying the declared charset first
// and then each fallback in order. Every fallback attempt is logged. The
// final fallback maps bytes one-to-one, so a string is always returned.
func (d *Decoder) Decode(raw []byte, declared string) string {
	if s, ok := tryDecode(raw, declared); ok {
		return s
	}
	for _, name := range d.fallbacks {
		logrus.Infof("charset %q failed, retrying with %q", declared, name)
		if s, ok := tryDecode(raw, name); ok {
			return s
		}
	}
	// Unreachable with the default chain; kept so a misconfigured chain
	// still yields a usable string.
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return string(out)
}

// tryDecode reports whether raw decodes cleanly in the named charset. A
// decode that produces replacement runes counts as a failure so the next
// tier in the chain gets a chance.
func tryDecode(raw []byte, name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		if utf8.Valid(raw) {
			return string(raw), true
		}
		return "", false
	}

	enc, ok := knownEncodings[name]
	if !ok {
		e, err := ianaindex.MIME.Encoding(name)
		if err != nil || e == nil {
			return "", false
		}
		enc = e
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
