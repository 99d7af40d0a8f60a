package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello", StripHTML("<p>Hello</p>"))
	assert.Equal(t, "a b", StripHTML("<div>a&nbsp;b</div>"))
	assert.Equal(t, "plain text", StripHTML("  plain text  "))
	assert.Equal(t, "nested", StripHTML("<div><span>nested</span></div>"))
}

func TestExcerptTruncation(t *testing.T) {
	long := strings.Repeat("甲", 400)
	got := Excerpt("<p>" + long + "</p>")
	assert.Equal(t, ExcerptLen, len([]rune(got)))

	assert.Equal(t, "short", Excerpt("short"))
}

func TestSenderAddress(t *testing.T) {
	assert.Equal(t, "desk@broker.example",
		SenderAddress(`"Analyst Desk" <desk@broker.example>`))
	assert.Equal(t, "bare@broker.example", SenderAddress("bare@broker.example"))
}

func TestDomainSuffix(t *testing.T) {
	assert.Equal(t, "@broker.example", DomainSuffix("desk@broker.example"))
	assert.Equal(t, "@b.example", DomainSuffix("weird@name@b.example"))
	assert.Equal(t, "", DomainSuffix("no-at-sign"))
}

func TestUnquoteETag(t *testing.T) {
	assert.Equal(t, "abc123", UnquoteETag(`"abc123"`))
	assert.Equal(t, "already-bare", UnquoteETag("already-bare"))
}
