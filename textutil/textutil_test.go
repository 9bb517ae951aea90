package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTextSkipsScriptAndStyle(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
<body>
<script>alert("hi")</script>
<p>Hello   world</p>
<p>Second paragraph</p>
</body></html>`
	got := ExtractText(html)
	assert.Contains(t, got, "Hello world")
	assert.Contains(t, got, "Second paragraph")
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "color:red")
}

func TestExtractTextEmptyInput(t *testing.T) {
	assert.Equal(t, "", ExtractText(""))
}

func TestExtractLinksResolvesAndDeduplicates(t *testing.T) {
	html := `<html><body>
<a href="/a">a</a>
<a href="/a#frag">a again</a>
<a href="https://other.example/b">b</a>
<a href="mailto:x@example.com">mail</a>
</body></html>`
	links := ExtractLinks(html, "https://example.com/page")
	assert.Equal(t, []string{"https://example.com/a", "https://other.example/b"}, links)
}

func TestExtractLinksEmptyInput(t *testing.T) {
	assert.Nil(t, ExtractLinks("", "https://example.com"))
}

func TestSplitChunksOverlap(t *testing.T) {
	text := strings.Repeat("a", 25)
	chunks := SplitChunks(text, 10, 3)
	require := func(cond bool, msg string) {
		if !cond {
			t.Fatal(msg)
		}
	}
	require(len(chunks) > 1, "expected multiple chunks")
	for _, c := range chunks {
		require(len([]rune(c)) <= 10, "chunk exceeds chunkSize")
	}
	assert.Equal(t, text[len(text)-len(chunks[len(chunks)-1]):], chunks[len(chunks)-1])
}

func TestSplitChunksEmptyInput(t *testing.T) {
	assert.Nil(t, SplitChunks("", 10, 2))
}

func TestDrainAndExtractText(t *testing.T) {
	r := strings.NewReader("<p>hello</p>")
	got, err := DrainAndExtractText(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello", got)
}
