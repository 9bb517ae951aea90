// Package textutil extracts visible text and links from HTML and splits
// text into overlapping chunks, shared by the crawler and the Scout
// worker. Grounded on original_source's try_extract_text_from_html/
// extract_links/split_text (webcrawler/app/utils/utils.py), translated
// from BeautifulSoup's tree walk to golang.org/x/net/html's tokenizer —
// the only HTML parser anywhere in the pack.
package textutil

import (
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
}

// ExtractText walks HTML and returns its visible text, newline-separated
// per block-ish element and whitespace-collapsed, matching
// BeautifulSoup's get_text(separator="\n", strip=True) behavior closely
// enough for diffing and chunking purposes. Malformed HTML never errors
// — a parse failure yields whatever text was recovered, matching the
// original's "return empty string on any failure" posture.
func ExtractText(htmlBody string) string {
	if htmlBody == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(htmlBody))
	var b strings.Builder
	var skipDepth int

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if skipTags[tok.Data] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
		case html.EndTagToken:
			tok := z.Token()
			if skipTags[tok.Data] && skipDepth > 0 {
				skipDepth--
				continue
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}
		}
	}
	return collapseWhitespace(b.String())
}

var multiNewline = regexp.MustCompile(`\n{2,}`)
var multiSpace = regexp.MustCompile(`[ \t]{2,}`)

func collapseWhitespace(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// ExtractLinks returns every absolute http(s) href in htmlBody, resolved
// against baseURL and with its fragment stripped, deduplicated.
func ExtractLinks(htmlBody, baseURL string) []string {
	if htmlBody == "" {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	z := html.NewTokenizer(strings.NewReader(htmlBody))
	seen := make(map[string]bool)
	var out []string
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := z.Token()
		if tok.Data != "a" {
			continue
		}
		for _, attr := range tok.Attr {
			if attr.Key != "href" {
				continue
			}
			resolved, err := base.Parse(attr.Val)
			if err != nil {
				continue
			}
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				continue
			}
			resolved.Fragment = ""
			clean := resolved.String()
			if !seen[clean] {
				seen[clean] = true
				out = append(out, clean)
			}
		}
	}
	return out
}

// SplitChunks splits text into overlapping windows of chunkSize runes
// with chunkOverlap runes shared between consecutive windows.
func SplitChunks(text string, chunkSize, chunkOverlap int) []string {
	if text == "" || chunkSize <= 0 {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	step := chunkSize - chunkOverlap
	if step <= 0 {
		step = chunkSize
	}
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// DrainAndExtractText reads r fully and extracts its visible text,
// useful when the HTML source is an io.Reader (e.g. an HTTP body)
// rather than an already-buffered string.
func DrainAndExtractText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return ExtractText(string(data)), nil
}
