package workers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Searcher returns up to maxResults URLs for query. The Scout worker is
// constructed against one, so tests can substitute a fake without
// reaching the network.
type Searcher func(ctx context.Context, query string, maxResults int) ([]string, error)

// DuckDuckGoSearcher hits the lite HTML search endpoint (no API key, no
// rate-limited JSON API) and scrapes result hrefs with the same
// golang.org/x/net/html tokenizer the crawler's text extraction uses —
// "web search: library default" per the concurrency model, not a
// dedicated search SDK.
func DuckDuckGoSearcher(httpClient *http.Client) Searcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return func(ctx context.Context, query string, maxResults int) ([]string, error) {
		endpoint := "https://lite.duckduckgo.com/lite/?q=" + url.QueryEscape(query)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("web search request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
		}
		return extractResultLinks(resp.Body, maxResults)
	}
}

func extractResultLinks(r io.Reader, maxResults int) ([]string, error) {
	tokenizer := html.NewTokenizer(r)
	var urls []string
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return urls, nil
		}
		if tt != html.StartTagToken {
			continue
		}
		tok := tokenizer.Token()
		if tok.Data != "a" {
			continue
		}
		for _, attr := range tok.Attr {
			if attr.Key != "href" {
				continue
			}
			href := attr.Val
			if !strings.HasPrefix(href, "http") {
				continue
			}
			urls = append(urls, href)
			if len(urls) >= maxResults {
				return urls, nil
			}
		}
	}
}
