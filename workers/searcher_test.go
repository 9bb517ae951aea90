package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractResultLinksFiltersNonHTTPAndCaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<a href="https://a.example/1">a</a>
<a href="/relative/ignored">ignored</a>
<a href="https://b.example/2">b</a>
<a href="https://c.example/3">c</a>
</body></html>`))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	urls, err := extractResultLinks(resp.Body, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, urls)
}

func TestDuckDuckGoSearcherContextCancellation(t *testing.T) {
	search := DuckDuckGoSearcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := search(ctx, "query", 3)
	assert.Error(t, err)
}
