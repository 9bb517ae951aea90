package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetDelete(t *testing.T) {
	s := New()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("a", "1")
	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	s.Delete("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestClearSessionPreservesQuery(t *testing.T) {
	s := New()
	reqID := "req-1"

	s.Set(QueryKey(reqID), "what is 2+2?")
	s.Set(ImpressionKey(reqID, "1", "clean_text"), "some text")
	s.Set(ImpressionKey(reqID, "2", "final_answer"), "4")
	s.Set(QueryKey("req-2"), "unrelated")

	s.ClearSession(reqID, true)

	_, ok := s.Get(QueryKey(reqID))
	assert.True(t, ok, "query key must survive preserve_query=true")
	_, ok = s.Get(ImpressionKey(reqID, "1", "clean_text"))
	assert.False(t, ok)
	_, ok = s.Get(ImpressionKey(reqID, "2", "final_answer"))
	assert.False(t, ok)
	_, ok = s.Get(QueryKey("req-2"))
	assert.True(t, ok, "other request's keys must be untouched")
}

func TestClearSessionDropsQueryWhenNotPreserved(t *testing.T) {
	s := New()
	reqID := "req-1"
	s.Set(QueryKey(reqID), "q")
	s.Set(ImpressionKey(reqID, "1", "out"), "v")

	s.ClearSession(reqID, false)

	_, ok := s.Get(QueryKey(reqID))
	assert.False(t, ok)
	_, ok = s.Get(ImpressionKey(reqID, "1", "out"))
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := ImpressionKey("req", "1", "k")
			s.Set(key, "v")
			s.Get(key)
		}(i)
	}
	wg.Wait()
}
