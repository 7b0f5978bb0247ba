package search

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"meeplehall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
	indexed  bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	f.requests = append(f.requests, key)
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[key] = string(body)

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"version":{"number":"8.19.0"},"tagline":"You Know, for Search"}`))
	case r.Method == http.MethodHead && r.URL.Path == "/games":
		if f.indexed {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/games":
		f.indexed = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case strings.HasPrefix(r.URL.Path, "/games/_doc/"):
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"result":"not_found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[{"_id":"7"},{"_id":"3"},{"_id":"bogus"}]}}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unexpected"}`))
	}
}

func newTestClient(t *testing.T) (*Client, *fakeES) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c, fake
}

func TestEnsureIndexCreatesOnce(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := t.Context()

	require.NoError(t, c.EnsureIndex(ctx))
	require.NoError(t, c.EnsureIndex(ctx))

	creates := 0
	for _, r := range fake.requests {
		if r == "PUT /games" {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
	assert.Contains(t, fake.bodies["PUT /games"], `"categories":{"type":"keyword"}`)
}

func TestIndexAndDeleteGame(t *testing.T) {
	c, fake := newTestClient(t)
	g := &models.Game{ID: 12, Name: "Azul", Slug: "azul", Categories: "abstract, tile placement", MinPlayers: 2, MaxPlayers: 4}

	require.NoError(t, c.IndexGame(t.Context(), g))
	var doc GameDocument
	require.NoError(t, json.Unmarshal([]byte(fake.bodies["PUT /games/_doc/12"]), &doc))
	assert.Equal(t, []string{"abstract", "tile placement"}, doc.Categories)

	assert.NoError(t, c.DeleteGame(t.Context(), 12), "missing documents are ignored")
}

func TestSearchGames(t *testing.T) {
	c, fake := newTestClient(t)
	ids, total, err := c.SearchGames(t.Context(), GameQuery{Text: "azul", Players: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []uint{7, 3}, ids)
	assert.Equal(t, int64(2), total)
	assert.Contains(t, fake.bodies["POST /games/_search"], `"multi_match"`)
}

func TestBuildGameQuery(t *testing.T) {
	q := BuildGameQuery(GameQuery{Category: "Economic", Players: 4, Limit: 5, Offset: 10})
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	s := string(raw)
	assert.Contains(t, s, `"match_all"`)
	assert.Contains(t, s, `"term":{"categories":"economic"}`)
	assert.Contains(t, s, `"min_players":{"lte":4}`)
	assert.Contains(t, s, `"from":10`)
}
