package storage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKVServer implements the command-array REST protocol against an
// in-memory map. TTLs are recorded but not enforced.
type fakeKVServer struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]string
	failAll bool
}

func newFakeKVServer() (*fakeKVServer, *httptest.Server) {
	f := &fakeKVServer{
		data: make(map[string]string),
		ttls: make(map[string]string),
	}
	return f, httptest.NewServer(f)
}

func (f *fakeKVServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var command []string
	if err := json.NewDecoder(r.Body).Decode(&command); err != nil || len(command) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.serveCommand(w, command)
}

func (f *fakeKVServer) serveCommand(w http.ResponseWriter, command []string) {
	switch command[0] {
	case "SET":
		f.data[command[1]] = command[2]
		if len(command) == 5 && command[3] == "EX" {
			f.ttls[command[1]] = command[4]
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": "OK"})
	case "GET":
		value, ok := f.data[command[1]]
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{"result": nil})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": value})
	case "DEL":
		delete(f.data, command[1])
		json.NewEncoder(w).Encode(map[string]interface{}{"result": 1})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func TestKVStoreSetGetDelete(t *testing.T) {
	fake, server := newFakeKVServer()
	defer server.Close()

	kv := NewKVStore(server.URL, "test-token")

	assert.True(t, kv.Set("greeting", "hello", 0))
	assert.Equal(t, "hello", kv.Get("greeting"))
	assert.True(t, kv.Exists("greeting"))

	assert.True(t, kv.Delete("greeting"))
	assert.Equal(t, "", kv.Get("greeting"))
	assert.False(t, kv.Exists("greeting"))

	// TTL is forwarded as EX seconds
	assert.True(t, kv.Set("marker", "x", processedTTL))
	assert.Equal(t, "86400", fake.ttls["marker"])
}

func TestKVStoreDegradesOnFailure(t *testing.T) {
	fake, server := newFakeKVServer()
	defer server.Close()

	kv := NewKVStore(server.URL, "test-token")
	fake.failAll = true

	assert.Equal(t, "", kv.Get("anything"))
	assert.False(t, kv.Set("k", "v", 0))
	assert.False(t, kv.Delete("k"))

	// Unreachable endpoint behaves the same as a failing one
	server.Close()
	fake.failAll = false
	assert.Equal(t, "", kv.Get("anything"))
	assert.False(t, kv.Set("k", "v", 0))
}

func TestCorrelationStoreProcessedMarkers(t *testing.T) {
	_, server := newFakeKVServer()
	defer server.Close()

	store := NewCorrelationStore(NewKVStore(server.URL, "t"))

	assert.False(t, store.IsProcessed("comment", "4242"))
	assert.True(t, store.MarkProcessed("comment", "4242"))
	assert.True(t, store.IsProcessed("comment", "4242"))

	// Markers are scoped by kind
	assert.False(t, store.IsProcessed("review", "4242"))
}

func TestCorrelationStoreCommentMapping(t *testing.T) {
	fake, server := newFakeKVServer()
	defer server.Close()

	store := NewCorrelationStore(NewKVStore(server.URL, "t"))

	mapping := CommentMapping{Channel: "D0101", ThreadTS: "1700.0001", MessageTS: "1700.0001"}
	require.True(t, store.SaveCommentMapping(4242, mapping))

	got := store.GetCommentMapping(4242)
	require.NotNil(t, got)
	assert.Equal(t, mapping, *got)

	// 30 day TTL
	assert.Equal(t, "2592000", fake.ttls["github_comment:4242"])

	assert.Nil(t, store.GetCommentMapping(999))
}

func TestCorrelationStoreThreadMapping(t *testing.T) {
	_, server := newFakeKVServer()
	defer server.Close()

	store := NewCorrelationStore(NewKVStore(server.URL, "t"))

	mapping := ThreadMapping{
		CommentID:      4242,
		InstallationID: 991,
		RepoFullName:   "acme/widgets",
		PRNumber:       7,
		Kind:           ThreadKindReviewComment,
	}
	require.True(t, store.SaveThreadMapping("1700.0001", mapping))

	got := store.GetThreadMapping("1700.0001")
	require.NotNil(t, got)
	assert.Equal(t, mapping, *got)

	assert.Nil(t, store.GetThreadMapping("absent"))
}

func TestCorrelationStorePRMetadata(t *testing.T) {
	_, server := newFakeKVServer()
	defer server.Close()

	store := NewCorrelationStore(NewKVStore(server.URL, "t"))

	require.True(t, store.SavePRMetadata("acme/widgets", 7, map[string]interface{}{"title": "Add widgets"}))
	got := store.GetPRMetadata("acme/widgets", 7)
	require.NotNil(t, got)
	assert.Equal(t, "Add widgets", got["title"])

	assert.Nil(t, store.GetPRMetadata("acme/widgets", 8))
}

func TestPairedWrite(t *testing.T) {
	_, server := newFakeKVServer()
	defer server.Close()

	kv := NewKVStore(server.URL, "t")

	ok := PairedWrite(kv,
		KeyWrite{Key: "primary", Value: "p"},
		KeyWrite{Key: "secondary", Value: "s"},
	)
	assert.True(t, ok)
	assert.Equal(t, "p", kv.Get("primary"))
	assert.Equal(t, "s", kv.Get("secondary"))
}

func TestPairedWriteRollsBackPrimary(t *testing.T) {
	fake, server := newFakeKVServer()
	defer server.Close()

	// Fail the second SET (the secondary index) but let the rollback DEL
	// and subsequent GETs through.
	sets := 0
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var command []string
		if err := json.NewDecoder(r.Body).Decode(&command); err != nil || len(command) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if command[0] == "SET" {
			sets++
			if sets == 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
		fake.serveCommand(w, command)
	}))
	defer flaky.Close()

	kv := NewKVStore(flaky.URL, "t")

	ok := PairedWrite(kv,
		KeyWrite{Key: "primary", Value: "p"},
		KeyWrite{Key: "secondary", Value: "s"},
	)
	assert.False(t, ok)

	// Primary was rolled back, nothing one-sided remains
	assert.Equal(t, "", kv.Get("primary"))
	assert.Equal(t, "", kv.Get("secondary"))
}
