// api/audit/repository_test.go
package audit_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudscope/armproxy/api/audit"
)

// newFakeES serves the handler behind the product header the v8 client
// verifies before issuing requests.
func newFakeES(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *audit.ElasticsearchRepository {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	repo, err := audit.NewElasticsearchRepository(server.URL)
	require.NoError(t, err)
	return repo
}

func TestRecordFetchIndexesDocument(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody []byte
	repo := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	})

	ts := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	record := audit.FetchRecord{
		Timestamp:   ts,
		ResourceKey: "virtualMachines:sub-1:rg-1",
		Kind:        "virtualMachines",
		DurationMs:  42,
		Outcome:     "success",
	}
	require.NoError(t, repo.RecordFetch(context.Background(), record))

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/upstream-fetches/_doc/1787738400000000000-virtualMachines:sub-1:rg-1", gotPath)

	var indexed audit.FetchRecord
	require.NoError(t, json.Unmarshal(gotBody, &indexed))
	assert.Equal(t, record, indexed)
}

func TestRecordFetchErrorResponse(t *testing.T) {
	repo := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"reason":"shard failure"}}`))
	})

	err := repo.RecordFetch(context.Background(), audit.FetchRecord{
		Timestamp:   time.Now(),
		ResourceKey: "subscriptions",
	})
	assert.ErrorContains(t, err, "error indexing document")
}

func TestQueryFetchesDecodesHits(t *testing.T) {
	var gotPath string
	var gotQuery map[string]interface{}
	repo := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotQuery)
		w.Write([]byte(`{
			"hits": {"hits": [
				{"_source": {"timestamp": "2026-08-26T10:00:00Z", "resource_key": "subscriptions", "kind": "subscriptions", "duration_ms": 12, "outcome": "success"}},
				{"_source": {"timestamp": "2026-08-26T10:01:00Z", "resource_key": "resourceGroups:sub-1", "kind": "resourceGroups", "duration_ms": 30, "outcome": "error", "error": "upstream management API unavailable"}}
			]}
		}`))
	})

	from := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)
	records, err := repo.QueryFetches(context.Background(), from, to, "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "/upstream-fetches/_search", gotPath)
	assert.Equal(t, "subscriptions", records[0].ResourceKey)
	assert.Equal(t, int64(12), records[0].DurationMs)
	assert.Equal(t, "error", records[1].Outcome)
	assert.Equal(t, "upstream management API unavailable", records[1].Error)

	must := gotQuery["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 1)
	rangeClause := must[0].(map[string]interface{})["range"].(map[string]interface{})["timestamp"].(map[string]interface{})
	assert.Equal(t, "2026-08-26T09:00:00Z", rangeClause["gte"])
	assert.Equal(t, "2026-08-26T11:00:00Z", rangeClause["lte"])
}

func TestQueryFetchesFiltersByResourceKey(t *testing.T) {
	var gotQuery map[string]interface{}
	repo := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotQuery)
		w.Write([]byte(`{"hits": {"hits": []}}`))
	})

	records, err := repo.QueryFetches(context.Background(), time.Now().Add(-time.Hour), time.Now(), "virtualMachines:sub-1:rg-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	must := gotQuery["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 2)
	match := must[1].(map[string]interface{})["match"].(map[string]interface{})
	assert.Equal(t, "virtualMachines:sub-1:rg-1", match["resource_key"])
}
