package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/assisted-install/v2/clusters", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"c1","name":"one"},{"id":"c2","name":"two"}]`))
	})
	mux.HandleFunc("/api/assisted-install/v2/clusters/c1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"c1","hosts":[{"id":"h1"},{"id":"h2"}]}`))
	})
	mux.HandleFunc("/api/assisted-install/v2/clusters/gone", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"reason":"cluster not found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/api/assisted-install/v2/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c1", r.URL.Query().Get("cluster_id"))
		assert.Equal(t, []string{"user", "metrics"}, r.URL.Query()["categories"])
		_, _ = w.Write([]byte(`[{"cluster_id":"c1","message":"m1"}]`))
	})
	mux.HandleFunc("/api/assisted-install/v2/component-versions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_Endpoints(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL+"/", "secret", 5*time.Second)
	ctx := context.Background()

	clusters, err := c.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "c2", clusters[1].ID())

	hosts, err := c.GetClusterHosts(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, hosts, 2)

	events, err := c.GetEvents(ctx, "c1", []string{"user", "metrics"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "m1", events[0]["message"])
}

func TestHTTPClient_ErrorKinds(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, "secret", 5*time.Second)
	ctx := context.Background()

	_, err := c.GetClusterHosts(ctx, "gone")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "get_cluster_hosts", apiErr.Op)
	assert.Contains(t, apiErr.Body, "cluster not found")

	_, err = c.GetVersions(ctx)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
}
