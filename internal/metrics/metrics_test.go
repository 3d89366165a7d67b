package metrics

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_ReportsCounters(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			atomic.AddInt64(&m.DocumentsWrittenTotal, 2)
		}()
	}
	wg.Wait()
	atomic.AddInt64(&m.ErrorsTotal, 1)

	out := m.String()
	assert.Contains(t, out, "documents_written_total=100\n")
	assert.Contains(t, out, "errors_total=1\n")
	assert.Contains(t, out, "spool_files_current=0\n")
}

func TestCollector_ExposesSameValues(t *testing.T) {
	m := New()
	atomic.AddInt64(&m.ClustersProcessedTotal, 3)
	atomic.StoreInt64(&m.SpoolFilesCurrent, 2)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(m)))

	expected := `
# HELP events_scrape_clusters_processed_total events-scrape clusters_processed_total
# TYPE events_scrape_clusters_processed_total counter
events_scrape_clusters_processed_total 3
# HELP events_scrape_spool_files_current events-scrape spool_files_current
# TYPE events_scrape_spool_files_current gauge
events_scrape_spool_files_current 2
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"events_scrape_clusters_processed_total",
		"events_scrape_spool_files_current",
	)
	assert.NoError(t, err)
}
