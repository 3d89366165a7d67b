package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "events_scrape"

// Collector 는 Metrics 의 atomic 카운터를 Prometheus 형식으로 노출한다.
// 값은 scrape 시점에 읽으므로 별도 동기화가 필요 없다.
type Collector struct {
	m     *Metrics
	descs map[string]*prometheus.Desc
}

func NewCollector(m *Metrics) *Collector {
	c := &Collector{m: m, descs: make(map[string]*prometheus.Desc)}
	for _, s := range m.snapshot() {
		c.descs[s.name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", s.name),
			"events-scrape "+s.name,
			nil, nil,
		)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.m.snapshot() {
		vt := prometheus.CounterValue
		if s.gauge {
			vt = prometheus.GaugeValue
		}
		ch <- prometheus.MustNewConstMetric(c.descs[s.name], vt, float64(s.value))
	}
}
