package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolStatter is satisfied by *pgxpool.Pool.
type poolStatter interface {
	Stat() *pgxpool.Stat
}

// PoolCollector exports pgxpool statistics.
type PoolCollector struct {
	pool poolStatter

	acquired     *prometheus.Desc
	idle         *prometheus.Desc
	total        *prometheus.Desc
	max          *prometheus.Desc
	acquireCount *prometheus.Desc
	acquireWait  *prometheus.Desc
	emptyAcquire *prometheus.Desc
}

// NewPoolCollector builds a collector for pool.
func NewPoolCollector(pool poolStatter) *PoolCollector {
	return &PoolCollector{
		pool:         pool,
		acquired:     prometheus.NewDesc("db_pool_acquired_connections", "Number of currently acquired connections", nil, nil),
		idle:         prometheus.NewDesc("db_pool_idle_connections", "Number of currently idle connections", nil, nil),
		total:        prometheus.NewDesc("db_pool_total_connections", "Total number of connections in the pool", nil, nil),
		max:          prometheus.NewDesc("db_pool_max_connections", "Maximum number of connections allowed", nil, nil),
		acquireCount: prometheus.NewDesc("db_pool_acquire_count_total", "Total number of connection acquires", nil, nil),
		acquireWait:  prometheus.NewDesc("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections", nil, nil),
		emptyAcquire: prometheus.NewDesc("db_pool_empty_acquire_count_total", "Acquires that had to wait for a connection", nil, nil),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquireCount
	ch <- c.acquireWait
	ch <- c.emptyAcquire
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, s.AcquireDuration().Seconds())
	ch <- prometheus.MustNewConstMetric(c.emptyAcquire, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}
