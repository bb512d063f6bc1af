package metrics

import "time"

// StateProvider is satisfied by the scheduler. It is a narrow read-only
// view so this package never imports pkg/scheduler directly and the
// dependency points the other way: the scheduler package imports
// metrics, not vice versa.
type StateProvider interface {
	// HostCounts returns the number of active and pending-removal hosts.
	HostCounts() (active, pendingRemoval int)
	// HostCapacities returns each active host's last-reported capacity, by name.
	HostCapacities() map[string]int
	// ExperimentCounts returns the number of active, pending-removal, and drained experiments.
	ExperimentCounts() (active, pendingRemoval, drained int)
	// JobCounts returns the number of jobs in each status, keyed by JobStatus string.
	JobCounts() map[string]int
}

// Collector periodically samples a StateProvider and publishes the
// results as gauges, mirroring how the teacher's collector polled its
// cluster manager on a fixed tick rather than on every mutation.
type Collector struct {
	provider StateProvider
	stopCh   chan struct{}
}

// NewCollector creates a collector over the given state provider.
func NewCollector(provider StateProvider) *Collector {
	return &Collector{
		provider: provider,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15 second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	active, pendingRemoval := c.provider.HostCounts()
	HostsTotal.WithLabelValues("active").Set(float64(active))
	HostsTotal.WithLabelValues("pending_removal").Set(float64(pendingRemoval))

	for host, capacity := range c.provider.HostCapacities() {
		HostCapacity.WithLabelValues(host).Set(float64(capacity))
	}

	expActive, expPendingRemoval, expDrained := c.provider.ExperimentCounts()
	ExperimentsTotal.WithLabelValues("active").Set(float64(expActive))
	ExperimentsTotal.WithLabelValues("pending_removal").Set(float64(expPendingRemoval))
	ExperimentsTotal.WithLabelValues("drained").Set(float64(expDrained))

	for status, count := range c.provider.JobCounts() {
		JobsTotal.WithLabelValues(status).Set(float64(count))
	}
}
