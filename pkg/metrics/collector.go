package metrics

import (
	"time"

	"github.com/abossard/vjbus/pkg/registry"
)

// Collector periodically samples the Registry and publishes gauge metrics
// from it, the same ticker + stopCh shape as every other periodic loop in
// this codebase.
type Collector struct {
	reg    *registry.Store
	stopCh chan struct{}
}

// NewCollector builds a collector over reg. Call Start to begin sampling.
func NewCollector(reg *registry.Store) *Collector {
	return &Collector{reg: reg, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds, including an immediate
// collection on start.
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

// Stop ends the collection loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	entries, err := c.reg.Discover(registry.DefaultHeartbeatInterval, true)
	if err != nil {
		return
	}

	counts := make(map[registry.Status]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	for _, status := range []registry.Status{
		registry.StatusStarting, registry.StatusRunning,
		registry.StatusStopped, registry.StatusCrashed,
	} {
		RegistryEntriesTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
