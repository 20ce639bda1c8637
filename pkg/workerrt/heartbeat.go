package workerrt

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemMetrics samples process-wide CPU and memory figures to ride along
// on each heartbeat envelope. Best-effort: a sampling failure just omits
// that key rather than failing the heartbeat.
func (rt *Runtime) systemMetrics() map[string]interface{} {
	m := make(map[string]interface{}, 3)

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m["mem_used_percent"] = vm.UsedPercent
	}

	rt.mu.RLock()
	m["config_version"] = rt.configVersion
	m["degraded"] = rt.degraded
	rt.mu.RUnlock()

	return m
}
