package webapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// handleSystemStats 主机和进程资源快照，供运营端监控面板轮询
func (s *AdminService) handleSystemStats(c *gin.Context) {
	stats := gin.H{
		"goroutines": runtime.NumGoroutine(),
		"sessions":   s.manager.Count(),
	}
	if s.asrPool != nil {
		stats["asr_pool"] = s.asrPool.Stats()
	}

	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["mem_total"] = vm.Total
		stats["mem_used"] = vm.Used
		stats["mem_percent"] = vm.UsedPercent
	}
	if info, err := host.Info(); err == nil {
		stats["hostname"] = info.Hostname
		stats["os"] = info.OS
		stats["uptime_sec"] = info.Uptime
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats["heap_alloc"] = ms.HeapAlloc
	stats["gc_count"] = ms.NumGC

	respondSuccess(c, http.StatusOK, stats, "")
}
