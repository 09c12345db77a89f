package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/onepager/internal/database"
)

// handleSystemStatus reports process and host health: uptime, CPU, memory,
// goroutines and database sizes.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}

	// Short sample window; precision is not worth a slow endpoint.
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		response["cpu_percent"] = cpuPercent[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		response["memory_percent"] = memInfo.UsedPercent
		response["memory_used_mb"] = memInfo.Used / 1024 / 1024
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	databases := map[string]interface{}{}
	if s.researchDB != nil {
		databases["research"] = dbSizeInfo(s.researchDB, s)
	}
	if s.cacheDB != nil {
		databases["cache"] = dbSizeInfo(s.cacheDB, s)
	}
	response["databases"] = databases

	s.writeJSON(w, http.StatusOK, response)
}

func dbSizeInfo(db *database.DB, s *Server) map[string]interface{} {
	stats, err := db.GetStats()
	if err != nil {
		s.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to read database stats")
		return map[string]interface{}{"error": err.Error()}
	}
	return map[string]interface{}{
		"size_bytes":     stats.SizeBytes,
		"wal_size_bytes": stats.WALSizeBytes,
	}
}
