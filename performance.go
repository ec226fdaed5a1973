package ldap

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// PerformanceStats is a snapshot of the operations recorded by a
// PerformanceMonitor.
type PerformanceStats struct {
	OperationsTotal  int64            // Total operations performed
	OperationsByType map[string]int64 // Operations broken down by type
	ErrorCount       int64            // Operations that returned an error
	TimeoutCount     int64            // Operations that failed with ErrTimeout
	SlowQueries      int64            // Operations exceeding the slow threshold

	AvgResponseTime time.Duration
	MinResponseTime time.Duration
	MaxResponseTime time.Duration
}

// PerformanceMonitor records operation latencies and outcomes.
type PerformanceMonitor struct {
	mu            sync.Mutex
	logger        *slog.Logger
	slowThreshold time.Duration

	total     int64
	byType    map[string]int64
	errors    int64
	timeouts  int64
	slow      int64
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
}

// NewPerformanceMonitor creates a monitor that logs operations slower than
// slowThreshold.
func NewPerformanceMonitor(slowThreshold time.Duration, logger *slog.Logger) *PerformanceMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PerformanceMonitor{
		logger:        logger,
		slowThreshold: slowThreshold,
		byType:        make(map[string]int64),
	}
}

// RecordOperation records one completed operation.
func (pm *PerformanceMonitor) RecordOperation(operation string, duration time.Duration, err error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.total++
	pm.byType[operation]++
	pm.totalTime += duration
	if pm.minTime == 0 || duration < pm.minTime {
		pm.minTime = duration
	}
	if duration > pm.maxTime {
		pm.maxTime = duration
	}
	if err != nil {
		pm.errors++
		if errors.Is(err, ErrTimeout) {
			pm.timeouts++
		}
	}

	if pm.slowThreshold > 0 && duration > pm.slowThreshold {
		pm.slow++
		pm.logger.Warn("ldap_slow_operation",
			slog.String("operation", operation),
			slog.Duration("duration", duration),
			slog.Duration("threshold", pm.slowThreshold))
	}
}

// GetStats returns a snapshot of the recorded statistics.
func (pm *PerformanceMonitor) GetStats() PerformanceStats {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	stats := PerformanceStats{
		OperationsTotal:  pm.total,
		OperationsByType: make(map[string]int64, len(pm.byType)),
		ErrorCount:       pm.errors,
		TimeoutCount:     pm.timeouts,
		SlowQueries:      pm.slow,
		MinResponseTime:  pm.minTime,
		MaxResponseTime:  pm.maxTime,
	}
	for k, v := range pm.byType {
		stats.OperationsByType[k] = v
	}
	if pm.total > 0 {
		stats.AvgResponseTime = pm.totalTime / time.Duration(pm.total)
	}
	return stats
}

// Reset clears all recorded statistics.
func (pm *PerformanceMonitor) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.total, pm.errors, pm.timeouts, pm.slow = 0, 0, 0, 0
	pm.totalTime, pm.minTime, pm.maxTime = 0, 0, 0
	pm.byType = make(map[string]int64)
}
