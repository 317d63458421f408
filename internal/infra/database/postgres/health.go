package postgres

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents database health status
type HealthStatus struct {
	Status       string    `json:"status"`          // healthy, degraded, unhealthy
	ResponseTime string    `json:"response_time"`   // e.g. "5ms"
	ActiveConns  int32     `json:"active_conns"`    // acquired connections
	IdleConns    int32     `json:"idle_conns"`      // idle connections
	TotalConns   int32     `json:"total_conns"`     // total connections
	MaxConns     int32     `json:"max_conns"`       // pool limit
	CheckedAt    time.Time `json:"checked_at"`      // when the check ran
	Error        string    `json:"error,omitempty"` // reason when not healthy
}

// Health pings the database and reports pool usage
func (p *Pool) Health(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{CheckedAt: start, Status: "healthy"}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := p.Ping(pingCtx); err != nil {
		status.Status = "unhealthy"
		status.Error = fmt.Sprintf("ping failed: %v", err)
		status.ResponseTime = time.Since(start).String()
		return status
	}

	stats := p.Stat()
	status.ActiveConns = stats.AcquiredConns()
	status.IdleConns = stats.IdleConns()
	status.TotalConns = stats.TotalConns()
	status.MaxConns = stats.MaxConns()
	status.ResponseTime = time.Since(start).String()

	// 풀 고갈 임박
	if stats.AcquiredConns() >= stats.MaxConns()-2 {
		status.Status = "degraded"
		status.Error = "connection pool nearly exhausted"
	}

	return status
}
