// Package health provides a registry of named subsystem health checkers.
package health

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs all registered checkers and returns the aggregate health
// status plus individual subsystem results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(checkers))

	for i, nc := range checkers {
		statuses[i] = nc.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}

	return healthy, statuses
}

// DatabaseChecker pings the database with a short timeout.
func DatabaseChecker(db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "database", Healthy: true}
	}
}

// RegisterRoutes sets up the health endpoints. /health/live is a bare
// liveness probe; /health and /health/ready run the registered checkers.
func (r *Registry) RegisterRoutes(router *gin.Engine) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	readiness := func(c *gin.Context) {
		healthy, statuses := r.CheckAll(c.Request.Context())
		code := http.StatusOK
		status := "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			status = "degraded"
		}
		c.JSON(code, gin.H{"status": status, "checks": statuses})
	}
	router.GET("/health", readiness)
	router.GET("/health/ready", readiness)
}
