package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(_ context.Context) Status {
		return Status{Name: "database", Healthy: true}
	})
	r.Register("provider", func(_ context.Context) Status {
		return Status{Name: "provider", Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) Status {
				return Status{Name: "checker", Healthy: true}
			})
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()
	reg.Register("database", func(_ context.Context) Status {
		return Status{Name: "database", Healthy: false, Detail: "down"}
	})

	router := gin.New()
	reg.RegisterRoutes(router)

	// Liveness ignores checker state.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("live: expected 200, got %d", w.Code)
	}

	// Readiness reflects it.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready: expected 503, got %d", w.Code)
	}
}
