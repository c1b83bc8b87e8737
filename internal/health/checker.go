// Package health provides health check endpoints for the gateway.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Component is anything that can report its own health.
type Component interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs registered component checks and serves the results.
type Checker struct {
	config  Config
	started time.Time

	mu     sync.RWMutex
	checks map[string]Component
}

// Config holds health checker configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	CheckTimeout   time.Duration
}

// ComponentStatus is the result of one component check.
type ComponentStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "healthy" or "unhealthy"
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Response is the full health response.
type Response struct {
	Status    string                      `json:"status"`
	Service   string                      `json:"service"`
	Version   string                      `json:"version"`
	Timestamp time.Time                   `json:"timestamp"`
	Uptime    string                      `json:"uptime,omitempty"`
	Checks    map[string]*ComponentStatus `json:"checks,omitempty"`
}

// NewChecker creates a new health checker.
func NewChecker(config Config) *Checker {
	if config.CheckTimeout == 0 {
		config.CheckTimeout = 5 * time.Second
	}
	return &Checker{
		config:  config,
		started: time.Now(),
		checks:  make(map[string]Component),
	}
}

// AddCheck registers a component check under a name.
func (c *Checker) AddCheck(name string, component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = component
}

// Check runs all registered checks concurrently and aggregates them.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	checks := make(map[string]Component, len(c.checks))
	for name, component := range c.checks {
		checks[name] = component
	}
	c.mu.RUnlock()

	response := &Response{
		Status:    "healthy",
		Service:   c.config.ServiceName,
		Version:   c.config.ServiceVersion,
		Timestamp: time.Now(),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Checks:    make(map[string]*ComponentStatus),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, component := range checks {
		wg.Add(1)
		go func(name string, component Component) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
			defer cancel()

			status := &ComponentStatus{
				Name:      name,
				Status:    "healthy",
				LastCheck: time.Now(),
			}
			if err := component.HealthCheck(checkCtx); err != nil {
				status.Status = "unhealthy"
				status.Error = err.Error()
			}

			mu.Lock()
			response.Checks[name] = status
			if status.Status != "healthy" {
				response.Status = "unhealthy"
			}
			mu.Unlock()
		}(name, component)
	}

	wg.Wait()
	return response
}

// HealthHandler serves the aggregated health response.
func (c *Checker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	c.writeResponse(w, c.Check(r.Context()))
}

// LivenessHandler reports that the process is running.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	response := &Response{
		Status:    "healthy",
		Service:   c.config.ServiceName,
		Version:   c.config.ServiceVersion,
		Timestamp: time.Now(),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler reports whether all dependencies are healthy.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	c.writeResponse(w, c.Check(r.Context()))
}

func (c *Checker) writeResponse(w http.ResponseWriter, response *Response) {
	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
