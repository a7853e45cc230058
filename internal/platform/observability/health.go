package observability

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// CheckFunc reports a dependency's health; nil means healthy.
type CheckFunc func(ctx context.Context) error

// Checker is a named readiness check.
type Checker struct {
	Name  string
	Check CheckFunc
}

// CheckResult is one entry of the readiness report.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Report is the body of the health endpoints.
type Report struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

// Health aggregates readiness checks. Liveness only reports that the
// process answers.
type Health struct {
	mu       sync.RWMutex
	service  string
	checkers []Checker
	timeout  time.Duration
}

// NewHealth creates a Health whose readiness probe waits at most timeout.
func NewHealth(service string, timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Health{service: service, timeout: timeout}
}

// Register adds a readiness check.
func (h *Health) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, Checker{Name: name, Check: check})
}

// Ready runs every check concurrently within the timeout.
func (h *Health) Ready(ctx context.Context) Report {
	h.mu.RLock()
	checkers := append([]Checker(nil), h.checkers...)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = runCheck(ctx, c.Check)
		}(i, c)
	}
	wg.Wait()

	report := Report{Status: StatusUp, Service: h.service, Checks: make(map[string]CheckResult, len(checkers))}
	for i, c := range checkers {
		report.Checks[c.Name] = results[i]
		if results[i].Status != StatusUp {
			report.Status = StatusDown
		}
	}
	return report
}

func runCheck(ctx context.Context, check CheckFunc) CheckResult {
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			return CheckResult{Status: StatusDown, Error: err.Error()}
		}
		return CheckResult{Status: StatusUp}
	case <-ctx.Done():
		return CheckResult{Status: StatusDown, Error: ctx.Err().Error()}
	}
}

// Names lists the registered checks in order.
func (h *Health) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checkers))
	for _, c := range h.checkers {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// LiveHandler answers the liveness probe.
func (h *Health) LiveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, Report{Status: StatusUp, Service: h.service})
}

// ReadyHandler answers the readiness probe: 200 when every check passes,
// 503 otherwise.
func (h *Health) ReadyHandler(c *gin.Context) {
	report := h.Ready(c.Request.Context())
	status := http.StatusOK
	if report.Status != StatusUp {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// DatabaseCheck pings the database behind db.
func DatabaseCheck(db *gorm.DB) CheckFunc {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// RedisCheck pings Redis.
func RedisCheck(client redis.Cmdable) CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Mount registers the health endpoints and, when enabled, the scrape
// endpoint on engine.
func Mount(engine gin.IRoutes, reg *Registry, health *Health, metricsPath string) {
	engine.GET("/health/live", health.LiveHandler)
	engine.GET("/health/ready", health.ReadyHandler)
	if reg != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		engine.GET(metricsPath, gin.WrapH(reg.Handler()))
	}
}
