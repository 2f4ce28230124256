package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmmcquay/gammon-mcp/internal/logging"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ErrDegraded marks a check failure that leaves the server usable. Wrap it
// to report StatusDegraded instead of StatusUnhealthy.
var ErrDegraded = errors.New("degraded")

const checkTimeout = 5 * time.Second

// Check reports a component's health. A nil error is healthy.
type Check func(ctx context.Context) error

// Info returns metadata attached to a component, e.g. cache stats.
type Info func() map[string]interface{}

type Component struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type Response struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components,omitempty"`
	Version    string      `json:"version,omitempty"`
	GitCommit  string      `json:"git_commit,omitempty"`
}

type registration struct {
	check Check
	info  Info
}

// Checker runs the registered checks for /ready.
type Checker struct {
	logger    logging.ContextLogger
	checks    map[string]registration
	mu        sync.RWMutex
	version   string
	gitCommit string
}

func NewChecker(logger logging.ContextLogger, version, gitCommit string) *Checker {
	return &Checker{
		logger:    logger,
		checks:    make(map[string]registration),
		version:   version,
		gitCommit: gitCommit,
	}
}

func (c *Checker) RegisterCheck(name string, check Check) {
	c.register(name, registration{check: check})
}

// RegisterInfo adds a component that is always healthy and only carries
// metadata.
func (c *Checker) RegisterInfo(name string, info Info) {
	c.register(name, registration{info: info})
}

// RegisterCheckWithInfo adds a check whose component also carries metadata.
func (c *Checker) RegisterCheckWithInfo(name string, check Check, info Info) {
	c.register(name, registration{check: check, info: info})
}

func (c *Checker) register(name string, r registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = r
}

// CheckHealth runs every check in parallel. Components are sorted by name.
// Any unhealthy component makes the response unhealthy; otherwise any
// degraded one makes it degraded.
func (c *Checker) CheckHealth(ctx context.Context) Response {
	c.mu.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	response := Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		GitCommit:  c.gitCommit,
		Components: make([]Component, 0, len(checks)),
	}

	results := make(chan Component, len(checks))
	var wg sync.WaitGroup

	for name, r := range checks {
		wg.Add(1)
		go func(name string, r registration) {
			defer wg.Done()
			results <- c.run(ctx, name, r)
		}(name, r)
	}

	wg.Wait()
	close(results)

	for comp := range results {
		response.Components = append(response.Components, comp)
		switch {
		case comp.Status == StatusUnhealthy:
			response.Status = StatusUnhealthy
		case comp.Status == StatusDegraded && response.Status == StatusHealthy:
			response.Status = StatusDegraded
		}
	}
	sort.Slice(response.Components, func(i, j int) bool {
		return response.Components[i].Name < response.Components[j].Name
	})

	return response
}

func (c *Checker) run(ctx context.Context, name string, r registration) Component {
	comp := Component{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now().UTC(),
	}

	if r.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		if err := r.check(checkCtx); err != nil {
			comp.Message = err.Error()
			comp.Status = StatusUnhealthy
			if errors.Is(err, ErrDegraded) {
				comp.Status = StatusDegraded
			}
			c.logger.WithField("component", name).Error("Health check failed", "error", err.Error())
		}
	}
	if r.info != nil {
		comp.Metadata = r.info()
	}
	return comp
}

// LivenessHandler answers 200 as long as the process can serve requests.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, http.StatusOK, Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC(),
			Version:   c.version,
			GitCommit: c.gitCommit,
		}, c.logger)
	}
}

// ReadinessHandler runs all checks. Degraded still answers 200.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithCorrelationID(r.Context(), logging.GenerateCorrelationID())
		logger := c.logger.WithContext(ctx)
		logger.Debug("Performing readiness check")

		response := c.CheckHealth(ctx)

		code := http.StatusOK
		if response.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.write(w, code, response, logger)
	}
}

func (c *Checker) write(w http.ResponseWriter, code int, response Response, logger logging.ContextLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode health response", "error", err.Error())
	}
}
