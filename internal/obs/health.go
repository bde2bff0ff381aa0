package obs

import "context"

// CheckResult is the outcome of one named health check.
type CheckResult struct {
	Healthy bool
	Message string
}

// HealthStatus aggregates every check an archive handle ran.
type HealthStatus struct {
	Healthy bool
	Checks  map[string]*CheckResult
}

// HealthChecker reports whether the backend a Store talks to looks usable,
// based on the circuit breaker guarding it (if any).
type HealthChecker struct {
	breaker *CircuitBreaker
}

// NewHealthChecker returns a checker watching breaker. A nil breaker is
// valid and always reports healthy.
func NewHealthChecker(breaker *CircuitBreaker) *HealthChecker {
	return &HealthChecker{breaker: breaker}
}

// Check reports the backend's current reachability.
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	if hc.breaker == nil {
		return &HealthStatus{
			Healthy: true,
			Checks: map[string]*CheckResult{
				"backend": {Healthy: true, Message: "no circuit breaker configured"},
			},
		}
	}

	state := hc.breaker.State()
	healthy := state != CircuitOpen

	msg := "backend reachable"
	if !healthy {
		msg = "backend circuit breaker is open"
	}

	return &HealthStatus{
		Healthy: healthy,
		Checks: map[string]*CheckResult{
			"backend": {Healthy: healthy, Message: msg},
		},
	}
}
