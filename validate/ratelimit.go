package validate

import (
	"context"
	"math"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRateFloor is the slowest a host is ever probed, in requests per second.
	minRateFloor = 1.0

	// maxRateCeiling caps the per-host request rate.
	maxRateCeiling = 100.0

	// emaAlpha weights new RTT observations in the moving average.
	emaAlpha = 0.2

	// recoveryFactor is the rate increase per fast response.
	recoveryFactor = 1.1

	// backoffFactor bounds a single slow-response rate drop.
	backoffFactor = 0.5

	// defaultTargetRTT is the response time the limiter steers towards.
	defaultTargetRTT = 500 * time.Millisecond
)

// AdaptiveLimiter paces requests to one host, slowing down when responses
// get slower than the target RTT or the host answers 429, and speeding up
// again while responses are fast. RTTs are smoothed with an exponential
// moving average so one slow response does not crash the rate.
type AdaptiveLimiter struct {
	limiter   *rate.Limiter
	targetRTT time.Duration

	mu          sync.RWMutex
	emaRTT      time.Duration
	currentRate float64
	fixed       bool
}

// NewAdaptiveLimiter creates a limiter starting at initialRPS.
func NewAdaptiveLimiter(initialRPS int, targetRTT time.Duration) *AdaptiveLimiter {
	if targetRTT <= 0 {
		targetRTT = defaultTargetRTT
	}
	rps := clampRate(float64(initialRPS))
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
		targetRTT:   targetRTT,
		emaRTT:      targetRTT,
		currentRate: rps,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT records a response time and adjusts the rate.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fixed {
		return
	}

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))
	ratio := float64(a.targetRTT) / float64(a.emaRTT)

	next := a.currentRate * recoveryFactor
	if ratio < 1 {
		next = math.Max(a.currentRate*ratio, a.currentRate*backoffFactor)
	}
	a.setLocked(next)
}

// ObserveThrottle halves the rate after the host answered 429.
func (a *AdaptiveLimiter) ObserveThrottle() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fixed {
		return
	}
	a.setLocked(a.currentRate * backoffFactor)
}

// SetRate pins the rate and disables adaptation.
func (a *AdaptiveLimiter) SetRate(rps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fixed = false
	a.setLocked(float64(rps))
	a.fixed = true
}

// CurrentRate returns the rate in requests per second, rounded.
func (a *AdaptiveLimiter) CurrentRate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(math.Round(a.currentRate))
}

// CurrentEMA returns the smoothed RTT.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emaRTT
}

func (a *AdaptiveLimiter) setLocked(rps float64) {
	rps = clampRate(rps)
	if rps == a.currentRate {
		return
	}
	a.currentRate = rps
	a.limiter.SetLimit(rate.Limit(rps))
	a.limiter.SetBurst(burstFor(rps))
}

func clampRate(rps float64) float64 {
	return math.Min(math.Max(rps, minRateFloor), maxRateCeiling)
}

func burstFor(rps float64) int {
	return int(math.Ceil(rps))
}

// HostLimiter keeps one AdaptiveLimiter per host, so a slow or throttling
// site does not hold back probes to every other site.
type HostLimiter struct {
	initialRPS int
	targetRTT  time.Duration

	mu    sync.Mutex
	hosts map[string]*AdaptiveLimiter
}

// NewHostLimiter returns a HostLimiter whose per-host limiters start at
// initialRPS. It returns nil when initialRPS <= 0, meaning unlimited.
func NewHostLimiter(initialRPS int, targetRTT time.Duration) *HostLimiter {
	if initialRPS <= 0 {
		return nil
	}
	return &HostLimiter{
		initialRPS: initialRPS,
		targetRTT:  targetRTT,
		hosts:      make(map[string]*AdaptiveLimiter),
	}
}

// For returns the limiter for rawURL's host.
func (h *HostLimiter) For(rawURL string) *AdaptiveLimiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.hosts[host]
	if !ok {
		l = NewAdaptiveLimiter(h.initialRPS, h.targetRTT)
		h.hosts[host] = l
	}
	return l
}
