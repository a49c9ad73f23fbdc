package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relayonprem/control-plane/internal/api/helpers"
)

// LimitClass is a named per-IP rate limit for one route family.
type LimitClass struct {
	Name  string
	RPS   rate.Limit
	Burst int
}

// PerMinute builds a class allowing n requests per minute with a matching
// burst, which approximates a sliding window for these low limits.
func PerMinute(name string, n int) LimitClass {
	return LimitClass{Name: name, RPS: rate.Limit(float64(n) / 60.0), Burst: n}
}

// PerHour builds a class allowing n requests per hour.
func PerHour(name string, n int) LimitClass {
	return LimitClass{Name: name, RPS: rate.Limit(float64(n) / 3600.0), Burst: n}
}

// IPRateLimiter keeps one token bucket per client IP per class. Counters are
// process-local; a multi-node deployment gets N times the nominal limit,
// which is acceptable for these abuse thresholds.
type IPRateLimiter struct {
	class LimitClass
	ips   sync.Map // ip string -> *rate.Limiter
}

func NewIPRateLimiter(class LimitClass) *IPRateLimiter {
	l := &IPRateLimiter{class: class}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := l.ips.Load(ip); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.ips.LoadOrStore(ip, rate.NewLimiter(l.class.RPS, l.class.Burst))
	return v.(*rate.Limiter)
}

func (l *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(30 * time.Minute)
		// Full wipe: buckets refill fast enough that losing history only
		// briefly over-admits, and it keeps the map bounded.
		l.ips.Range(func(key, _ any) bool {
			l.ips.Delete(key)
			return true
		})
	}
}

// Middleware enforces the limit, answering 429 on exhaustion.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := helpers.GetRealIP(r)
		if !l.limiterFor(ip).Allow() {
			slog.Warn("rate_limit_exceeded", "class", l.class.Name, "ip", ip, "path", r.URL.Path)
			helpers.RespondError(w, r, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Limits groups the per-route-class limiters used by the router.
type Limits struct {
	Login           *IPRateLimiter
	PasswordReset   *IPRateLimiter
	Refresh         *IPRateLimiter
	InviteCreate    *IPRateLimiter
	InviteRedeem    *IPRateLimiter
	ShareCreate     *IPRateLimiter
	MemberAdd       *IPRateLimiter
	PasswordAttempt *IPRateLimiter
	WebhookCreate   *IPRateLimiter
}

// NewLimits instantiates the standard route-class thresholds.
func NewLimits() *Limits {
	return &Limits{
		Login:           NewIPRateLimiter(PerMinute("login", 10)),
		PasswordReset:   NewIPRateLimiter(PerHour("password_reset", 3)),
		Refresh:         NewIPRateLimiter(PerMinute("refresh", 30)),
		InviteCreate:    NewIPRateLimiter(PerMinute("invite_create", 10)),
		InviteRedeem:    NewIPRateLimiter(PerMinute("invite_redeem", 10)),
		ShareCreate:     NewIPRateLimiter(PerMinute("share_create", 20)),
		MemberAdd:       NewIPRateLimiter(PerMinute("member_add", 30)),
		PasswordAttempt: NewIPRateLimiter(PerMinute("password_attempt", 5)),
		WebhookCreate:   NewIPRateLimiter(PerHour("webhook_create", 10)),
	}
}
