package server

import (
	"net"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a per-IP limiter survives without new connections.
const limiterIdleTTL = 5 * time.Minute

// connLimiter limits new connections per remote IP. A nil *connLimiter allows everything.
type connLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

// newConnLimiter allows rps connections/second per IP with a burst of rps.
// rps <= 0 disables limiting and returns nil.
func newConnLimiter(rps int) *connLimiter {
	if rps <= 0 {
		return nil
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
	)
	go cache.Start()
	return &connLimiter{limiters: cache, rps: rate.Limit(rps), burst: rps}
}

func (l *connLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	item, _ := l.limiters.GetOrSet(ip, rate.NewLimiter(l.rps, l.burst))
	return item.Value().Allow()
}

func (l *connLimiter) stop() {
	if l != nil {
		l.limiters.Stop()
	}
}

// remoteIP strips the port from a connection's remote address.
func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
