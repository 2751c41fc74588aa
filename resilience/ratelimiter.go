package resilience

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// Tier distinguishes the two rate-limit classes the gateway enforces.
type Tier string

const (
	TierGeneral   Tier = "general"
	TierSensitive Tier = "sensitive"
)

// RateLimiter is a per-client-identity, per-tier token bucket built on
// golang.org/x/time/rate (transitively present across the reference pack,
// the idiomatic Go token bucket rather than a hand-rolled one).
type RateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*rate.Limiter
	generalRPS     rate.Limit
	generalBurst   int
	sensitiveRPS   rate.Limit
	sensitiveBurst int

	trustedProxies []*net.IPNet
}

// NewRateLimiter constructs a limiter with distinct general/sensitive tiers
// and a set of CIDRs allowed to assert a forwarded client identity.
func NewRateLimiter(generalRPS float64, generalBurst int, sensitiveRPS float64, sensitiveBurst int, trustedProxyCIDRs []string) *RateLimiter {
	rl := &RateLimiter{
		limiters:       make(map[string]*rate.Limiter),
		generalRPS:     rate.Limit(generalRPS),
		generalBurst:   generalBurst,
		sensitiveRPS:   rate.Limit(sensitiveRPS),
		sensitiveBurst: sensitiveBurst,
	}
	for _, cidr := range trustedProxyCIDRs {
		if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
			rl.trustedProxies = append(rl.trustedProxies, ipNet)
		}
	}
	return rl
}

// ResolveIdentity returns the client identity to rate-limit on: the
// forwarded-IP header value is honored only when remoteAddr belongs to a
// configured trusted-proxy network, otherwise the peer address itself is
// used and the forwarded header is ignored outright (anti-spoofing, per
// spec.md §4.11).
func (rl *RateLimiter) ResolveIdentity(remoteAddr, forwardedFor string) string {
	ip := net.ParseIP(remoteAddr)
	if ip == nil {
		return remoteAddr
	}
	if forwardedFor == "" || !rl.isTrustedProxy(ip) {
		return ip.String()
	}
	return forwardedFor
}

func (rl *RateLimiter) isTrustedProxy(ip net.IP) bool {
	for _, n := range rl.trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Allow reports whether identity may proceed under the given tier, consuming
// one token from its bucket if so.
func (rl *RateLimiter) Allow(identity string, tier Tier) bool {
	return rl.limiterFor(identity, tier).Allow()
}

func (rl *RateLimiter) limiterFor(identity string, tier Tier) *rate.Limiter {
	key := string(tier) + ":" + identity

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if lim, ok := rl.limiters[key]; ok {
		return lim
	}

	var lim *rate.Limiter
	if tier == TierSensitive {
		lim = rate.NewLimiter(rl.sensitiveRPS, rl.sensitiveBurst)
	} else {
		lim = rate.NewLimiter(rl.generalRPS, rl.generalBurst)
	}
	rl.limiters[key] = lim
	return lim
}
