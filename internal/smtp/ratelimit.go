package smtpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// senderRateLimiter throttles MAIL FROM acceptance per sender address, one
// token-bucket limiter per sender, grounded on the per-IP limiter pattern
// used for HTTP auth endpoints elsewhere in this codebase's ancestry.
type senderRateLimiter struct {
	senders sync.Map // string -> *rate.Limiter
	rps     rate.Limit
	burst   int
}

func newSenderRateLimiter(rps rate.Limit, burst int) *senderRateLimiter {
	l := &senderRateLimiter{rps: rps, burst: burst}
	go l.cleanupLoop()
	return l
}

func (l *senderRateLimiter) allow(sender string) bool {
	v, ok := l.senders.Load(sender)
	if !ok {
		v, _ = l.senders.LoadOrStore(sender, rate.NewLimiter(l.rps, l.burst))
	}
	return v.(*rate.Limiter).Allow()
}

// cleanupLoop periodically drops all tracked limiters so long-lived servers
// don't accumulate one entry per distinct sender forever.
func (l *senderRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.senders.Range(func(key, _ any) bool {
			l.senders.Delete(key)
			return true
		})
	}
}
