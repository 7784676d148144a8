package session

import "time"

// micLimiter is a token bucket over inbound microphone frames, bounding both
// frame rate and byte rate. A nil limiter allows everything.
type micLimiter struct {
	now          func() time.Time
	frameRate    int64
	frameTokens  int64
	byteRate     int64
	byteTokens   int64
	burstSeconds int64
	lastRefill   time.Time
}

func newMicLimiter(now func() time.Time, framesPerSec int, bytesPerSec int64, burstSeconds int) *micLimiter {
	if framesPerSec <= 0 && bytesPerSec <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}
	l := &micLimiter{
		now:          now,
		frameRate:    int64(framesPerSec),
		byteRate:     bytesPerSec,
		burstSeconds: int64(burstSeconds),
		lastRefill:   now(),
	}
	if l.frameRate > 0 {
		l.frameTokens = l.frameRate * l.burstSeconds
	}
	if l.byteRate > 0 {
		l.byteTokens = l.byteRate * l.burstSeconds
	}
	return l
}

func (l *micLimiter) Allow(frameBytes int) bool {
	if l == nil {
		return true
	}
	l.refill()

	if l.frameRate > 0 && l.frameTokens < 1 {
		return false
	}
	if frameBytes < 0 {
		frameBytes = 0
	}
	if l.byteRate > 0 && l.byteTokens < int64(frameBytes) {
		return false
	}
	if l.frameRate > 0 {
		l.frameTokens--
	}
	if l.byteRate > 0 {
		l.byteTokens -= int64(frameBytes)
	}
	return true
}

func (l *micLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	if l.frameRate > 0 {
		add := (elapsed.Nanoseconds() * l.frameRate) / int64(time.Second)
		if add > 0 {
			l.frameTokens += add
			if limit := l.frameRate * l.burstSeconds; l.frameTokens > limit {
				l.frameTokens = limit
			}
		}
	}
	if l.byteRate > 0 {
		add := (elapsed.Nanoseconds() * l.byteRate) / int64(time.Second)
		if add > 0 {
			l.byteTokens += add
			if limit := l.byteRate * l.burstSeconds; l.byteTokens > limit {
				l.byteTokens = limit
			}
		}
	}
	l.lastRefill = now
}
