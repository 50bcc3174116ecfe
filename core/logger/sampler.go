package logger

import (
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"
)

const defaultDebugEvery = 50

// debugSampler lets one high-volume debug event through every N calls.
// A nil sampler admits everything.
var debugSampler atomic.Pointer[rate.Sometimes]

func setDebugSample(every int) {
	if every <= 1 {
		debugSampler.Store(nil)
		return
	}
	debugSampler.Store(&rate.Sometimes{Every: every})
}

// parseDebugEvery turns "1/N", "N" or "off" into a sampling period.
// Ratios with a numerator above one are rounded down to 1/(den/num).
func parseDebugEvery(setting string) int {
	setting = strings.ToLower(strings.TrimSpace(setting))
	switch setting {
	case "":
		return defaultDebugEvery
	case "off", "all", "0":
		return 1
	}
	if num, den, ok := strings.Cut(setting, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
			return defaultDebugEvery
		}
		if n >= d {
			return 1
		}
		return d / n
	}
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return v
	}
	return defaultDebugEvery
}

// ShouldSampleDebug reports whether a sampled debug event should be logged.
// TRACE=1 or LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	if traceOverride.Load() {
		return true
	}
	s := debugSampler.Load()
	if s == nil {
		return true
	}
	allowed := false
	s.Do(func() { allowed = true })
	return allowed
}
