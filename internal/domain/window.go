package domain

import (
	"fmt"
	"time"
)

// TimeWindow is a look-back window expressed in minutes.
type TimeWindow int

// Supported look-back windows.
const (
	Window5m  TimeWindow = 5
	Window15m TimeWindow = 15
	Window30m TimeWindow = 30
	Window1h  TimeWindow = 60
	Window2h  TimeWindow = 120
	Window4h  TimeWindow = 240
	Window8h  TimeWindow = 480
	Window12h TimeWindow = 720
	Window24h TimeWindow = 1440
)

// DefaultWindow is used when no window is selected.
const DefaultWindow = Window24h

// Windows lists all supported windows in ascending order.
var Windows = []TimeWindow{
	Window5m, Window15m, Window30m, Window1h, Window2h, Window4h, Window8h, Window12h, Window24h,
}

// maxTimeScale caps the intensity boost for short windows.
const maxTimeScale = 24.0

// IsValid checks if the window is one of the supported values.
func (w TimeWindow) IsValid() bool {
	for _, v := range Windows {
		if v == w {
			return true
		}
	}
	return false
}

// Duration returns the window as a time.Duration.
func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w) * time.Minute
}

// TimeScale returns the intensity scale factor for the window:
// 1 for 24h, 24 for 1h and anything shorter.
func (w TimeWindow) TimeScale() float64 {
	if w <= 0 {
		return 1
	}
	scale := float64(Window24h) / float64(w)
	if scale < 1 {
		return 1
	}
	if scale > maxTimeScale {
		return maxTimeScale
	}
	return scale
}

// Since returns the start of the window ending at now.
func (w TimeWindow) Since(now time.Time) time.Time {
	return now.Add(-w.Duration())
}

// String returns labels like "5m", "1h", "24h".
func (w TimeWindow) String() string {
	if w >= 60 && w%60 == 0 {
		return fmt.Sprintf("%dh", int(w)/60)
	}
	return fmt.Sprintf("%dm", int(w))
}

// ParseTimeWindow parses a window given in minutes.
func ParseTimeWindow(minutes int) (TimeWindow, error) {
	w := TimeWindow(minutes)
	if !w.IsValid() {
		return 0, fmt.Errorf("unsupported time window: %d minutes", minutes)
	}
	return w, nil
}
