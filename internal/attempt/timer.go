package attempt

import (
	"context"
	"time"

	"github.com/stemsi/solvex/internal/model"
)

// TickFunc receives the state after every countdown step. err is the finish
// error when the step ended the attempt, nil otherwise.
type TickFunc func(v View, err error)

// RunTimer drives m's countdown from a wall-clock ticker until ctx is done or
// the attempt reaches a terminal state. A pending forced submission found on
// mount is sent before the first tick.
func RunTimer(ctx context.Context, m *Manager, interval time.Duration, notify TickFunc) {
	if interval <= 0 {
		interval = time.Second
	}
	if notify == nil {
		notify = func(View, error) {}
	}

	if v := m.View(); v.State == StateActive && v.TimeLeft == 0 {
		err := m.CheckExpiry(ctx)
		notify(m.View(), err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.State().Terminal() {
				return
			}
			if !m.TimerRunning() {
				continue
			}
			err := m.Tick(ctx)
			notify(m.View(), err)
		}
	}
}

// Remaining reports the whole seconds left on a stored snapshot at now.
func Remaining(snap *model.SessionSnapshot, now time.Time) int {
	return remainingSeconds(snap.DurationMinutes, snap.StartTime, now.UnixMilli())
}
