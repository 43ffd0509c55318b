package gameservice

import (
	"context"
	"log/slog"
	"time"
)

// idleSleep is how long the tick loop backs off to when the world has no
// connected characters, per spec.md §4.9 step 1 ("zero characters → sleep
// 1s and retry") rather than grinding the full tick rate against an empty
// world.
const idleSleep = time.Second

// RunTickLoop drives the world's tick until ctx is cancelled, broadcasting
// each tick's events (spec.md §4.9). It runs at period while characters
// are connected, and backs off to idleSleep once the world is empty.
func (s *Service) RunTickLoop(ctx context.Context, period time.Duration) {
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("tick loop stopping")
			return
		case now := <-timer.C:
			s.TickOnce(now)
			next := period
			if s.world.CharacterCount() == 0 {
				next = idleSleep
			}
			timer.Reset(next)
		}
	}
}
