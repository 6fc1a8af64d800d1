// Package collector implements the per-object collectors (C4) described in
// spec.md §4.4: one fixed-delay loop per object kind (server, dispatch
// post, active train, timetable, vehicle sequence), each isolating a single
// object's failure from the rest of its tick. The ticker-goroutine-plus-
// context-cancellation shape is carried directly from the teacher's
// cmd/poller/main.go polling loop, generalized from one interval to N
// independently-scheduled collectors.
package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Run invokes tick immediately and then repeatedly, waiting period after
// each tick completes before starting the next — fixed delay, not fixed
// rate, per spec.md §4.4: "a new tick never starts before the previous tick
// completes." A time.Ticker cannot express this: if a tick overruns period,
// its single buffered firing would let the next tick start immediately on
// return instead of waiting a full period after completion. A timer reset
// after each tick finishes does. A panic-free tick error is logged and the
// scheduler re-arms the next tick unchanged, per spec.md §9's propagation
// policy.
func Run(ctx context.Context, name string, period time.Duration, log zerolog.Logger, tick func(context.Context) error) {
	runTick := func() {
		if err := tick(ctx); err != nil {
			log.Error().Err(err).Str("collector", name).Msg("tick failed")
		}
	}

	runTick()

	timer := time.NewTimer(period)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			runTick()
			timer.Reset(period)
		case <-ctx.Done():
			log.Info().Str("collector", name).Msg("collector stopped")
			return
		}
	}
}
