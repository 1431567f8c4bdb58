package goIdentity

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"
)

// reaper is the single background sweeper. One ticker drives all reclaim
// work; there is no second scheduling loop anywhere in the engine.
type reaper struct {
	engine *Engine
	cfg    ReaperConfig

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newReaper(e *Engine, cfg ReaperConfig) *reaper {
	return &reaper{
		engine: e,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

func (r *reaper) start() {
	r.wg.Add(1)
	go r.run()
}

func (r *reaper) stop() {
	r.once.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

func (r *reaper) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

// sweep runs one batch-limited pass over sessions, tokens, the blacklist,
// and the usage ring, under a soft deadline. A failed step is logged and
// retried on the next tick; partial progress stands.
func (r *reaper) sweep() {
	e := r.engine

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SweepTimeout)
	defer cancel()

	now := e.now()
	limit := r.cfg.BatchLimit
	reclaimed := 0

	sessions, err := e.sessions.ReapExpired(ctx, now, limit)
	if err != nil {
		log.Print("goidentity: reaper sessions: ", err)
	}
	for _, s := range sessions {
		e.metricInc(MetricSessionExpired)
		e.publish(ctx, Event{
			Type:      EventSessionExpired,
			UserID:    s.UserID,
			SessionID: s.ID,
		})
	}
	reclaimed += len(sessions)

	tokens, err := e.tokens.ReapExpired(ctx, now, limit)
	if err != nil {
		log.Print("goidentity: reaper tokens: ", err)
	}
	for _, t := range tokens {
		e.metricInc(MetricTokenExpired)
		e.publish(ctx, Event{
			Type:    EventTokenExpired,
			UserID:  t.UserID,
			TokenID: t.ID,
			Metadata: map[string]string{
				"kind": t.Kind.String(),
			},
		})
	}
	reclaimed += len(tokens)

	purged, err := e.blacklist.Reap(ctx, now, limit)
	if err != nil {
		log.Print("goidentity: reaper blacklist: ", err)
	}
	reclaimed += purged

	trimmed := e.usage.Trim(now)

	e.metricInc(MetricReaperSweep)
	e.metricAdd(MetricReaperReclaimed, uint64(reclaimed))
	e.publish(ctx, Event{
		Type:    EventReaperSweep,
		Success: true,
		Metadata: map[string]string{
			"sessions_expired": strconv.Itoa(len(sessions)),
			"tokens_expired":   strconv.Itoa(len(tokens)),
			"blacklist_purged": strconv.Itoa(purged),
			"usage_trimmed":    strconv.Itoa(trimmed),
		},
	})
}
