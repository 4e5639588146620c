package sqlite

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dehyl/missionctl/internal/core"
)

// Broadcaster is the interface for emitting events to WebSocket clients.
type Broadcaster interface {
	Broadcast(event any)
}

// OnlineGauge receives the count of agents not currently offline.
// prometheus.Gauge satisfies it.
type OnlineGauge interface {
	Set(float64)
}

// Sweeper runs a background goroutine that periodically marks agents whose
// heartbeat has gone stale as offline.
type Sweeper struct {
	store    *Store
	bus      Broadcaster
	interval time.Duration
	grace    time.Duration // heartbeat grace period
	gauge    OnlineGauge
	cancel   context.CancelFunc
	done     chan struct{}
}

// SetOnlineGauge makes the sweeper refresh the given gauge after each
// sweep that flipped agents offline, so the count does not go stale
// between heartbeats.
func (sw *Sweeper) SetOnlineGauge(g OnlineGauge) {
	sw.gauge = g
}

// NewSweeper creates a new Sweeper. Call Start() to begin sweeping.
func NewSweeper(store *Store, bus Broadcaster, interval, grace time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		bus:      bus,
		interval: interval,
		grace:    grace,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		defer close(sw.done)

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.runSweep()
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
}

func (sw *Sweeper) runSweep() {
	staleBefore := time.Now().UTC().Add(-sw.grace)

	flipped, err := sw.store.MarkStaleAgentsOffline(staleBefore)
	if err != nil {
		log.Error().Err(err).Msg("sweeper")
		return
	}
	if len(flipped) == 0 {
		return
	}

	log.Info().Int("agents", len(flipped)).Msg("sweeper: marked stale agents offline")

	if sw.gauge != nil {
		if agents, err := sw.store.ListAgents(""); err == nil {
			online := 0
			for _, a := range agents {
				if a.Status != core.AgentStatusOffline {
					online++
				}
			}
			sw.gauge.Set(float64(online))
		}
	}

	if sw.bus != nil {
		for _, a := range flipped {
			sw.bus.Broadcast(map[string]any{
				"type":     "agent_offline",
				"agent_id": a.ID,
				"name":     a.Name,
			})
		}
	}
}
