package client

import (
	"context"
	"sync"
	"time"
)

const defaultPollInterval = 30 * time.Second

// Snapshot is one consistent read of the board: all tasks plus all agents.
// Version increases with every refresh attempt; consumers can use it to
// tell whether a snapshot supersedes one they already hold.
type Snapshot struct {
	Version uint64
	Tasks   []Task
	Agents  []Agent
	Taken   time.Time
}

// Poller keeps a Snapshot fresh by polling the server: once at Start, then
// on a fixed interval. Stop cancels the timer and any in-flight request.
//
// Each refresh is stamped with a version when it begins. A refresh that
// finishes after a newer one has already landed is discarded, so the held
// snapshot never moves backwards.
type Poller struct {
	api      *Client
	interval time.Duration
	onUpdate func(Snapshot)

	mu   sync.Mutex
	snap Snapshot
	next uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the refresh interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithOnUpdate registers a callback invoked whenever a fresher snapshot
// lands. It runs on the poller goroutine.
func WithOnUpdate(fn func(Snapshot)) PollerOption {
	return func(p *Poller) { p.onUpdate = fn }
}

// NewPoller creates a poller over the given API client.
func NewPoller(api *Client, opts ...PollerOption) *Poller {
	p := &Poller{
		api:      api,
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start refreshes once immediately, then on every tick until Stop.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		p.Refresh(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Refresh(ctx)
			}
		}
	}()
}

// Stop tears the poller down: the timer stops and an in-flight refresh is
// cancelled. It blocks until the poll goroutine has exited.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Snapshot returns the freshest snapshot seen so far.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Refresh fetches tasks and agents now. Callers may trigger it manually
// between ticks; a slow refresh that loses the race to a newer one is
// thrown away.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.next++
	version := p.next
	p.mu.Unlock()

	tasks, err := p.api.ListTasks(ctx, TaskListOptions{})
	if err != nil {
		return err
	}
	agents, err := p.api.Agents(ctx, "")
	if err != nil {
		return err
	}

	snap := Snapshot{
		Version: version,
		Tasks:   tasks,
		Agents:  agents,
		Taken:   time.Now(),
	}

	p.mu.Lock()
	stale := snap.Version <= p.snap.Version
	if !stale {
		p.snap = snap
	}
	p.mu.Unlock()

	if stale {
		return nil
	}
	if p.onUpdate != nil {
		p.onUpdate(snap)
	}
	return nil
}
