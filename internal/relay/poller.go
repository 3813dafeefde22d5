package relay

import (
	"context"
	"log/slog"
	"time"

	xerrors "github.com/StacksTasker/x402-stacks-agent-console/internal/errors"
	"github.com/StacksTasker/x402-stacks-agent-console/internal/marketplace"
	"github.com/StacksTasker/x402-stacks-agent-console/pkg/logger"
)

// TaskSource is the part of the marketplace client the pollers consume.
type TaskSource interface {
	ListTasks(ctx context.Context, status, network string) ([]marketplace.Task, error)
	GetTask(ctx context.Context, id string) (*marketplace.Task, error)
}

// Broadcaster pushes one message to every connected client and reports the
// delivery count.
type Broadcaster interface {
	Broadcast(msg Message) int
}

// Intervals configures the three poll loops.
type Intervals struct {
	Open    time.Duration
	Agent   time.Duration
	Watched time.Duration
}

// Poller runs the three fixed-interval polling loops. Every cycle tolerates
// remote failure: log and continue, no backoff, never crash the process.
// Cycles of the same loop are not mutually excluded; a slow remote response
// can overlap the next tick.
type Poller struct {
	source      TaskSource
	state       *State
	identity    *Identity
	broadcaster Broadcaster
	intervals   Intervals
	networks    []string
	watchKick   chan struct{}
	log         *slog.Logger
}

// PollerOption mutates a Poller during construction.
type PollerOption func(*Poller)

// WithNetworks overrides which marketplace networks the open-task poller scans.
func WithNetworks(networks ...string) PollerOption {
	return func(p *Poller) {
		if len(networks) > 0 {
			p.networks = networks
		}
	}
}

// WithPollerLogger overrides the poller's logger.
func WithPollerLogger(log *slog.Logger) PollerOption {
	return func(p *Poller) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPoller wires a Poller over the given source, state, identity, and
// broadcast channel.
func NewPoller(source TaskSource, state *State, identity *Identity, broadcaster Broadcaster, intervals Intervals, opts ...PollerOption) *Poller {
	p := &Poller{
		source:      source,
		state:       state,
		identity:    identity,
		broadcaster: broadcaster,
		intervals:   intervals,
		networks:    []string{marketplace.NetworkTestnet, marketplace.NetworkMainnet},
		watchKick:   make(chan struct{}, 1),
		log:         logger.Named("poller"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start runs one synchronous all-agent cycle to seed the cache, then starts
// the three interval loops. It returns once the loops are running; they stop
// when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.PollAgentTasks(ctx)

	go p.runLoop(ctx, "open_tasks", p.intervals.Open, p.PollOpenTasks)
	go p.runLoop(ctx, "agent_tasks", p.intervals.Agent, p.PollAgentTasks)
	go p.runWatchedLoop(ctx)
}

func (p *Poller) runLoop(ctx context.Context, name string, interval time.Duration, cycle func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("poll loop stopped", slog.String("loop", name))
			return
		case <-ticker.C:
			cycle(ctx)
		}
	}
}

func (p *Poller) runWatchedLoop(ctx context.Context) {
	ticker := time.NewTicker(p.intervals.Watched)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("poll loop stopped", slog.String("loop", "watched_tasks"))
			return
		case <-ticker.C:
			p.PollWatched(ctx)
		case <-p.watchKick:
			p.PollWatched(ctx)
		}
	}
}

// KickWatched requests an immediate watched-task cycle without waiting for
// the interval. Non-blocking; a kick during a pending kick is coalesced.
func (p *Poller) KickWatched() {
	select {
	case p.watchKick <- struct{}{}:
	default:
	}
}

// PollOpenTasks is the new-open-task cycle: fetch open tasks across every
// network, merge, and broadcast the unseen ones. Until a cycle has fetched
// every network successfully, the cycle only seeds the seen set, so
// pre-existing tasks are never announced as new at boot even when one
// network's first fetch fails.
func (p *Poller) PollOpenTasks(ctx context.Context) {
	merged := make([]marketplace.Task, 0, 16)
	byID := make(map[string]struct{})
	fetched := false
	allFetched := true
	for _, network := range p.networks {
		tasks, err := p.source.ListTasks(ctx, marketplace.StatusOpen, network)
		if err != nil {
			allFetched = false
			p.log.Warn("open-task fetch failed",
				slog.String("network", network),
				slog.Bool("retryable", xerrors.Retryable(err)),
				slog.Any("error", err))
			continue
		}
		fetched = true
		for _, task := range tasks {
			if _, ok := byID[task.ID]; ok {
				continue
			}
			byID[task.ID] = struct{}{}
			merged = append(merged, task)
		}
	}
	if !fetched {
		return
	}

	if !p.state.Seeded() {
		for _, task := range merged {
			p.state.MarkSeen(task.ID)
		}
		if allFetched {
			p.state.MarkSeeded()
			p.log.Info("seeded open-task set", slog.Int("tasks", len(merged)))
		}
		return
	}

	var fresh []marketplace.Task
	for _, task := range merged {
		if !p.state.Seen(task.ID) {
			fresh = append(fresh, task)
		}
		p.state.MarkSeen(task.ID)
	}

	if len(fresh) == 0 {
		return
	}
	delivered := p.broadcaster.Broadcast(NewMessage(TypeNewTasks, map[string]any{"tasks": fresh}))
	p.log.Info("new tasks broadcast",
		slog.Int("tasks", len(fresh)),
		slog.Int("clients", delivered))
}

// PollAgentTasks is the all-agent-task cycle: walk the ordered status list,
// keep the snapshots that belong to our identities, record observations, and
// broadcast every changed one as a single batch.
func (p *Poller) PollAgentTasks(ctx context.Context) {
	var changed []marketplace.Task
	for _, status := range marketplace.PollStatuses {
		tasks, err := p.source.ListTasks(ctx, status, "")
		if err != nil {
			p.log.Warn("agent-task fetch failed",
				slog.String("status", status),
				slog.Bool("retryable", xerrors.Retryable(err)),
				slog.Any("error", err))
			continue
		}
		for _, task := range tasks {
			if !p.identity.IsOurTask(task) {
				continue
			}
			if p.state.RecordObservation(task.ID, task.Status) == Changed {
				changed = append(changed, task)
			}
		}
	}

	if len(changed) == 0 {
		return
	}
	delivered := p.broadcaster.Broadcast(NewMessage(TypeTaskUpdates, map[string]any{"tasks": changed}))
	p.log.Info("task updates broadcast",
		slog.Int("tasks", len(changed)),
		slog.Int("clients", delivered))
}

// PollWatched is the watched-task cycle: re-fetch each non-terminal cached
// task individually. It catches tasks registered via the watch operation that
// never show up in the bulk listings.
func (p *Poller) PollWatched(ctx context.Context) {
	var changed []marketplace.Task
	for _, id := range p.state.WatchedIDs() {
		task, err := p.source.GetTask(ctx, id)
		if err != nil {
			p.log.Warn("watched-task fetch failed",
				slog.String("task_id", id),
				slog.Bool("retryable", xerrors.Retryable(err)),
				slog.Any("error", err))
			continue
		}
		if p.state.RecordObservation(task.ID, task.Status) == Changed {
			changed = append(changed, *task)
		}
	}

	if len(changed) == 0 {
		return
	}
	delivered := p.broadcaster.Broadcast(NewMessage(TypeTaskUpdates, map[string]any{"tasks": changed}))
	p.log.Info("watched task updates broadcast",
		slog.Int("tasks", len(changed)),
		slog.Int("clients", delivered))
}
