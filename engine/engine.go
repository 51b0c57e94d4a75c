package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"slotrecycler/bus"
	"slotrecycler/config"
	"slotrecycler/metrics"
	"slotrecycler/recycler"
	"slotrecycler/slotstate"
	"slotrecycler/store"
)

type LogFunc func(format string, args ...any)

// SlotMirror receives tracked slot state after every pass.
type SlotMirror interface {
	SyncSlots(ctx context.Context, views []*slotstate.SlotView) error
	IncrementReclaimCount(ctx context.Context, address int) (int64, error)
	GetReclaimCount(ctx context.Context, address int) (int64, error)
}

// Config wires an Engine. DB, SlotState and Metrics are optional.
type Config struct {
	AppConfig     *config.Config
	ConfigPath    string
	DB            *store.DB
	Bus           bus.Backend
	SlotState     SlotMirror
	Metrics       *metrics.Metrics
	PublishEvents bool
	Clock         recycler.Clock
	LogFunc       LogFunc
}

type Engine struct {
	cfg           *config.Config
	configPath    string
	db            *store.DB
	bus           bus.Backend
	slotState     SlotMirror
	metrics       *metrics.Metrics
	publishEvents bool
	recycler      *recycler.Recycler
	scheduler     *recycler.Scheduler
	Events        *EventBus
	logFn         LogFunc
	stopChan      chan struct{}
	stopOnce      sync.Once

	mu           sync.RWMutex
	busConnected bool
	lastPass     *recycler.PassSummary
}

// Status is the operator view of the engine.
type Status struct {
	Running      bool                  `json:"running"`
	Bus          string                `json:"bus"`
	BusConnected bool                  `json:"bus_connected"`
	DryRun       bool                  `json:"dry_run"`
	PollInterval string                `json:"poll_interval"`
	IdleTimeout  string                `json:"idle_timeout"`
	ConsistIdle  string                `json:"consist_idle_timeout"`
	ActionOrder  string                `json:"action_order"`
	Tracked      int                   `json:"tracked"`
	LastPass     *recycler.PassSummary `json:"last_pass,omitempty"`
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	clock := c.Clock
	if clock == nil {
		clock = recycler.MonotonicClock()
	}
	e := &Engine{
		cfg:           c.AppConfig,
		configPath:    c.ConfigPath,
		db:            c.DB,
		bus:           c.Bus,
		slotState:     c.SlotState,
		metrics:       c.Metrics,
		publishEvents: c.PublishEvents,
		Events:        NewEventBus(),
		logFn:         logFn,
		stopChan:      make(chan struct{}),
	}
	rc := &c.AppConfig.Recycler
	e.recycler = recycler.New(c.Bus, recyclerOptions(rc), clock, &passEmitter{bus: e.Events}, recycler.LogFunc(logFn))
	e.scheduler = recycler.NewScheduler(e.scheduledPass, rc.PollInterval, rc.InitialDelay, recycler.LogFunc(logFn))
	return e
}

func recyclerOptions(rc *config.RecyclerConfig) recycler.Options {
	return recycler.Options{
		IdleTimeout:        rc.IdleTimeout,
		ConsistIdleTimeout: rc.ConsistIdleTimeout,
		Ordering:           recycler.Ordering(rc.ActionOrder),
		IncludeConsists:    rc.IncludeConsists,
		IncludeHandheld:    rc.IncludeHandheld,
		AllowedThrottleIDs: rc.AllowedThrottleIDs,
		DryRun:             rc.DryRun,
		SkipSystemSlots:    rc.SkipSystemSlots,
		ProtectedFile:      rc.ProtectedAddressesFile,
	}
}

// Start wires the event handlers and starts the recycler. If the bus is
// unreachable the engine still runs (API, health loop) but the recycler
// stays stopped until an operator starts it.
func (e *Engine) Start() {
	e.wireEventHandlers()
	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	if err := e.StartRecycler("system"); err != nil {
		e.logFn("engine: recycler not started: %v", err)
	}
	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	e.StopRecycler("system")
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.logFn("engine: stopped")
}

// StartRecycler begins periodic passes. It fails when the bus is
// unreachable and is a no-op when already running.
func (e *Engine) StartRecycler(actor string) error {
	if err := e.bus.Ping(); err != nil {
		return fmt.Errorf("%s unavailable: %w", e.bus.Name(), err)
	}
	if !e.scheduler.Start(context.Background()) {
		e.logFn("engine: recycler already running")
		return nil
	}
	rc := &e.cfg.Recycler
	e.logFn("engine: recycler started via %s: interval=%s idle=%s consist_idle=%s order=%s dry_run=%v",
		e.bus.Name(), rc.PollInterval, rc.IdleTimeout, rc.ConsistIdleTimeout, rc.ActionOrder, rc.DryRun)
	e.Events.Emit(Event{Type: EventRecyclerStarted, Payload: RecyclerStateEvent{Actor: actor}})
	return nil
}

// StopRecycler cancels future passes; a pass in progress completes.
// It returns false if the recycler was not running.
func (e *Engine) StopRecycler(actor string) bool {
	if !e.scheduler.Stop() {
		return false
	}
	e.logFn("engine: recycler stopped by %s", actor)
	e.Events.Emit(Event{Type: EventRecyclerStopped, Payload: RecyclerStateEvent{Actor: actor}})
	return true
}

// RunOnce performs an immediate pass outside the schedule. It waits for any
// pass already in progress.
func (e *Engine) RunOnce(ctx context.Context, actor string) (*recycler.PassSummary, error) {
	e.Events.Emit(Event{Type: EventPassRequested, Payload: RecyclerStateEvent{Actor: actor}})
	return e.recycler.RunPass(ctx)
}

func (e *Engine) scheduledPass(ctx context.Context) error {
	_, err := e.recycler.RunPass(ctx)
	return err
}

func (e *Engine) RecyclerRunning() bool { return e.scheduler.Running() }

// Accessors
func (e *Engine) DB() *store.DB                { return e.db }
func (e *Engine) AppConfig() *config.Config    { return e.cfg }
func (e *Engine) ConfigPath() string           { return e.configPath }
func (e *Engine) Bus() bus.Backend             { return e.bus }
func (e *Engine) Metrics() *metrics.Metrics    { return e.metrics }
func (e *Engine) SlotState() SlotMirror        { return e.slotState }
func (e *Engine) Recycler() *recycler.Recycler { return e.recycler }

func (e *Engine) LastPass() *recycler.PassSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.lastPass == nil {
		return nil
	}
	p := *e.lastPass
	return &p
}

func (e *Engine) setLastPass(s recycler.PassSummary) {
	e.mu.Lock()
	e.lastPass = &s
	e.mu.Unlock()
}

func (e *Engine) Status() Status {
	rc := &e.cfg.Recycler
	e.mu.RLock()
	connected := e.busConnected
	e.mu.RUnlock()
	return Status{
		Running:      e.RecyclerRunning(),
		Bus:          e.bus.Name(),
		BusConnected: connected,
		DryRun:       rc.DryRun,
		PollInterval: rc.PollInterval.String(),
		IdleTimeout:  rc.IdleTimeout.String(),
		ConsistIdle:  rc.ConsistIdleTimeout.String(),
		ActionOrder:  rc.ActionOrder,
		Tracked:      e.recycler.Tracker().Len(),
		LastPass:     e.LastPass(),
	}
}

// Slots returns the tracked slots ordered by slot number.
func (e *Engine) Slots() []*slotstate.SlotView {
	tr := e.recycler.Tracker()
	now := tr.Now()
	updated := time.Now()
	states := tr.Snapshot()
	views := make([]*slotstate.SlotView, 0, len(states))
	for i := range states {
		st := &states[i]
		views = append(views, &slotstate.SlotView{
			Slot:        st.Slot,
			Address:     st.Address,
			Speed:       st.Speed,
			Status:      st.Status,
			Owner:       st.Owner,
			ConsistID:   st.ConsistID,
			IdleSeconds: st.Idle(now),
			Reasons:     st.ReasonString(),
			UpdatedAt:   updated,
		})
	}
	return views
}

func (e *Engine) checkConnectionStatus() {
	err := e.bus.Ping()
	e.mu.Lock()
	was := e.busConnected
	e.busConnected = err == nil
	e.mu.Unlock()

	switch {
	case err == nil && !was:
		e.Events.Emit(Event{Type: EventBusConnected, Payload: ConnectionEvent{Detail: e.bus.Name() + " connected"}})
	case err != nil && was:
		e.Events.Emit(Event{Type: EventBusDisconnected, Payload: ConnectionEvent{Detail: err.Error()}})
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
