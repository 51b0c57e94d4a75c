package engine

import (
	"context"
	"strconv"
	"time"

	"slotrecycler/messaging"
	"slotrecycler/recycler"
	"slotrecycler/store"
)

const sinkTimeout = 5 * time.Second

func (e *Engine) wireEventHandlers() {
	// Pass results: history, metrics, redis mirror, outbound event
	e.Events.SubscribeTypes(func(evt Event) {
		s := evt.Payload.(PassCompletedEvent).Summary
		e.setLastPass(s)
		e.recordPassMetrics(s)
		if e.db != nil {
			if err := e.db.RecordPass(passRow(s)); err != nil {
				e.logFn("engine: record pass %s: %v", s.RunID, err)
			}
		}
		if e.slotState != nil && s.Error == "" {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := e.slotState.SyncSlots(ctx, e.Slots()); err != nil {
				e.logFn("engine: sync slot state: %v", err)
			}
			cancel()
		}
		e.publish(messaging.TypePassCompleted, messaging.PassCompleted{
			RunID:      s.RunID,
			StartedAt:  s.StartedAt,
			DurationMS: s.Duration.Milliseconds(),
			Observed:   s.Observed,
			Tracked:    s.Tracked,
			Consists:   s.Consists,
			Reclaimed:  s.Reclaimed,
			Failed:     s.Failed,
			Error:      s.Error,
		})
	}, EventPassCompleted)

	// Reclamations: history, audit, metrics, per-address counter, outbound event
	e.Events.SubscribeTypes(func(evt Event) {
		r := evt.Payload.(SlotReclaimedEvent).Reclamation
		actions := recycler.FormatAttempts(r.Attempts)
		e.recordReclaimMetrics(r)
		if e.db != nil {
			if err := e.db.RecordReclamation(reclamationRow(r, actions)); err != nil {
				e.logFn("engine: record reclamation slot %d: %v", r.Slot, err)
			}
			e.db.AppendAudit(store.EntitySlot, int64(r.Slot), reclaimAuditAction(r), strconv.Itoa(r.Address), actions, "system")
		}
		if e.slotState != nil && r.OK && !r.DryRun {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if _, err := e.slotState.IncrementReclaimCount(ctx, r.Address); err != nil {
				e.logFn("engine: reclaim count for %d: %v", r.Address, err)
			}
			cancel()
		}
		e.publish(messaging.TypeSlotReclaimed, messaging.SlotReclaimed{
			RunID:       r.RunID,
			Slot:        r.Slot,
			Address:     r.Address,
			ConsistID:   r.ConsistID,
			Scope:       r.Scope,
			Owner:       r.Owner,
			IdleSeconds: r.Idle,
			DryRun:      r.DryRun,
			Actions:     actions,
			OK:          r.OK,
		})
	}, EventSlotReclaimed)

	// Operator actions: audit, running gauge, outbound state
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RecyclerStateEvent)
		running := evt.Type == EventRecyclerStarted
		if e.metrics != nil {
			e.metrics.SetRunning(running)
		}
		if e.db != nil {
			action, oldValue, newValue := "started", "stopped", "running"
			if !running {
				action, oldValue, newValue = "stopped", "running", "stopped"
			}
			e.db.AppendAudit(store.EntityRecycler, 0, action, oldValue, newValue, ev.Actor)
		}
		e.publish(messaging.TypeRecyclerState, messaging.RecyclerState{Running: running, Actor: ev.Actor})
	}, EventRecyclerStarted, EventRecyclerStopped)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RecyclerStateEvent)
		e.logFn("engine: manual pass requested by %s", ev.Actor)
		if e.db != nil {
			e.db.AppendAudit(store.EntityRecycler, 0, "run", "", "", ev.Actor)
		}
	}, EventPassRequested)

	// Bus connectivity: log
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		if evt.Type == EventBusConnected {
			e.logFn("engine: bus connected: %s", ev.Detail)
		} else {
			e.logFn("engine: bus disconnected: %s", ev.Detail)
		}
	}, EventBusConnected, EventBusDisconnected)
}

func (e *Engine) publish(msgType string, payload any) {
	if !e.publishEvents || e.db == nil {
		return
	}
	m := &e.cfg.Messaging
	if err := messaging.Enqueue(e.db, m.EventsTopic, messaging.NewEnvelope(msgType, m.StationID, payload)); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}

func (e *Engine) recordPassMetrics(s recycler.PassSummary) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if s.Error != "" {
		result = "error"
	}
	e.metrics.PassesTotal.WithLabelValues(result).Inc()
	e.metrics.PassDuration.Observe(s.Duration.Seconds())
	if s.Error == "" {
		e.metrics.ObservedSlots.Set(float64(s.Observed))
		e.metrics.TrackedSlots.Set(float64(s.Tracked))
	}
}

func (e *Engine) recordReclaimMetrics(r recycler.Reclamation) {
	if e.metrics == nil {
		return
	}
	e.metrics.ReclamationsTotal.WithLabelValues(r.Scope, reclaimResult(r)).Inc()
	if r.DryRun {
		return
	}
	for _, a := range r.Attempts {
		result := "ok"
		if !a.OK {
			result = "fail"
		}
		e.metrics.ActionsTotal.WithLabelValues(a.Action, result).Inc()
	}
}

func reclaimResult(r recycler.Reclamation) string {
	switch {
	case r.DryRun:
		return "dry_run"
	case r.OK:
		return "ok"
	default:
		return "fail"
	}
}

func reclaimAuditAction(r recycler.Reclamation) string {
	switch {
	case r.DryRun:
		return "reclaim-simulated"
	case r.OK:
		return "reclaimed"
	default:
		return "reclaim-failed"
	}
}

func passRow(s recycler.PassSummary) *store.Pass {
	return &store.Pass{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		DurationMS: s.Duration.Milliseconds(),
		Observed:   s.Observed,
		Tracked:    s.Tracked,
		Consists:   s.Consists,
		Reclaimed:  s.Reclaimed,
		Failed:     s.Failed,
		Error:      s.Error,
	}
}

func reclamationRow(r recycler.Reclamation, actions string) *store.Reclamation {
	return &store.Reclamation{
		RunID:       r.RunID,
		Slot:        r.Slot,
		Address:     r.Address,
		ConsistID:   r.ConsistID,
		Scope:       r.Scope,
		Owner:       r.Owner,
		IdleSeconds: r.Idle,
		DryRun:      r.DryRun,
		Actions:     actions,
		OK:          r.OK,
	}
}
