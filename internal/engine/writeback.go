package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/model"
)

// markDirtyLocked records a change to the cart, discount or spin flag. The
// profile writeback runs once the changes have been quiet for the
// writeback delay.
func (e *Engine) markDirtyLocked() {
	if !e.registeredLocked() || e.opts.Profiles == nil {
		return
	}
	e.writeback.Trigger()
}

// applyWriteback pushes the cart, discount and spin flag to the profile
// document. It is skipped for guests and until the initial remote sync
// has been applied, so pre-overlay local state never overwrites the
// remote document.
func (e *Engine) applyWriteback() {
	if !e.registeredLocked() || e.opts.Profiles == nil {
		return
	}
	if !e.synced {
		slog.Debug("writeback skipped: sync not initialized", "user", e.ident.ID)
		return
	}
	d := e.wheel.Discount()
	e.patchProfileLocked("writeback", map[string]any{
		model.FieldCart:     model.EncodeCart(e.ledger.Lines()),
		model.FieldDiscount: d.Percent,
		model.FieldHasSpun:  d.Spent,
	})
}

// patchProfileLocked starts a best-effort profile patch for the current
// identity. Failures are logged; local state is kept.
func (e *Engine) patchProfileLocked(op string, fields map[string]any) {
	if !e.registeredLocked() || e.opts.Profiles == nil {
		return
	}
	profiles, userID := e.opts.Profiles, e.ident.ID
	e.exec.Go(func(ctx context.Context) {
		if err := profiles.PatchProfile(ctx, userID, fields); err != nil {
			logTaskError(op, userID, model.NewRemoteWriteError(op, err))
			return
		}
		slog.Debug("profile patched", "op", op, "user", userID, "fields", len(fields))
	})
}

// advanceMissionsLocked updates every mission driven by trig. When sync is
// set, or the row completes, each changed row is upserted to the remote
// store with its claimed flag as held locally.
func (e *Engine) advanceMissionsLocked(trig catalog.Trigger, value int, absolute, sync bool) []model.MissionProgress {
	changed := e.tracker.UpdateTrigger(trig, value, absolute)
	for _, p := range changed {
		if p.Completed {
			slog.Info("mission completed", "user", e.ident.ID, "mission", p.MissionID)
		}
		if sync || p.Completed {
			e.upsertMissionLocked(p)
		}
	}
	return changed
}

// upsertMissionLocked writes one mission row. Before the remote rows are
// loaded the write is held back; the overlay merges and upserts it.
func (e *Engine) upsertMissionLocked(p model.MissionProgress) {
	if !e.registeredLocked() || e.opts.Profiles == nil {
		return
	}
	if !e.missionsLoaded {
		slog.Debug("mission upsert deferred: remote rows not loaded", "user", e.ident.ID, "mission", p.MissionID)
		return
	}
	profiles, userID := e.opts.Profiles, e.ident.ID
	e.exec.Go(func(ctx context.Context) {
		if err := profiles.UpsertMission(ctx, userID, p); err != nil {
			logTaskError("upsert mission", userID, model.NewRemoteWriteError("upsert mission", err))
		}
	})
}
