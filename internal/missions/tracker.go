// Package missions tracks per-identity progress against the static mission
// catalog, pays out claims once, and validates reward purchases.
//
// The tracker is purely in-memory. Remote upserts, coin persistence and
// inventory inserts are performed by the caller using the results returned
// here, so the tracker can be driven from the engine's single writer.
package missions

import (
	"sort"

	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/model"
)

// Tracker holds mission progress for the active identity.
//
// A disabled tracker (anonymous identity) ignores every update and claim.
type Tracker struct {
	catalog *catalog.Catalog
	enabled bool
	state   map[string]model.MissionProgress

	// absolute marks missions set by an absolute update since the last
	// Reset or Load.
	absolute map[string]bool
}

// NewTracker creates a disabled tracker over cat.
func NewTracker(cat *catalog.Catalog) *Tracker {
	return &Tracker{
		catalog:  cat,
		state:    make(map[string]model.MissionProgress),
		absolute: make(map[string]bool),
	}
}

// Reset drops all progress and enables or disables the tracker. Called on
// every identity switch.
func (t *Tracker) Reset(enabled bool) {
	t.enabled = enabled
	t.state = make(map[string]model.MissionProgress)
	t.absolute = make(map[string]bool)
}

// Enabled reports whether updates are accepted.
func (t *Tracker) Enabled() bool { return t.enabled }

// Load replaces progress with rows fetched from the remote store. Rows for
// unknown missions are ignored and completed is recomputed from the
// catalog target; claimed is only kept when completed holds.
func (t *Tracker) Load(rows []model.MissionProgress) {
	t.state = make(map[string]model.MissionProgress, len(rows))
	t.absolute = make(map[string]bool)
	for _, r := range rows {
		m, ok := t.catalog.Mission(r.MissionID)
		if !ok {
			continue
		}
		r.Completed = r.Progress >= m.Target
		r.Claimed = r.Claimed && r.Completed
		t.state[r.MissionID] = r
	}
}

// Merge loads rows fetched from the remote store and folds in the progress
// recorded locally since the last Reset. Incremental progress is added to
// the remote value and absolute progress keeps the larger of the two.
// Missions completed remotely keep their remote progress, and claimed
// holds if either side holds it. Merge returns, sorted by id, the merged
// states that differ from their remote row.
func (t *Tracker) Merge(rows []model.MissionProgress) []model.MissionProgress {
	local, absolute := t.state, t.absolute
	t.Load(rows)

	var out []model.MissionProgress
	for id, l := range local {
		m, ok := t.catalog.Mission(id)
		if !ok {
			continue
		}
		r := t.get(id)
		next := r
		if !r.Completed {
			if absolute[id] {
				next.Progress = max(r.Progress, l.Progress)
			} else {
				next.Progress = r.Progress + l.Progress
			}
			next.Completed = next.Progress >= m.Target
		}
		next.Claimed = (r.Claimed || l.Claimed) && next.Completed
		if next == r {
			continue
		}
		t.state[id] = next
		out = append(out, next)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out
}

// Update applies a progress update. absolute overwrites progress, otherwise
// value is added. It returns the new state and whether anything changed.
// Updates are no-ops when the tracker is disabled, the mission is unknown,
// or the mission is already completed.
func (t *Tracker) Update(missionID string, value int, absolute bool) (model.MissionProgress, bool) {
	if !t.enabled {
		return model.MissionProgress{}, false
	}
	m, ok := t.catalog.Mission(missionID)
	if !ok {
		return model.MissionProgress{}, false
	}
	cur := t.get(missionID)
	if cur.Completed {
		return cur, false
	}

	next := cur
	if absolute {
		next.Progress = value
	} else {
		next.Progress = cur.Progress + value
	}
	next.Completed = next.Progress >= m.Target
	if next == cur {
		return cur, false
	}
	t.state[missionID] = next
	if absolute {
		t.absolute[missionID] = true
	}
	return next, true
}

// UpdateTrigger applies the same update to every mission advanced by trig
// and returns the states that changed.
func (t *Tracker) UpdateTrigger(trig catalog.Trigger, value int, absolute bool) []model.MissionProgress {
	var changed []model.MissionProgress
	for _, m := range t.catalog.ByTrigger(trig) {
		if p, ok := t.Update(m.ID, value, absolute); ok {
			changed = append(changed, p)
		}
	}
	return changed
}

// Claim marks a completed, unclaimed mission as claimed and returns its coin
// reward. It returns ok=false, and changes nothing, otherwise.
func (t *Tracker) Claim(missionID string) (reward int64, state model.MissionProgress, ok bool) {
	if !t.enabled {
		return 0, model.MissionProgress{}, false
	}
	m, known := t.catalog.Mission(missionID)
	if !known {
		return 0, model.MissionProgress{}, false
	}
	cur := t.get(missionID)
	if !cur.Completed || cur.Claimed {
		return 0, cur, false
	}
	cur.Claimed = true
	t.state[missionID] = cur
	return m.Reward, cur, true
}

// Progress returns the state of one mission, zero-valued if untouched.
func (t *Tracker) Progress(missionID string) model.MissionProgress {
	return t.get(missionID)
}

// All returns the state of every catalog mission in catalog order.
func (t *Tracker) All() []model.MissionProgress {
	out := make([]model.MissionProgress, 0, len(t.catalog.Missions))
	for _, m := range t.catalog.Missions {
		out = append(out, t.get(m.ID))
	}
	return out
}

// Touched returns only missions with recorded state, sorted by id.
func (t *Tracker) Touched() []model.MissionProgress {
	out := make([]model.MissionProgress, 0, len(t.state))
	for _, p := range t.state {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MissionID < out[j].MissionID })
	return out
}

func (t *Tracker) get(missionID string) model.MissionProgress {
	if p, ok := t.state[missionID]; ok {
		return p
	}
	return model.MissionProgress{MissionID: missionID}
}
