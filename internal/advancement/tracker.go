package advancement

import (
	"sort"
	"sync"

	"opalcraft.gg/internal/resource"
)

// Tracker holds one player's advancement state. Every mutating operation
// takes the tracker's lock; grants from trigger dispatch, flushes from the
// sync driver and inbound packet handlers all serialize through it.
//
// The dirty set names the advancements awaiting resend. A dirty id with no
// progress entry is a pending removal picked up by the next flush.
type Tracker struct {
	mu         sync.Mutex
	progress   map[resource.ID]*Progress
	completed  map[resource.ID]struct{}
	dirty      map[resource.ID]struct{}
	currentTab *resource.ID
	needsReset bool
	visible    map[resource.ID]struct{}
	book       recipeBook
}

func NewTracker() *Tracker {
	return &Tracker{
		progress:  make(map[resource.ID]*Progress),
		completed: make(map[resource.ID]struct{}),
		dirty:     make(map[resource.ID]struct{}),
		book:      newRecipeBook(),
	}
}

// GetOrCreate lazily allocates progress for id. Creation alone is not a
// client-visible change, so it does not mark dirty.
func (t *Tracker) GetOrCreate(id resource.ID) *Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getOrCreateLocked(id)
}

func (t *Tracker) getOrCreateLocked(id resource.ID) *Progress {
	p, ok := t.progress[id]
	if !ok {
		p = NewProgress()
		t.progress[id] = p
	}
	return p
}

// GrantCriterion obtains one criterion, re-derives the done flag and records
// the change for the next flush. Unknown advancement ids still track
// progress so late-arriving definition reloads are benign.
func (t *Tracker) GrantCriterion(id resource.ID, name string, req Requirements) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.getOrCreateLocked(id)
	if !p.Grant(name) {
		return false
	}
	p.UpdateDone(req)
	if p.Done {
		t.completed[id] = struct{}{}
	}
	t.dirty[id] = struct{}{}
	return true
}

// RevokeCriterion clears one criterion and re-derives completion. The
// completed set tracks the recomputed done flag, so an advancement whose
// requirements still hold through another criterion stays completed.
func (t *Tracker) RevokeCriterion(id resource.ID, name string, req Requirements) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.progress[id]
	if !ok || !p.Revoke(name) {
		return false
	}
	p.UpdateDone(req)
	delete(t.completed, id)
	if p.Done {
		t.completed[id] = struct{}{}
	}
	t.dirty[id] = struct{}{}
	return true
}

// GrantAdvancement obtains every criterion the requirements reference,
// collapsing the batch into one dirty insertion and one done recompute.
func (t *Tracker) GrantAdvancement(id resource.ID, req Requirements) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.getOrCreateLocked(id)
	doneBefore := p.Done
	any := false
	for _, name := range req.SortedNames() {
		if p.Grant(name) {
			any = true
		}
	}
	p.UpdateDone(req)
	if p.Done {
		t.completed[id] = struct{}{}
	}
	if !any && p.Done == doneBefore {
		return false
	}
	t.dirty[id] = struct{}{}
	return true
}

// RevokeAdvancement drops all progress for id. The dirty entry with no
// backing progress tells the next flush to send a removal.
func (t *Tracker) RevokeAdvancement(id resource.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, had := t.progress[id]
	delete(t.progress, id)
	delete(t.completed, id)
	t.dirty[id] = struct{}{}
	return had
}

func (t *Tracker) SetCurrentTab(id *resource.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == nil {
		t.currentTab = nil
		return
	}
	tab := *id
	t.currentTab = &tab
}

func (t *Tracker) CurrentTab() *resource.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentTab == nil {
		return nil
	}
	tab := *t.currentTab
	return &tab
}

// MarkNeedsReset forces the next flush to carry a full snapshot.
func (t *Tracker) MarkNeedsReset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.needsReset = true
}

func (t *Tracker) NeedsReset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.needsReset
}

// ClearDirty empties the dirty set and the reset flag. The sync driver calls
// it only after a successful send.
func (t *Tracker) ClearDirty() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dirty = make(map[resource.ID]struct{})
	t.needsReset = false
}

// Dirty returns the ids awaiting resend, sorted.
func (t *Tracker) Dirty() []resource.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]resource.ID, 0, len(t.dirty))
	for id := range t.dirty {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (t *Tracker) IsCompleted(id resource.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.completed[id]
	return ok
}

// CompletedIDs returns the done advancement ids, sorted.
func (t *Tracker) CompletedIDs() []resource.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]resource.ID, 0, len(t.completed))
	for id := range t.completed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Percent reports the satisfied requirement fraction for id.
func (t *Tracker) Percent(id resource.ID, req Requirements) float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.progress[id]
	if !ok {
		return req.Percent(nil)
	}
	return p.Percent(req)
}

// SetVisible restricts which definitions the sync driver sends. An empty set
// means no pruning.
func (t *Tracker) SetVisible(ids []resource.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(ids) == 0 {
		t.visible = nil
		return
	}
	t.visible = make(map[resource.ID]struct{}, len(ids))
	for _, id := range ids {
		t.visible[id] = struct{}{}
	}
}

// LoadProgress replaces the whole progress map, typically from disk on join.
// Completion is re-read from each entry's done flag (the store derives it
// against the live registry) and the next flush carries a full reset.
func (t *Tracker) LoadProgress(data map[resource.ID]*Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress = make(map[resource.ID]*Progress, len(data))
	t.completed = make(map[resource.ID]struct{})
	for id, p := range data {
		t.progress[id] = p
		if p.Done {
			t.completed[id] = struct{}{}
		}
	}
	t.needsReset = true
}

// SaveProgress deep-copies the progress map for serialization.
func (t *Tracker) SaveProgress() map[resource.ID]*Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[resource.ID]*Progress, len(t.progress))
	for id, p := range t.progress {
		cp := NewProgress()
		cp.Done = p.Done
		for name, c := range p.Criteria {
			if c.ObtainedTime != nil {
				cp.criterion(name).ObtainAt(*c.ObtainedTime)
			} else {
				cp.criterion(name)
			}
		}
		out[id] = cp
	}
	return out
}
