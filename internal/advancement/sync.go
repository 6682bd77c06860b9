package advancement

import (
	"context"
	"log"
	"sort"

	"opalcraft.gg/internal/protocol"
	"opalcraft.gg/internal/resource"
)

// ItemLookup maps an icon's item identifier to its numeric palette id.
type ItemLookup func(resource.ID) int32

// Sender delivers one assembled payload to the client. A send that fails or
// is cancelled leaves the tracker's dirty state for the next flush.
type Sender func(ctx context.Context, pkt *protocol.UpdateAdvancements) error

// Syncer drives per-player flushes at tick boundaries.
type Syncer struct {
	handle *Handle
	items  ItemLookup
	log    *log.Logger
}

func NewSyncer(h *Handle, items ItemLookup, logger *log.Logger) *Syncer {
	return &Syncer{handle: h, items: items, log: logger}
}

// Flush sends the tracker's pending payload, if any. The payload and the
// dirty state it covers are detached in one lock hold, so grants landing
// while the send is in flight dirty a fresh set and reach the next flush.
// A failed or cancelled send merges the claimed state back for a retry.
func (s *Syncer) Flush(ctx context.Context, tr *Tracker, send Sender) error {
	pkt, claim := tr.takeUpdate(s.handle.Snapshot(), s.items)
	if pkt == nil {
		return nil
	}
	if err := send(ctx, pkt); err != nil {
		tr.restoreFlush(claim)
		return err
	}
	if err := ctx.Err(); err != nil {
		tr.restoreFlush(claim)
		return err
	}
	return nil
}

// flushClaim is the dirty state one in-flight payload covers.
type flushClaim struct {
	dirty      map[resource.ID]struct{}
	needsReset bool
}

// takeUpdate assembles the pending payload and swaps out the state it
// covers under the same lock hold, or returns nil when there is nothing
// to send.
func (t *Tracker) takeUpdate(reg *Registry, items ItemLookup) (*protocol.UpdateAdvancements, flushClaim) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pkt := t.buildUpdateLocked(reg, items)
	if pkt == nil {
		return nil, flushClaim{}
	}
	claim := flushClaim{dirty: t.dirty, needsReset: t.needsReset}
	t.dirty = make(map[resource.ID]struct{})
	t.needsReset = false
	return pkt, claim
}

// restoreFlush merges a claim back after a failed send. Ids dirtied during
// the send stay dirty alongside the restored ones.
func (t *Tracker) restoreFlush(c flushClaim) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id := range c.dirty {
		t.dirty[id] = struct{}{}
	}
	if c.needsReset {
		t.needsReset = true
	}
}

// BuildUpdate assembles the pending payload under one lock hold, or nil when
// there is nothing to send. The tracker state is left untouched.
func (t *Tracker) BuildUpdate(reg *Registry, items ItemLookup) *protocol.UpdateAdvancements {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buildUpdateLocked(reg, items)
}

// A reset flush carries every displayed definition (pruned by the visible
// set when populated) plus all known progress. An incremental flush carries
// no definitions - the client holds them since the reset - only removals for
// dangling dirty ids and progress for the rest.
func (t *Tracker) buildUpdateLocked(reg *Registry, items ItemLookup) *protocol.UpdateAdvancements {
	switch {
	case t.needsReset:
		pkt := &protocol.UpdateAdvancements{Reset: true}
		for _, id := range reg.AllIDs() {
			adv, _ := reg.Get(id)
			if !adv.HasDisplay() {
				continue
			}
			if t.visible != nil {
				if _, ok := t.visible[id]; !ok {
					continue
				}
			}
			pkt.Advancements = append(pkt.Advancements, protocol.AdvancementMapping{
				ID:          id,
				Advancement: wireAdvancement(adv, items),
			})
		}
		for _, id := range sortedIDs(t.progress) {
			pkt.Progress = append(pkt.Progress, wireProgress(id, t.progress[id]))
		}
		return pkt

	case len(t.dirty) > 0:
		pkt := &protocol.UpdateAdvancements{}
		dirty := make([]resource.ID, 0, len(t.dirty))
		for id := range t.dirty {
			dirty = append(dirty, id)
		}
		sort.Slice(dirty, func(i, j int) bool { return dirty[i].Less(dirty[j]) })
		for _, id := range dirty {
			p, ok := t.progress[id]
			if !ok {
				pkt.Removed = append(pkt.Removed, id)
				continue
			}
			pkt.Progress = append(pkt.Progress, wireProgress(id, p))
		}
		return pkt

	default:
		return nil
	}
}

func wireAdvancement(adv *Advancement, items ItemLookup) protocol.Advancement {
	out := protocol.Advancement{
		Parent:         adv.Parent,
		Requirements:   adv.Requirements.Groups(),
		SendsTelemetry: adv.SendsTelemetryEvent,
	}
	if d := adv.Display; d != nil {
		var itemID int32
		if items != nil {
			itemID = items(d.Icon.Item)
		}
		out.Display = &protocol.Display{
			Title:       d.Title,
			Description: d.Description,
			Icon:        protocol.Icon{Count: d.Icon.Count, ItemID: itemID},
			Frame:       int32(d.Frame),
			Flags:       d.Flags(),
			Background:  d.Background,
			X:           d.X,
			Y:           d.Y,
		}
	}
	return out
}

func wireProgress(id resource.ID, p *Progress) protocol.ProgressMapping {
	m := protocol.ProgressMapping{ID: id}
	names := make([]string, 0, len(p.Criteria))
	for name := range p.Criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := protocol.CriterionProgressEntry{Criterion: name}
		if ts := p.Criteria[name].ObtainedTime; ts != nil {
			ms := ts.UnixMilli()
			entry.ObtainedMS = &ms
		}
		m.Criteria = append(m.Criteria, entry)
	}
	return m
}

func sortedIDs(m map[resource.ID]*Progress) []resource.ID {
	out := make([]resource.ID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
