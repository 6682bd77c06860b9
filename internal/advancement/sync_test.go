package advancement

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"opalcraft.gg/internal/protocol"
	"opalcraft.gg/internal/resource"
	"opalcraft.gg/internal/text"
)

func syncFixture(t *testing.T) (*Handle, *Syncer, resource.ID) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	id := resource.New("", "story/mine_stone")
	adv := NewBuilder().
		Criterion("a", Criterion{Trigger: TriggerPlacedBlock}).
		Display(&Display{
			Icon:        Icon{Item: resource.New("", "stone"), Count: 1},
			Title:       text.Literal("Stone Age"),
			Description: text.Literal("Mine stone"),
			ShowToast:   true,
		}).
		Build()
	hidden := NewBuilder().
		Criterion("r", Criterion{Trigger: TriggerRecipeUnlocked}).
		Build()

	reg := NewRegistry([]Loaded{
		{ID: id, Advancement: adv},
		{ID: resource.New("", "recipes/iron_shovel"), Advancement: hidden},
	}, logger)
	h := NewHandle(reg)
	return h, NewSyncer(h, func(resource.ID) int32 { return 1 }, logger), id
}

func TestSyncer_ResetFlush(t *testing.T) {
	h, s, id := syncFixture(t)
	tr := NewTracker()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))
	tr.MarkNeedsReset()

	var sent *protocol.UpdateAdvancements
	err := s.Flush(context.Background(), tr, func(_ context.Context, pkt *protocol.UpdateAdvancements) error {
		sent = pkt
		return nil
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if sent == nil || !sent.Reset {
		t.Fatalf("expected reset payload, got %+v", sent)
	}
	// Only the displayed definition is sent; hidden ones sync progress only.
	if len(sent.Advancements) != 1 || sent.Advancements[0].ID != id {
		t.Fatalf("advancements = %+v", sent.Advancements)
	}
	if len(sent.Removed) != 0 {
		t.Fatalf("reset flush carries removals: %v", sent.Removed)
	}
	if len(sent.Progress) != 1 || sent.Progress[0].ID != id {
		t.Fatalf("progress = %+v", sent.Progress)
	}
	if tr.NeedsReset() || len(tr.Dirty()) != 0 {
		t.Fatalf("flush did not clear state")
	}
	_ = h

	// Nothing pending: next flush sends nothing.
	called := false
	_ = s.Flush(context.Background(), tr, func(context.Context, *protocol.UpdateAdvancements) error {
		called = true
		return nil
	})
	if called {
		t.Fatalf("idle flush should not send")
	}
}

func TestSyncer_FreshTrackerResetIsEmpty(t *testing.T) {
	_, s, _ := syncFixture(t)
	tr := NewTracker()
	tr.MarkNeedsReset()

	var sent *protocol.UpdateAdvancements
	_ = s.Flush(context.Background(), tr, func(_ context.Context, pkt *protocol.UpdateAdvancements) error {
		sent = pkt
		return nil
	})
	if sent == nil || !sent.Reset {
		t.Fatalf("expected reset payload")
	}
	if len(sent.Progress) != 0 {
		t.Fatalf("fresh tracker has progress: %+v", sent.Progress)
	}
	if len(sent.Advancements) == 0 {
		t.Fatalf("reset payload must carry the definitions")
	}
}

func TestSyncer_IncrementalFlushAfterGrant(t *testing.T) {
	_, s, id := syncFixture(t)
	tr := NewTracker()
	tr.ClearDirty()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))

	var sent *protocol.UpdateAdvancements
	err := s.Flush(context.Background(), tr, func(_ context.Context, pkt *protocol.UpdateAdvancements) error {
		sent = pkt
		return nil
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if sent == nil || sent.Reset {
		t.Fatalf("expected incremental payload, got %+v", sent)
	}
	if len(sent.Advancements) != 0 {
		t.Fatalf("incremental flush resent definitions: %+v", sent.Advancements)
	}
	if len(sent.Progress) != 1 || sent.Progress[0].ID != id {
		t.Fatalf("progress = %+v", sent.Progress)
	}
	entry := sent.Progress[0].Criteria[0]
	if entry.Criterion != "a" || entry.ObtainedMS == nil {
		t.Fatalf("criterion entry = %+v", entry)
	}
}

func TestSyncer_RevokedAdvancementBecomesRemoval(t *testing.T) {
	_, s, id := syncFixture(t)
	tr := NewTracker()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))
	tr.ClearDirty()
	tr.RevokeAdvancement(id)

	var sent *protocol.UpdateAdvancements
	_ = s.Flush(context.Background(), tr, func(_ context.Context, pkt *protocol.UpdateAdvancements) error {
		sent = pkt
		return nil
	})
	if sent == nil || sent.Reset {
		t.Fatalf("expected incremental payload")
	}
	if len(sent.Removed) != 1 || sent.Removed[0] != id {
		t.Fatalf("removed = %v", sent.Removed)
	}
	if len(sent.Progress) != 0 {
		t.Fatalf("progress = %+v", sent.Progress)
	}
}

func TestSyncer_FailedSendKeepsDirty(t *testing.T) {
	_, s, id := syncFixture(t)
	tr := NewTracker()
	tr.ClearDirty()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))

	sendErr := errors.New("connection gone")
	err := s.Flush(context.Background(), tr, func(context.Context, *protocol.UpdateAdvancements) error {
		return sendErr
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v", err)
	}
	if len(tr.Dirty()) != 1 {
		t.Fatalf("failed send cleared the dirty set")
	}
}

func TestSyncer_CancelledSendKeepsDirty(t *testing.T) {
	_, s, id := syncFixture(t)
	tr := NewTracker()
	tr.ClearDirty()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Flush(ctx, tr, func(context.Context, *protocol.UpdateAdvancements) error {
		cancel() // cancelled mid-send
		return nil
	})
	if err == nil {
		t.Fatalf("cancelled flush should error")
	}
	if len(tr.Dirty()) != 1 {
		t.Fatalf("cancelled send cleared the dirty set")
	}
}

func TestSyncer_GrantDuringSendStaysDirty(t *testing.T) {
	_, s, id := syncFixture(t)
	other := resource.New("", "recipes/iron_shovel")
	tr := NewTracker()
	tr.ClearDirty()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))

	err := s.Flush(context.Background(), tr, func(context.Context, *protocol.UpdateAdvancements) error {
		// A grant lands while the payload is on the wire.
		tr.GrantCriterion(other, "r", AllOf([]string{"r"}))
		return nil
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	dirty := tr.Dirty()
	if len(dirty) != 1 || dirty[0] != other {
		t.Fatalf("dirty after flush = %v, want [%v]", dirty, other)
	}

	// The next flush delivers the mid-send grant.
	var sent *protocol.UpdateAdvancements
	_ = s.Flush(context.Background(), tr, func(_ context.Context, pkt *protocol.UpdateAdvancements) error {
		sent = pkt
		return nil
	})
	if sent == nil || len(sent.Progress) != 1 || sent.Progress[0].ID != other {
		t.Fatalf("second flush = %+v", sent)
	}
}

func TestSyncer_FailedSendMergesMidSendGrant(t *testing.T) {
	_, s, id := syncFixture(t)
	other := resource.New("", "recipes/iron_shovel")
	tr := NewTracker()
	tr.ClearDirty()
	tr.GrantCriterion(id, "a", AllOf([]string{"a"}))

	sendErr := errors.New("connection gone")
	err := s.Flush(context.Background(), tr, func(context.Context, *protocol.UpdateAdvancements) error {
		tr.GrantCriterion(other, "r", AllOf([]string{"r"}))
		return sendErr
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v", err)
	}
	if len(tr.Dirty()) != 2 {
		t.Fatalf("dirty after failed send = %v, want both ids", tr.Dirty())
	}
}

func TestSyncer_VisiblePrunesDefinitions(t *testing.T) {
	_, s, id := syncFixture(t)
	tr := NewTracker()
	tr.SetVisible([]resource.ID{resource.New("", "somewhere/else")})
	tr.MarkNeedsReset()

	var sent *protocol.UpdateAdvancements
	_ = s.Flush(context.Background(), tr, func(_ context.Context, pkt *protocol.UpdateAdvancements) error {
		sent = pkt
		return nil
	})
	if sent == nil {
		t.Fatalf("expected payload")
	}
	for _, m := range sent.Advancements {
		if m.ID == id {
			t.Fatalf("pruned definition was sent")
		}
	}
}
