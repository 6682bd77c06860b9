package progressdb

import (
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"opalcraft.gg/internal/advancement"
	"opalcraft.gg/internal/resource"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "progress.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	logger := log.New(io.Discard, "", 0)

	id := resource.New("", "story/mine_stone")
	adv := advancement.NewBuilder().
		Criterion("a", advancement.Criterion{Trigger: advancement.TriggerPlacedBlock}).
		Criterion("b", advancement.Criterion{Trigger: advancement.TriggerPlacedBlock}).
		Build()
	reg := advancement.NewRegistry([]advancement.Loaded{{ID: id, Advancement: adv}}, logger)

	at := time.UnixMilli(1700000000123)
	p := advancement.NewProgress()
	p.GrantAt("a", at)
	p.GrantAt("b", at.Add(time.Minute))
	p.UpdateDone(adv.Requirements)

	if err := s.Save("alice", map[resource.ID]*advancement.Progress{id: p}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load("alice", reg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lp, ok := got[id]
	if !ok {
		t.Fatalf("entry missing: %v", got)
	}
	if !lp.Done {
		t.Fatalf("done not derived on load")
	}
	ca := lp.Criteria["a"]
	if ca == nil || ca.ObtainedTime == nil || ca.ObtainedTime.UnixMilli() != at.UnixMilli() {
		t.Fatalf("criterion a = %+v", ca)
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	logger := log.New(io.Discard, "", 0)
	reg := advancement.NewRegistry(nil, logger)

	id := resource.New("", "story/x")
	p := advancement.NewProgress()
	p.GrantAt("a", time.UnixMilli(1000))
	if err := s.Save("alice", map[resource.ID]*advancement.Progress{id: p}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save("alice", nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, err := s.Load("alice", reg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("stale rows survived: %v", got)
	}
}

func TestStore_UnknownAdvancementNotDone(t *testing.T) {
	s := openTestStore(t)
	logger := log.New(io.Discard, "", 0)
	reg := advancement.NewRegistry(nil, logger)

	id := resource.New("modded", "gone/away")
	p := advancement.NewProgress()
	p.GrantAt("a", time.UnixMilli(1000))
	p.Done = true
	if err := s.Save("bob", map[resource.ID]*advancement.Progress{id: p}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load("bob", reg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	lp := got[id]
	if lp == nil {
		t.Fatalf("unknown advancement dropped")
	}
	if lp.Done {
		t.Fatalf("done should not derive without a definition")
	}
}

func TestStore_PlayersAreIsolated(t *testing.T) {
	s := openTestStore(t)
	logger := log.New(io.Discard, "", 0)
	reg := advancement.NewRegistry(nil, logger)

	id := resource.New("", "story/x")
	p := advancement.NewProgress()
	p.GrantAt("a", time.UnixMilli(1000))
	if err := s.Save("alice", map[resource.ID]*advancement.Progress{id: p}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load("bob", reg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("bob sees alice's rows: %v", got)
	}
}
