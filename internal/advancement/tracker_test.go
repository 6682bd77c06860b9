package advancement

import (
	"testing"
	"time"

	"opalcraft.gg/internal/resource"
)

var (
	advX = resource.New("", "story/x")
	advY = resource.New("", "story/y")
)

func completedEquals(t *testing.T, tr *Tracker, want ...resource.ID) {
	t.Helper()
	got := tr.CompletedIDs()
	if len(got) != len(want) {
		t.Fatalf("completed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("completed = %v, want %v", got, want)
		}
	}
}

func dirtyEquals(t *testing.T, tr *Tracker, want ...resource.ID) {
	t.Helper()
	got := tr.Dirty()
	if len(got) != len(want) {
		t.Fatalf("dirty = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dirty = %v, want %v", got, want)
		}
	}
}

func TestTracker_SingleCriterion(t *testing.T) {
	req := AllOf([]string{"a"})
	tr := NewTracker()

	if !tr.GrantCriterion(advX, "a", req) {
		t.Fatalf("grant should transition")
	}
	if !tr.IsCompleted(advX) {
		t.Fatalf("should be complete")
	}
	if p := tr.Percent(advX, req); p != 1.0 {
		t.Fatalf("percent = %v", p)
	}
	completedEquals(t, tr, advX)
	dirtyEquals(t, tr, advX)

	// Monotone: the second grant is a no-op.
	if tr.GrantCriterion(advX, "a", req) {
		t.Fatalf("repeat grant should not transition")
	}
}

func TestTracker_TwoCriterionAnd(t *testing.T) {
	req := AllOf([]string{"a", "b"})
	tr := NewTracker()

	tr.GrantCriterion(advX, "a", req)
	if tr.IsCompleted(advX) {
		t.Fatalf("complete after half the criteria")
	}
	if p := tr.Percent(advX, req); p != 0.5 {
		t.Fatalf("percent = %v", p)
	}
	tr.GrantCriterion(advX, "b", req)
	if !tr.IsCompleted(advX) {
		t.Fatalf("should complete")
	}
	if p := tr.Percent(advX, req); p != 1.0 {
		t.Fatalf("percent = %v", p)
	}
}

func TestTracker_OrGroup(t *testing.T) {
	req := FromGroups([][]string{{"a", "b"}})
	tr := NewTracker()
	tr.GrantCriterion(advX, "b", req)
	if !tr.IsCompleted(advX) {
		t.Fatalf("either criterion should complete the group")
	}
}

func TestTracker_MixedAndOfOr(t *testing.T) {
	req := FromGroups([][]string{{"a", "b"}, {"c"}})
	tr := NewTracker()

	tr.GrantCriterion(advX, "a", req)
	tr.GrantCriterion(advX, "c", req)
	if !tr.IsCompleted(advX) {
		t.Fatalf("a+c should complete")
	}

	if !tr.RevokeCriterion(advX, "a", req) {
		t.Fatalf("revoke should transition")
	}
	if tr.IsCompleted(advX) {
		t.Fatalf("still complete after revoking the only hit of group 1")
	}
	completedEquals(t, tr)

	// Done flag stays consistent with the formula on every mutation.
	p := tr.GetOrCreate(advX)
	if p.Done != req.Test(p.ObtainedNames()) {
		t.Fatalf("done cache out of sync")
	}
}

func TestTracker_RevokeCriterionKeepsSatisfiedCompletion(t *testing.T) {
	req := FromGroups([][]string{{"a", "b"}})
	tr := NewTracker()

	tr.GrantCriterion(advX, "a", req)
	tr.GrantCriterion(advX, "b", req)
	tr.ClearDirty()

	if !tr.RevokeCriterion(advX, "a", req) {
		t.Fatalf("revoke should transition")
	}
	// b still satisfies the group: completion holds and the change is dirty.
	if !tr.IsCompleted(advX) {
		t.Fatalf("revoking one of two group hits dropped completion")
	}
	completedEquals(t, tr, advX)
	if d := tr.Dirty(); len(d) != 1 || d[0] != advX {
		t.Fatalf("dirty = %v", d)
	}

	if !tr.RevokeCriterion(advX, "b", req) {
		t.Fatalf("revoke should transition")
	}
	if tr.IsCompleted(advX) {
		t.Fatalf("still complete with no criteria obtained")
	}
	completedEquals(t, tr)
}

func TestTracker_DirtyLifecycle(t *testing.T) {
	req := AllOf([]string{"a"})
	tr := NewTracker()

	// Lazy creation is not a change.
	tr.GetOrCreate(advX)
	dirtyEquals(t, tr)

	tr.GrantCriterion(advX, "a", req)
	tr.GrantCriterion(advY, "a", req)
	dirtyEquals(t, tr, advX, advY)

	tr.ClearDirty()
	dirtyEquals(t, tr)

	// Failed mutations do not dirty.
	tr.GrantCriterion(advX, "a", req)
	dirtyEquals(t, tr)
}

func TestTracker_GrantAdvancement(t *testing.T) {
	req := FromGroups([][]string{{"a", "b"}, {"c"}})
	tr := NewTracker()

	if !tr.GrantAdvancement(advX, req) {
		t.Fatalf("grant everything should transition")
	}
	if !tr.IsCompleted(advX) {
		t.Fatalf("should complete")
	}
	dirtyEquals(t, tr, advX)
	p := tr.GetOrCreate(advX)
	for _, name := range []string{"a", "b", "c"} {
		if c, ok := p.Criteria[name]; !ok || !c.IsObtained() {
			t.Fatalf("criterion %q not obtained", name)
		}
	}
	if tr.GrantAdvancement(advX, req) {
		t.Fatalf("repeat grant should not transition")
	}
}

func TestTracker_RevokeAdvancement(t *testing.T) {
	req := AllOf([]string{"a"})
	tr := NewTracker()
	tr.GrantCriterion(advX, "a", req)
	tr.ClearDirty()

	if !tr.RevokeAdvancement(advX) {
		t.Fatalf("revoke should report removal")
	}
	if tr.IsCompleted(advX) {
		t.Fatalf("revoked advancement still completed")
	}
	// The dangling dirty entry drives the removal on the next flush.
	dirtyEquals(t, tr, advX)
	if tr.RevokeAdvancement(advX) {
		t.Fatalf("repeat revoke should report nothing removed")
	}
}

func TestTracker_UnknownAdvancementStillTracked(t *testing.T) {
	req := AllOf([]string{"a"})
	tr := NewTracker()
	unknown := resource.New("", "modded/not_loaded")
	if !tr.GrantCriterion(unknown, "a", req) {
		t.Fatalf("grants on unknown ids must still track progress")
	}
	if !tr.IsCompleted(unknown) {
		t.Fatalf("unknown id should complete against the given requirements")
	}
}

func TestTracker_CurrentTab(t *testing.T) {
	tr := NewTracker()
	if tr.CurrentTab() != nil {
		t.Fatalf("fresh tracker has no tab")
	}
	tab := resource.New("", "story/root")
	tr.SetCurrentTab(&tab)
	if got := tr.CurrentTab(); got == nil || *got != tab {
		t.Fatalf("tab = %v", got)
	}
	tr.SetCurrentTab(nil)
	if tr.CurrentTab() != nil {
		t.Fatalf("tab should clear")
	}
}

func TestTracker_LoadThenSnapshot(t *testing.T) {
	req := AllOf([]string{"a", "b"})
	at := time.Unix(1700000000, 0)

	stored := NewProgress()
	stored.GrantAt("a", at)
	stored.GrantAt("b", at.Add(time.Second))
	stored.UpdateDone(req)

	tr := NewTracker()
	tr.ClearDirty()
	tr.LoadProgress(map[resource.ID]*Progress{advX: stored})

	if !tr.NeedsReset() {
		t.Fatalf("load must force a full resend")
	}
	completedEquals(t, tr, advX)

	saved := tr.SaveProgress()
	got, ok := saved[advX]
	if !ok {
		t.Fatalf("snapshot missing entry")
	}
	if len(got.Criteria) != 2 {
		t.Fatalf("criteria = %d", len(got.Criteria))
	}
	for name, c := range stored.Criteria {
		cp, ok := got.Criteria[name]
		if !ok || cp.ObtainedTime == nil || !cp.ObtainedTime.Equal(*c.ObtainedTime) {
			t.Fatalf("criterion %q mismatch", name)
		}
	}
	if got.Done != stored.Done {
		t.Fatalf("done flag mismatch")
	}

	// The snapshot is a copy, not an alias.
	got.Criteria["a"].Reset()
	if live := tr.GetOrCreate(advX); !live.Criteria["a"].IsObtained() {
		t.Fatalf("snapshot mutation leaked into tracker")
	}
}

func TestTracker_RecipeBook(t *testing.T) {
	tr := NewTracker()
	r1 := resource.New("", "iron_shovel")
	r2 := resource.New("", "iron_sword")

	fresh := tr.UnlockRecipes([]resource.ID{r1, r2})
	if len(fresh) != 2 {
		t.Fatalf("fresh = %v", fresh)
	}
	if tr.UnlockRecipes([]resource.ID{r1}) != nil {
		t.Fatalf("repeat unlock should be empty")
	}
	if !tr.IsRecipeUnlocked(r1) || !tr.IsRecipeHighlighted(r1) {
		t.Fatalf("new unlock should be highlighted")
	}
	if !tr.MarkRecipeSeen(r1) {
		t.Fatalf("seen should clear highlight")
	}
	if tr.IsRecipeHighlighted(r1) {
		t.Fatalf("highlight survived seen")
	}
	if tr.MarkRecipeSeen(r1) {
		t.Fatalf("repeat seen should report nothing")
	}

	removed := tr.RemoveRecipes([]resource.ID{r2})
	if len(removed) != 1 || removed[0] != r2 {
		t.Fatalf("removed = %v", removed)
	}
	if tr.IsRecipeUnlocked(r2) {
		t.Fatalf("r2 still unlocked")
	}

	tr.SetBookSettings(BookBlastFurnace, true, false)
	s := tr.BookSettings()
	if !s[BookBlastFurnace].Open || s[BookBlastFurnace].FilterActive {
		t.Fatalf("settings = %+v", s)
	}
	if s[BookCrafting].Open {
		t.Fatalf("other books should be untouched")
	}
}
