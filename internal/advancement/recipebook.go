package advancement

import (
	"sort"

	"opalcraft.gg/internal/resource"
)

// RecipeBookType identifies one of the four client recipe books.
type RecipeBookType int32

const (
	BookCrafting     RecipeBookType = 0
	BookFurnace      RecipeBookType = 1
	BookBlastFurnace RecipeBookType = 2
	BookSmoker       RecipeBookType = 3

	recipeBookTypes = 4
)

// BookState is one book's UI toggles.
type BookState struct {
	Open         bool
	FilterActive bool
}

type recipeBook struct {
	settings    [recipeBookTypes]BookState
	unlocked    map[resource.ID]struct{}
	highlighted map[resource.ID]struct{}
}

func newRecipeBook() recipeBook {
	return recipeBook{
		unlocked:    make(map[resource.ID]struct{}),
		highlighted: make(map[resource.ID]struct{}),
	}
}

// UnlockRecipes adds recipes to the player's book, highlighting the new
// ones, and returns the ids that were not unlocked before.
func (t *Tracker) UnlockRecipes(ids []resource.ID) []resource.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []resource.ID
	for _, id := range ids {
		if _, ok := t.book.unlocked[id]; ok {
			continue
		}
		t.book.unlocked[id] = struct{}{}
		t.book.highlighted[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

// RemoveRecipes drops recipes from the book, returning the ids that were
// actually unlocked.
func (t *Tracker) RemoveRecipes(ids []resource.ID) []resource.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []resource.ID
	for _, id := range ids {
		if _, ok := t.book.unlocked[id]; !ok {
			continue
		}
		delete(t.book.unlocked, id)
		delete(t.book.highlighted, id)
		removed = append(removed, id)
	}
	return removed
}

// MarkRecipeSeen clears the highlight after the client viewed the recipe.
func (t *Tracker) MarkRecipeSeen(id resource.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.book.highlighted[id]; !ok {
		return false
	}
	delete(t.book.highlighted, id)
	return true
}

func (t *Tracker) IsRecipeUnlocked(id resource.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.book.unlocked[id]
	return ok
}

func (t *Tracker) IsRecipeHighlighted(id resource.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.book.highlighted[id]
	return ok
}

// UnlockedRecipes returns every unlocked recipe id, sorted.
func (t *Tracker) UnlockedRecipes() []resource.ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]resource.ID, 0, len(t.book.unlocked))
	for id := range t.book.unlocked {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// SetBookSettings stores one book's toggles. Out-of-range book types are
// rejected at the codec; this is a plain store.
func (t *Tracker) SetBookSettings(book RecipeBookType, open, filterActive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if book < 0 || book >= recipeBookTypes {
		return
	}
	t.book.settings[book] = BookState{Open: open, FilterActive: filterActive}
}

// BookSettings snapshots all four books' toggles.
func (t *Tracker) BookSettings() [4]BookState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.settings
}
