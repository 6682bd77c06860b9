package protocol

import (
	"fmt"

	"opalcraft.gg/internal/resource"
)

// Recipe entry flag bits.
const (
	RecipeFlagUnlocked    = 0x01
	RecipeFlagHighlighted = 0x02
)

// BookType selects one of the four client recipe books.
type BookType int32

const (
	BookCrafting     BookType = 0
	BookFurnace      BookType = 1
	BookBlastFurnace BookType = 2
	BookSmoker       BookType = 3
)

// PlaceGhostRecipe previews a recipe in an open crafting grid.
type PlaceGhostRecipe struct {
	WindowID int32
	Recipe   resource.ID
}

func (p *PlaceGhostRecipe) Encode(w *Writer) {
	w.VarInt(p.WindowID)
	w.ID(p.Recipe)
}

// Ingredient is one slot's accepted item set.
type Ingredient struct {
	Items []resource.ID
}

// RecipeBookEntry is one recipe row in a RecipeBookAdd payload. The
// ingredient list is written only when non-empty, signalled by the
// preceding bool.
type RecipeBookEntry struct {
	RecipeID    int32
	DisplayID   resource.ID
	GroupID     int32
	Category    int32
	Ingredients []Ingredient
	Flags       uint8
}

// RecipeBookAdd unlocks (or replaces) recipe rows on the client.
type RecipeBookAdd struct {
	Entries []RecipeBookEntry
	Replace bool
}

func (p *RecipeBookAdd) Encode(w *Writer) {
	w.VarInt(int32(len(p.Entries)))
	for _, e := range p.Entries {
		w.VarInt(e.RecipeID)
		w.ID(e.DisplayID)
		w.VarInt(e.GroupID)
		w.VarInt(e.Category)
		w.Bool(len(e.Ingredients) > 0)
		if len(e.Ingredients) > 0 {
			w.VarInt(int32(len(e.Ingredients)))
			for _, ing := range e.Ingredients {
				w.VarInt(int32(len(ing.Items)))
				for _, item := range ing.Items {
					w.ID(item)
				}
			}
		}
		w.U8(e.Flags)
	}
	w.Bool(p.Replace)
}

// RecipeBookRemove drops recipe rows from the client book.
type RecipeBookRemove struct {
	RecipeIDs []int32
}

func (p *RecipeBookRemove) Encode(w *Writer) {
	w.VarInt(int32(len(p.RecipeIDs)))
	for _, id := range p.RecipeIDs {
		w.VarInt(id)
	}
}

// RecipeBookSettings carries all four books' UI toggles.
type RecipeBookSettings struct {
	CraftingOpen       bool
	CraftingFilter     bool
	FurnaceOpen        bool
	FurnaceFilter      bool
	BlastFurnaceOpen   bool
	BlastFurnaceFilter bool
	SmokerOpen         bool
	SmokerFilter       bool
}

func (p *RecipeBookSettings) Encode(w *Writer) {
	w.Bool(p.CraftingOpen)
	w.Bool(p.CraftingFilter)
	w.Bool(p.FurnaceOpen)
	w.Bool(p.FurnaceFilter)
	w.Bool(p.BlastFurnaceOpen)
	w.Bool(p.BlastFurnaceFilter)
	w.Bool(p.SmokerOpen)
	w.Bool(p.SmokerFilter)
}

// ChangeRecipeBookSettings is the serverbound toggle update for one book.
type ChangeRecipeBookSettings struct {
	Book         BookType
	Open         bool
	FilterActive bool
}

func (p *ChangeRecipeBookSettings) Encode(w *Writer) {
	w.VarInt(int32(p.Book))
	w.Bool(p.Open)
	w.Bool(p.FilterActive)
}

func DecodeChangeRecipeBookSettings(r *Reader) (ChangeRecipeBookSettings, error) {
	book, err := r.VarInt()
	if err != nil {
		return ChangeRecipeBookSettings{}, err
	}
	if book < int32(BookCrafting) || book > int32(BookSmoker) {
		return ChangeRecipeBookSettings{}, fmt.Errorf("recipe book settings: unknown book type %d", book)
	}
	open, err := r.Bool()
	if err != nil {
		return ChangeRecipeBookSettings{}, err
	}
	filter, err := r.Bool()
	if err != nil {
		return ChangeRecipeBookSettings{}, err
	}
	return ChangeRecipeBookSettings{Book: BookType(book), Open: open, FilterActive: filter}, nil
}

// SeenRecipe reports the client viewing a highlighted recipe.
type SeenRecipe struct {
	Recipe resource.ID
}

func (p *SeenRecipe) Encode(w *Writer) {
	w.ID(p.Recipe)
}

func DecodeSeenRecipe(r *Reader) (SeenRecipe, error) {
	id, err := r.ID()
	if err != nil {
		return SeenRecipe{}, err
	}
	return SeenRecipe{Recipe: id}, nil
}
