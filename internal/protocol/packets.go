package protocol

import (
	"fmt"

	"opalcraft.gg/internal/resource"
	"opalcraft.gg/internal/text"
)

// PacketID numbers are exchanged with the transport as opaque enumerants.
type PacketID int32

const (
	ClientboundUpdateAdvancements  PacketID = 0x01
	ClientboundSelectTab           PacketID = 0x02
	ClientboundPlaceGhostRecipe    PacketID = 0x03
	ClientboundRecipeBookAdd       PacketID = 0x04
	ClientboundRecipeBookRemove    PacketID = 0x05
	ClientboundRecipeBookSettings  PacketID = 0x06
	ServerboundSeenAdvancements    PacketID = 0x11
	ServerboundChangeBookSettings  PacketID = 0x12
	ServerboundSeenRecipe          PacketID = 0x13
)

// Icon is an advancement tile's item stack. ItemID is the numeric palette
// id; component payloads are not modeled and both counts encode as zero.
type Icon struct {
	Count  int32
	ItemID int32
}

// Display is the wire shape of an advancement's visual block.
type Display struct {
	Title       text.RichText
	Description text.RichText
	Icon        Icon
	Frame       int32
	Flags       int32
	Background  *resource.ID
	X           float32
	Y           float32
}

// Advancement is the wire shape of one definition.
type Advancement struct {
	Parent         *resource.ID
	Display        *Display
	Requirements   [][]string
	SendsTelemetry bool
}

// AdvancementMapping pairs an id with its definition.
type AdvancementMapping struct {
	ID          resource.ID
	Advancement Advancement
}

// CriterionProgressEntry is one criterion's obtained state.
type CriterionProgressEntry struct {
	Criterion  string
	ObtainedMS *int64
}

// ProgressMapping is one advancement's progress entries.
type ProgressMapping struct {
	ID       resource.ID
	Criteria []CriterionProgressEntry
}

// UpdateAdvancements is the clientbound incremental-or-reset sync payload.
type UpdateAdvancements struct {
	Reset        bool
	Advancements []AdvancementMapping
	Removed      []resource.ID
	Progress     []ProgressMapping
}

func (p *UpdateAdvancements) Encode(w *Writer) {
	w.Bool(p.Reset)

	w.VarInt(int32(len(p.Advancements)))
	for _, m := range p.Advancements {
		w.ID(m.ID)
		encodeAdvancement(w, &m.Advancement)
	}

	w.VarInt(int32(len(p.Removed)))
	for _, id := range p.Removed {
		w.ID(id)
	}

	w.VarInt(int32(len(p.Progress)))
	for _, m := range p.Progress {
		w.ID(m.ID)
		w.VarInt(int32(len(m.Criteria)))
		for _, c := range m.Criteria {
			w.String(c.Criterion)
			w.OptionalI64(c.ObtainedMS)
		}
	}
}

func encodeAdvancement(w *Writer, a *Advancement) {
	w.OptionalID(a.Parent)
	w.Bool(a.Display != nil)
	if a.Display != nil {
		encodeDisplay(w, a.Display)
	}
	w.VarInt(int32(len(a.Requirements)))
	for _, group := range a.Requirements {
		w.VarInt(int32(len(group)))
		for _, name := range group {
			w.String(name)
		}
	}
	w.Bool(a.SendsTelemetry)
}

func encodeDisplay(w *Writer, d *Display) {
	w.Raw(d.Title.Encode())
	w.Raw(d.Description.Encode())

	// The reference client reads the item stack only when count is positive.
	w.VarInt(d.Icon.Count)
	if d.Icon.Count > 0 {
		w.VarInt(d.Icon.ItemID)
		w.VarInt(0) // components to add
		w.VarInt(0) // components to remove
	}

	w.VarInt(d.Frame)
	w.I32(d.Flags)
	if d.Flags&0x01 != 0 && d.Background != nil {
		w.ID(*d.Background)
	}
	w.F32(d.X)
	w.F32(d.Y)
}

// SelectAdvancementTab opens a tab on the client, or closes the screen when
// Tab is nil.
type SelectAdvancementTab struct {
	Tab *resource.ID
}

func (p *SelectAdvancementTab) Encode(w *Writer) {
	w.OptionalID(p.Tab)
}

// SeenAction is the serverbound advancement-screen interaction kind.
type SeenAction int32

const (
	SeenOpenedTab    SeenAction = 0
	SeenClosedScreen SeenAction = 1
)

// SeenAdvancements reports the client opening a tab or closing the screen.
type SeenAdvancements struct {
	Action SeenAction
	Tab    resource.ID
}

func (p *SeenAdvancements) Encode(w *Writer) {
	w.VarInt(int32(p.Action))
	if p.Action == SeenOpenedTab {
		w.ID(p.Tab)
	}
}

func DecodeSeenAdvancements(r *Reader) (SeenAdvancements, error) {
	action, err := r.VarInt()
	if err != nil {
		return SeenAdvancements{}, err
	}
	switch SeenAction(action) {
	case SeenOpenedTab:
		tab, err := r.ID()
		if err != nil {
			return SeenAdvancements{}, err
		}
		return SeenAdvancements{Action: SeenOpenedTab, Tab: tab}, nil
	case SeenClosedScreen:
		return SeenAdvancements{Action: SeenClosedScreen}, nil
	default:
		return SeenAdvancements{}, fmt.Errorf("seen advancements: unknown action %d", action)
	}
}
