// Package advancement implements the server's achievement engine: immutable
// definition trees loaded from JSON, per-player progress tracking with dirty
// bookkeeping, trigger dispatch, and the flush driver that feeds the wire
// codec.
package advancement

import (
	"encoding/json"
	"sort"

	"opalcraft.gg/internal/resource"
	"opalcraft.gg/internal/text"
)

// FrameType selects the toast frame drawn around a display.
type FrameType int32

const (
	FrameTask      FrameType = 0
	FrameGoal      FrameType = 1
	FrameChallenge FrameType = 2
)

// ParseFrame normalizes the JSON frame string; anything unknown is a task.
func ParseFrame(s string) FrameType {
	switch s {
	case "goal":
		return FrameGoal
	case "challenge":
		return FrameChallenge
	default:
		return FrameTask
	}
}

// Display flag bits as the client reads them.
const (
	DisplayFlagBackground = 0x01
	DisplayFlagShowToast  = 0x02
	DisplayFlagHidden     = 0x04
)

// Icon is the item rendered on the advancement tile. Component data is not
// modeled; the codec emits zero component counts.
type Icon struct {
	Item  resource.ID
	Count int32
}

// Display carries everything the client needs to draw an advancement.
// X and Y are assigned by the positioning pass after load; all other fields
// are immutable.
type Display struct {
	Icon           Icon
	Title          text.RichText
	Description    text.RichText
	Frame          FrameType
	Background     *resource.ID
	ShowToast      bool
	AnnounceToChat bool
	Hidden         bool
	X              float32
	Y              float32
}

// Flags packs the display booleans into the wire bitfield.
func (d *Display) Flags() int32 {
	var f int32
	if d.Background != nil {
		f |= DisplayFlagBackground
	}
	if d.ShowToast {
		f |= DisplayFlagShowToast
	}
	if d.Hidden {
		f |= DisplayFlagHidden
	}
	return f
}

// Criterion names the world-event class that can satisfy it. Conditions are
// trigger-specific and opaque to the engine; nil matches unconditionally.
type Criterion struct {
	Trigger    resource.ID
	Conditions json.RawMessage
}

// Rewards granted when an advancement completes.
type Rewards struct {
	Experience int32
	Recipes    []resource.ID
	Loot       []resource.ID
	Function   *resource.ID
}

// Advancement is one node of the loaded forest. Immutable after load, apart
// from the display position pass.
type Advancement struct {
	Parent              *resource.ID
	Display             *Display
	Criteria            map[string]Criterion
	Requirements        Requirements
	Rewards             Rewards
	SendsTelemetryEvent bool
}

func (a *Advancement) IsRoot() bool {
	return a.Parent == nil
}

// HasDisplay reports whether the advancement is visible in the UI. Recipe
// unlocks have no display.
func (a *Advancement) HasDisplay() bool {
	return a.Display != nil
}

// CriterionNames returns the declared criterion names, sorted.
func (a *Advancement) CriterionNames() []string {
	out := make([]string, 0, len(a.Criteria))
	for name := range a.Criteria {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Builder assembles an Advancement. Requirements default to the conjunction
// of all declared criteria when not set explicitly.
type Builder struct {
	adv    Advancement
	reqSet bool
}

func NewBuilder() *Builder {
	return &Builder{adv: Advancement{Criteria: make(map[string]Criterion)}}
}

func (b *Builder) Parent(id resource.ID) *Builder {
	p := id
	b.adv.Parent = &p
	return b
}

func (b *Builder) Display(d *Display) *Builder {
	b.adv.Display = d
	return b
}

func (b *Builder) Criterion(name string, c Criterion) *Builder {
	b.adv.Criteria[name] = c
	return b
}

func (b *Builder) Requirements(r Requirements) *Builder {
	b.adv.Requirements = r
	b.reqSet = true
	return b
}

func (b *Builder) Rewards(r Rewards) *Builder {
	b.adv.Rewards = r
	return b
}

func (b *Builder) Telemetry(v bool) *Builder {
	b.adv.SendsTelemetryEvent = v
	return b
}

func (b *Builder) Build() *Advancement {
	adv := b.adv
	if !b.reqSet {
		adv.Requirements = AllOf(adv.CriterionNames())
	}
	return &adv
}
