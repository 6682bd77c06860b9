// Package text models the formatted-text values carried by advancement
// displays and command feedback, and encodes them into the NBT form the
// client expects.
package text

import "opalcraft.gg/internal/nbt"

// Named colors the server emits. The client accepts any vanilla color name.
const (
	ColorRed    = "red"
	ColorGreen  = "green"
	ColorYellow = "yellow"
)

// RichText is either a literal string or a translation key with arguments.
// A non-empty Translate takes precedence over Text.
type RichText struct {
	Text      string
	Translate string
	Color     string
	With      []RichText
}

func Literal(s string) RichText {
	return RichText{Text: s}
}

func Translatef(key string, args ...RichText) RichText {
	return RichText{Translate: key, With: args}
}

func (t RichText) WithColor(c string) RichText {
	t.Color = c
	return t
}

func (t RichText) IsZero() bool {
	return t.Text == "" && t.Translate == "" && t.Color == "" && len(t.With) == 0
}

// Encode renders the component as an unnamed network-NBT compound.
func (t RichText) Encode() []byte {
	w := nbt.NewWriter()
	w.BeginCompound()
	t.encodeEntries(w)
	w.End()
	return w.Bytes()
}

func (t RichText) encodeEntries(w *nbt.Writer) {
	if t.Translate != "" {
		w.String("translate", t.Translate)
		if len(t.With) > 0 {
			w.BeginCompoundList("with", len(t.With))
			for _, arg := range t.With {
				arg.encodeEntries(w)
				w.End()
			}
		}
	} else {
		w.String("text", t.Text)
	}
	if t.Color != "" {
		w.String("color", t.Color)
	}
}
