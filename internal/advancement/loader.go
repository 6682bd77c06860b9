package advancement

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"opalcraft.gg/internal/resource"
	"opalcraft.gg/internal/text"
)

//go:embed advancement.schema.json
var schemaJSON string

// Categories are the definition directories shipped with the server.
var Categories = []string{"story", "nether", "end", "adventure", "husbandry"}

// Entry is one advancement JSON document awaiting parsing.
type Entry struct {
	Category string
	Name     string
	Data     []byte
}

// Loaded pairs a resolved id with its parsed definition.
type Loaded struct {
	ID          resource.ID
	Advancement *Advancement
}

// Loader parses advancement JSON into the definition model. Documents are
// validated against the embedded schema first; entries that fail to validate
// or parse are logged and skipped, the batch continues.
type Loader struct {
	schema *jsonschema.Schema
	log    *log.Logger
}

func NewLoader(logger *log.Logger) (*Loader, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("advancement.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("schema resource: %w", err)
	}
	s, err := c.Compile("advancement.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Loader{schema: s, log: logger}, nil
}

// LoadAll parses every entry, skipping the broken ones.
func (l *Loader) LoadAll(entries []Entry) []Loaded {
	out := make([]Loaded, 0, len(entries))
	for _, e := range entries {
		id, adv, err := l.loadOne(e)
		if err != nil {
			l.log.Printf("advancement %s/%s: %v", e.Category, e.Name, err)
			continue
		}
		out = append(out, Loaded{ID: id, Advancement: adv})
	}
	return out
}

// LoadDir walks <dir>/<category>/*.json for each known category.
func (l *Loader) LoadDir(dir string) ([]Loaded, error) {
	var entries []Entry
	for _, cat := range Categories {
		catDir := filepath.Join(dir, cat)
		files, err := os.ReadDir(catDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(catDir, f.Name()))
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{
				Category: cat,
				Name:     strings.TrimSuffix(f.Name(), ".json"),
				Data:     raw,
			})
		}
	}
	return l.LoadAll(entries), nil
}

type rawDoc struct {
	Parent              string                  `json:"parent"`
	Display             *rawDisplay             `json:"display"`
	Criteria            map[string]rawCriterion `json:"criteria"`
	Requirements        [][]string              `json:"requirements"`
	Rewards             *rawRewards             `json:"rewards"`
	SendsTelemetryEvent bool                    `json:"sends_telemetry_event"`
}

type rawDisplay struct {
	Icon           rawIcon         `json:"icon"`
	Title          json.RawMessage `json:"title"`
	Description    json.RawMessage `json:"description"`
	Frame          string          `json:"frame"`
	Background     string          `json:"background"`
	ShowToast      *bool           `json:"show_toast"`
	AnnounceToChat *bool           `json:"announce_to_chat"`
	Hidden         bool            `json:"hidden"`
}

type rawIcon struct {
	ID         string          `json:"id"`
	Count      *int32          `json:"count"`
	Components json.RawMessage `json:"components"`
}

type rawCriterion struct {
	Trigger    string          `json:"trigger"`
	Conditions json.RawMessage `json:"conditions"`
}

type rawRewards struct {
	Experience int32    `json:"experience"`
	Recipes    []string `json:"recipes"`
	Loot       []string `json:"loot"`
	Function   string   `json:"function"`
}

func (l *Loader) loadOne(e Entry) (resource.ID, *Advancement, error) {
	var generic any
	if err := json.Unmarshal(e.Data, &generic); err != nil {
		return resource.ID{}, nil, err
	}
	if err := l.schema.Validate(generic); err != nil {
		return resource.ID{}, nil, err
	}

	var doc rawDoc
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	if err := dec.Decode(&doc); err != nil {
		return resource.ID{}, nil, err
	}

	id, err := ResolveID(e.Category, e.Name)
	if err != nil {
		return resource.ID{}, nil, err
	}

	b := NewBuilder()
	if doc.Parent != "" {
		parent, err := resource.Parse(doc.Parent)
		if err != nil {
			return resource.ID{}, nil, fmt.Errorf("parent: %w", err)
		}
		b.Parent(parent)
	}
	if doc.Display != nil {
		d, err := parseDisplay(doc.Display)
		if err != nil {
			return resource.ID{}, nil, err
		}
		b.Display(d)
	}
	if len(doc.Criteria) == 0 {
		return resource.ID{}, nil, fmt.Errorf("no criteria")
	}
	for name, rc := range doc.Criteria {
		trigger, err := resource.Parse(rc.Trigger)
		if err != nil {
			return resource.ID{}, nil, fmt.Errorf("criterion %q: %w", name, err)
		}
		b.Criterion(name, Criterion{Trigger: trigger, Conditions: rc.Conditions})
	}
	if doc.Requirements != nil {
		b.Requirements(FromGroups(doc.Requirements))
	}
	if doc.Rewards != nil {
		rw, err := parseRewards(doc.Rewards)
		if err != nil {
			return resource.ID{}, nil, err
		}
		b.Rewards(rw)
	}
	b.Telemetry(doc.SendsTelemetryEvent)

	return id, b.Build(), nil
}

// ResolveID resolves an entry name against its category: names carrying a
// namespace are taken whole, bare names become "vanilla:<category>/<name>".
func ResolveID(category, name string) (resource.ID, error) {
	if strings.IndexByte(name, ':') >= 0 {
		return resource.Parse(name)
	}
	return resource.New("", category+"/"+name), nil
}

func parseDisplay(raw *rawDisplay) (*Display, error) {
	item, err := resource.Parse(raw.Icon.ID)
	if err != nil {
		return nil, fmt.Errorf("icon: %w", err)
	}
	count := int32(1)
	if raw.Icon.Count != nil {
		count = *raw.Icon.Count
	}
	d := &Display{
		Icon:           Icon{Item: item, Count: count},
		Title:          ParseRichText(raw.Title),
		Description:    ParseRichText(raw.Description),
		Frame:          ParseFrame(raw.Frame),
		ShowToast:      true,
		AnnounceToChat: true,
		Hidden:         raw.Hidden,
	}
	if raw.Background != "" {
		bg, err := resource.Parse(raw.Background)
		if err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		d.Background = &bg
	}
	if raw.ShowToast != nil {
		d.ShowToast = *raw.ShowToast
	}
	if raw.AnnounceToChat != nil {
		d.AnnounceToChat = *raw.AnnounceToChat
	}
	return d, nil
}

// ParseRichText follows the document ladder: a JSON string is literal text,
// an object with "translate" is a translation key, an object with "text" is
// literal, anything else falls back to the raw document text.
func ParseRichText(raw json.RawMessage) text.RichText {
	if len(raw) == 0 {
		return text.RichText{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return text.Literal(s)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		color := ""
		if c, ok := fields["color"]; ok {
			_ = json.Unmarshal(c, &color)
		}
		if tr, ok := fields["translate"]; ok {
			var key string
			if json.Unmarshal(tr, &key) == nil {
				return text.RichText{Translate: key, Color: color}
			}
		}
		if txt, ok := fields["text"]; ok {
			var lit string
			if json.Unmarshal(txt, &lit) == nil {
				return text.RichText{Text: lit, Color: color}
			}
		}
	}
	return text.Literal(string(raw))
}

func parseRewards(raw *rawRewards) (Rewards, error) {
	rw := Rewards{Experience: raw.Experience}
	for _, r := range raw.Recipes {
		id, err := resource.Parse(r)
		if err != nil {
			return Rewards{}, fmt.Errorf("rewards recipe: %w", err)
		}
		rw.Recipes = append(rw.Recipes, id)
	}
	for _, l := range raw.Loot {
		id, err := resource.Parse(l)
		if err != nil {
			return Rewards{}, fmt.Errorf("rewards loot: %w", err)
		}
		rw.Loot = append(rw.Loot, id)
	}
	if raw.Function != "" {
		id, err := resource.Parse(raw.Function)
		if err != nil {
			return Rewards{}, fmt.Errorf("rewards function: %w", err)
		}
		rw.Function = &id
	}
	return rw, nil
}
