package advancement

import (
	"bytes"
	"encoding/json"
	"log"
	"sync"

	"opalcraft.gg/internal/resource"
)

// Vanilla trigger identifiers as one compile-time table.
var (
	TriggerImpossible                   = resource.New("", "impossible")
	TriggerPlayerKilledEntity           = resource.New("", "player_killed_entity")
	TriggerEntityKilledPlayer           = resource.New("", "entity_killed_player")
	TriggerEnterBlock                   = resource.New("", "enter_block")
	TriggerInventoryChanged             = resource.New("", "inventory_changed")
	TriggerRecipeUnlocked               = resource.New("", "recipe_unlocked")
	TriggerRecipeCrafted                = resource.New("", "recipe_crafted")
	TriggerCrafterRecipeCrafted         = resource.New("", "crafter_recipe_crafted")
	TriggerConsumeItem                  = resource.New("", "consume_item")
	TriggerPlacedBlock                  = resource.New("", "placed_block")
	TriggerUsedEnderEye                 = resource.New("", "used_ender_eye")
	TriggerEnchantedItem                = resource.New("", "enchanted_item")
	TriggerBrewedPotion                 = resource.New("", "brewed_potion")
	TriggerConstructBeacon              = resource.New("", "construct_beacon")
	TriggerSummonedEntity               = resource.New("", "summoned_entity")
	TriggerBredAnimals                  = resource.New("", "bred_animals")
	TriggerLocation                     = resource.New("", "location")
	TriggerSleptInBed                   = resource.New("", "slept_in_bed")
	TriggerCuredZombieVillager          = resource.New("", "cured_zombie_villager")
	TriggerVillagerTrade                = resource.New("", "villager_trade")
	TriggerItemDurabilityChanged        = resource.New("", "item_durability_changed")
	TriggerLevitation                   = resource.New("", "levitation")
	TriggerChangedDimension             = resource.New("", "changed_dimension")
	TriggerTick                         = resource.New("", "tick")
	TriggerTameAnimal                   = resource.New("", "tame_animal")
	TriggerFilledBucket                 = resource.New("", "filled_bucket")
	TriggerFishingRodHooked             = resource.New("", "fishing_rod_hooked")
	TriggerEffectsChanged               = resource.New("", "effects_changed")
	TriggerUsedTotem                    = resource.New("", "used_totem")
	TriggerNetherTravel                 = resource.New("", "nether_travel")
	TriggerFallFromHeight               = resource.New("", "fall_from_height")
	TriggerRideEntityInLava             = resource.New("", "ride_entity_in_lava")
	TriggerChanneledLightning           = resource.New("", "channeled_lightning")
	TriggerShotCrossbow                 = resource.New("", "shot_crossbow")
	TriggerHeroOfTheVillage             = resource.New("", "hero_of_the_village")
	TriggerVoluntaryExile               = resource.New("", "voluntary_exile")
	TriggerSlideDownBlock               = resource.New("", "slide_down_block")
	TriggerBeeNestDestroyed             = resource.New("", "bee_nest_destroyed")
	TriggerTargetHit                    = resource.New("", "target_hit")
	TriggerItemUsedOnBlock              = resource.New("", "item_used_on_block")
	TriggerDefaultBlockUse              = resource.New("", "default_block_use")
	TriggerAnyBlockUse                  = resource.New("", "any_block_use")
	TriggerPlayerGeneratesContainerLoot = resource.New("", "player_generates_container_loot")
	TriggerThrownItemPickedUpByEntity   = resource.New("", "thrown_item_picked_up_by_entity")
	TriggerThrownItemPickedUpByPlayer   = resource.New("", "thrown_item_picked_up_by_player")
	TriggerPlayerInteractedWithEntity   = resource.New("", "player_interacted_with_entity")
	TriggerStartedRiding                = resource.New("", "started_riding")
	TriggerLightningStrike              = resource.New("", "lightning_strike")
	TriggerUsingItem                    = resource.New("", "using_item")
	TriggerFallAfterExplosion           = resource.New("", "fall_after_explosion")
	TriggerAllayDropItemOnBlock         = resource.New("", "allay_drop_item_on_block")

	// Both names map to "killed_by_crossbow" in the vanilla data. Kept
	// verbatim; see the alias note in DESIGN.md before changing either.
	TriggerKilledByArrow    = resource.New("", "killed_by_crossbow")
	TriggerKilledByCrossbow = resource.New("", "killed_by_crossbow")
)

// VanillaTriggers maps symbolic names to their identifiers.
var VanillaTriggers = map[string]resource.ID{
	"IMPOSSIBLE":                      TriggerImpossible,
	"PLAYER_KILLED_ENTITY":            TriggerPlayerKilledEntity,
	"ENTITY_KILLED_PLAYER":            TriggerEntityKilledPlayer,
	"ENTER_BLOCK":                     TriggerEnterBlock,
	"INVENTORY_CHANGED":               TriggerInventoryChanged,
	"RECIPE_UNLOCKED":                 TriggerRecipeUnlocked,
	"RECIPE_CRAFTED":                  TriggerRecipeCrafted,
	"CRAFTER_RECIPE_CRAFTED":          TriggerCrafterRecipeCrafted,
	"CONSUME_ITEM":                    TriggerConsumeItem,
	"PLACED_BLOCK":                    TriggerPlacedBlock,
	"USED_ENDER_EYE":                  TriggerUsedEnderEye,
	"ENCHANTED_ITEM":                  TriggerEnchantedItem,
	"BREWED_POTION":                   TriggerBrewedPotion,
	"CONSTRUCT_BEACON":                TriggerConstructBeacon,
	"SUMMONED_ENTITY":                 TriggerSummonedEntity,
	"BRED_ANIMALS":                    TriggerBredAnimals,
	"LOCATION":                        TriggerLocation,
	"SLEPT_IN_BED":                    TriggerSleptInBed,
	"CURED_ZOMBIE_VILLAGER":           TriggerCuredZombieVillager,
	"VILLAGER_TRADE":                  TriggerVillagerTrade,
	"ITEM_DURABILITY_CHANGED":         TriggerItemDurabilityChanged,
	"LEVITATION":                      TriggerLevitation,
	"CHANGED_DIMENSION":               TriggerChangedDimension,
	"TICK":                            TriggerTick,
	"TAME_ANIMAL":                     TriggerTameAnimal,
	"FILLED_BUCKET":                   TriggerFilledBucket,
	"FISHING_ROD_HOOKED":              TriggerFishingRodHooked,
	"EFFECTS_CHANGED":                 TriggerEffectsChanged,
	"USED_TOTEM":                      TriggerUsedTotem,
	"NETHER_TRAVEL":                   TriggerNetherTravel,
	"FALL_FROM_HEIGHT":                TriggerFallFromHeight,
	"RIDE_ENTITY_IN_LAVA":             TriggerRideEntityInLava,
	"CHANNELED_LIGHTNING":             TriggerChanneledLightning,
	"SHOT_CROSSBOW":                   TriggerShotCrossbow,
	"KILLED_BY_ARROW":                 TriggerKilledByArrow,
	"KILLED_BY_CROSSBOW":              TriggerKilledByCrossbow,
	"HERO_OF_THE_VILLAGE":             TriggerHeroOfTheVillage,
	"VOLUNTARY_EXILE":                 TriggerVoluntaryExile,
	"SLIDE_DOWN_BLOCK":                TriggerSlideDownBlock,
	"BEE_NEST_DESTROYED":              TriggerBeeNestDestroyed,
	"TARGET_HIT":                      TriggerTargetHit,
	"ITEM_USED_ON_BLOCK":              TriggerItemUsedOnBlock,
	"DEFAULT_BLOCK_USE":               TriggerDefaultBlockUse,
	"ANY_BLOCK_USE":                   TriggerAnyBlockUse,
	"PLAYER_GENERATES_CONTAINER_LOOT": TriggerPlayerGeneratesContainerLoot,
	"THROWN_ITEM_PICKED_UP_BY_ENTITY": TriggerThrownItemPickedUpByEntity,
	"THROWN_ITEM_PICKED_UP_BY_PLAYER": TriggerThrownItemPickedUpByPlayer,
	"PLAYER_INTERACTED_WITH_ENTITY":   TriggerPlayerInteractedWithEntity,
	"STARTED_RIDING":                  TriggerStartedRiding,
	"LIGHTNING_STRIKE":                TriggerLightningStrike,
	"USING_ITEM":                      TriggerUsingItem,
	"FALL_AFTER_EXPLOSION":            TriggerFallAfterExplosion,
	"ALLAY_DROP_ITEM_ON_BLOCK":        TriggerAllayDropItemOnBlock,
}

// Matcher evaluates a criterion's conditions document against a trigger
// context. Both values are trigger-specific JSON.
type Matcher interface {
	Matches(conditions, ctx json.RawMessage) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(conditions, ctx json.RawMessage) bool

func (f MatcherFunc) Matches(conditions, ctx json.RawMessage) bool {
	return f(conditions, ctx)
}

// CompletionFunc observes an advancement completing for the first time.
type CompletionFunc func(player string, tr *Tracker, id resource.ID, adv *Advancement)

type indexEntry struct {
	id        resource.ID
	criterion string
}

// Dispatcher routes world-event notifications to matching criteria. It keeps
// a trigger index over the current registry snapshot so dispatch is
// proportional to the number of matches, and rebuilds it after a hot reload.
type Dispatcher struct {
	handle     *Handle
	log        *log.Logger
	onComplete CompletionFunc

	mu         sync.Mutex
	matchers   map[resource.ID]Matcher
	index      map[resource.ID][]indexEntry
	indexedFor *Registry
}

func NewDispatcher(h *Handle, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		handle:   h,
		log:      logger,
		matchers: make(map[resource.ID]Matcher),
	}
}

// OnComplete registers the completion observer (rewards, telemetry).
func (d *Dispatcher) OnComplete(fn CompletionFunc) {
	d.onComplete = fn
}

// RegisterMatcher installs the condition strategy for one trigger id.
// Criteria with conditions and no registered matcher never match.
func (d *Dispatcher) RegisterMatcher(trigger resource.ID, m Matcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matchers[trigger] = m
}

// Trigger grants every criterion listening on the trigger id whose
// conditions accept ctx, and reports whether anything was granted so the
// caller can enqueue a sync.
func (d *Dispatcher) Trigger(player string, tr *Tracker, trigger resource.ID, ctx json.RawMessage) bool {
	reg := d.handle.Snapshot()
	entries := d.entriesFor(reg, trigger)

	granted := false
	for _, e := range entries {
		adv, ok := reg.Get(e.id)
		if !ok {
			continue
		}
		crit, ok := adv.Criteria[e.criterion]
		if !ok {
			continue
		}
		if !d.matches(trigger, crit.Conditions, ctx) {
			continue
		}
		wasDone := tr.IsCompleted(e.id)
		if !tr.GrantCriterion(e.id, e.criterion, adv.Requirements) {
			continue
		}
		granted = true
		if !wasDone && tr.IsCompleted(e.id) {
			d.log.Printf("player %s completed %s", player, e.id)
			if d.onComplete != nil {
				d.onComplete(player, tr, e.id, adv)
			}
		}
	}
	return granted
}

// Conditions-free criteria match unconditionally; anything else is delegated
// to the trigger's registered matcher.
func (d *Dispatcher) matches(trigger resource.ID, conditions, ctx json.RawMessage) bool {
	if isNullJSON(conditions) {
		return true
	}
	d.mu.Lock()
	m, ok := d.matchers[trigger]
	d.mu.Unlock()
	if !ok {
		return false
	}
	return m.Matches(conditions, ctx)
}

func (d *Dispatcher) entriesFor(reg *Registry, trigger resource.ID) []indexEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indexedFor != reg {
		idx := make(map[resource.ID][]indexEntry)
		reg.Each(func(id resource.ID, adv *Advancement) {
			for name, crit := range adv.Criteria {
				idx[crit.Trigger] = append(idx[crit.Trigger], indexEntry{id: id, criterion: name})
			}
		})
		d.index = idx
		d.indexedFor = reg
	}
	return d.index[trigger]
}

func isNullJSON(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
