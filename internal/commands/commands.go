// Package commands implements the "advancement" command surface exposed to
// operators: granting and revoking advancements for selected players.
package commands

import (
	"fmt"
	"strings"

	"opalcraft.gg/internal/advancement"
	"opalcraft.gg/internal/resource"
	"opalcraft.gg/internal/text"
)

// Result is the human-readable command outcome. Failures render red.
type Result struct {
	OK      bool
	Message text.RichText
}

// PlayerLookup resolves a target selector to the online trackers it names.
type PlayerLookup func(selector string) map[string]*advancement.Tracker

// Handler executes advancement commands against the live registry.
type Handler struct {
	handle     *advancement.Handle
	players    PlayerLookup
	onComplete advancement.CompletionFunc
}

func NewHandler(h *advancement.Handle, players PlayerLookup) *Handler {
	return &Handler{handle: h, players: players}
}

// OnComplete registers the same completion observer trigger dispatch uses,
// so command grants hand out rewards too.
func (h *Handler) OnComplete(fn advancement.CompletionFunc) {
	h.onComplete = fn
}

func fail(msg string) Result {
	return Result{Message: text.Literal(msg).WithColor(text.ColorRed)}
}

func ok(msg string) Result {
	return Result{OK: true, Message: text.Literal(msg)}
}

// Run parses and executes one command line of the form
//
//	advancement (grant|revoke) <players> (everything | only <advancement-id>)
func (h *Handler) Run(line string) Result {
	args := strings.Fields(line)
	if len(args) < 4 || args[0] != "advancement" {
		return fail("Usage: advancement (grant|revoke) <players> (everything | only <advancement>)")
	}
	verb, selector, mode := args[1], args[2], args[3]
	if verb != "grant" && verb != "revoke" {
		return fail(fmt.Sprintf("Unknown action %q", verb))
	}

	trackers := h.players(selector)
	if len(trackers) == 0 {
		return fail(fmt.Sprintf("No players matched %q", selector))
	}

	switch mode {
	case "everything":
		if len(args) != 4 {
			return fail("Trailing arguments after \"everything\"")
		}
		if verb == "grant" {
			return h.grantEverything(trackers)
		}
		return h.revokeEverything(trackers)
	case "only":
		if len(args) != 5 {
			return fail("Expected an advancement id after \"only\"")
		}
		id, err := resource.Parse(args[4])
		if err != nil {
			return fail(fmt.Sprintf("Invalid advancement id %q", args[4]))
		}
		if verb == "grant" {
			return h.grantOne(trackers, id)
		}
		return h.revokeOne(trackers, id)
	default:
		return fail(fmt.Sprintf("Unknown mode %q", mode))
	}
}

func (h *Handler) grantEverything(trackers map[string]*advancement.Tracker) Result {
	reg := h.handle.Snapshot()
	granted := 0
	for player, tr := range trackers {
		reg.Each(func(id resource.ID, adv *advancement.Advancement) {
			if h.grant(player, tr, id, adv) {
				granted++
			}
		})
	}
	if granted == 0 {
		return fail("Nothing to grant")
	}
	return ok(fmt.Sprintf("Granted %d advancements to %d players", granted, len(trackers)))
}

func (h *Handler) grantOne(trackers map[string]*advancement.Tracker, id resource.ID) Result {
	reg := h.handle.Snapshot()
	adv, found := reg.Get(id)
	if !found {
		return fail(fmt.Sprintf("Unknown advancement %s", id))
	}
	granted := 0
	for player, tr := range trackers {
		if h.grant(player, tr, id, adv) {
			granted++
		}
	}
	if granted == 0 {
		return fail(fmt.Sprintf("No player could progress on %s", id))
	}
	return ok(fmt.Sprintf("Granted the advancement %s to %d players", id, granted))
}

func (h *Handler) grant(player string, tr *advancement.Tracker, id resource.ID, adv *advancement.Advancement) bool {
	wasDone := tr.IsCompleted(id)
	if !tr.GrantAdvancement(id, adv.Requirements) {
		return false
	}
	if !wasDone && tr.IsCompleted(id) && h.onComplete != nil {
		h.onComplete(player, tr, id, adv)
	}
	return true
}

func (h *Handler) revokeEverything(trackers map[string]*advancement.Tracker) Result {
	reg := h.handle.Snapshot()
	revoked := 0
	for _, tr := range trackers {
		for _, id := range reg.AllIDs() {
			if tr.RevokeAdvancement(id) {
				revoked++
			}
		}
	}
	if revoked == 0 {
		return fail("Nothing to revoke")
	}
	return ok(fmt.Sprintf("Revoked %d advancements from %d players", revoked, len(trackers)))
}

func (h *Handler) revokeOne(trackers map[string]*advancement.Tracker, id resource.ID) Result {
	if _, found := h.handle.Snapshot().Get(id); !found {
		return fail(fmt.Sprintf("Unknown advancement %s", id))
	}
	revoked := 0
	for _, tr := range trackers {
		if tr.RevokeAdvancement(id) {
			revoked++
		}
	}
	if revoked == 0 {
		return fail(fmt.Sprintf("No player had progress on %s", id))
	}
	return ok(fmt.Sprintf("Revoked the advancement %s from %d players", id, revoked))
}
