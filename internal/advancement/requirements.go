package advancement

import "sort"

// Requirements is an AND-of-ORs formula over criterion names: the formula
// holds when every group contains at least one completed name. An empty
// formula always holds.
type Requirements struct {
	groups [][]string
}

// AllOf builds one singleton group per name (conjunction).
func AllOf(names []string) Requirements {
	groups := make([][]string, 0, len(names))
	for _, n := range names {
		groups = append(groups, []string{n})
	}
	return Requirements{groups: groups}
}

// AnyOf builds a single group holding every name (disjunction). No names
// means an empty formula.
func AnyOf(names []string) Requirements {
	if len(names) == 0 {
		return Requirements{}
	}
	group := make([]string, len(names))
	copy(group, names)
	return Requirements{groups: [][]string{group}}
}

// FromGroups takes the groups verbatim. Empty groups are dropped since they
// could never be satisfied.
func FromGroups(groups [][]string) Requirements {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		cp := make([]string, len(g))
		copy(cp, g)
		out = append(out, cp)
	}
	return Requirements{groups: out}
}

// Test reports whether every group has a member in completed.
func (r Requirements) Test(completed map[string]struct{}) bool {
	for _, g := range r.groups {
		if !groupSatisfied(g, completed) {
			return false
		}
	}
	return true
}

// CountSatisfied returns the number of groups with a member in completed.
func (r Requirements) CountSatisfied(completed map[string]struct{}) int {
	n := 0
	for _, g := range r.groups {
		if groupSatisfied(g, completed) {
			n++
		}
	}
	return n
}

// Percent is the satisfied fraction in [0, 1]. An empty formula is complete.
func (r Requirements) Percent(completed map[string]struct{}) float32 {
	if len(r.groups) == 0 {
		return 1.0
	}
	return float32(r.CountSatisfied(completed)) / float32(len(r.groups))
}

// Names returns the union of all group members.
func (r Requirements) Names() map[string]struct{} {
	out := make(map[string]struct{})
	for _, g := range r.groups {
		for _, n := range g {
			out[n] = struct{}{}
		}
	}
	return out
}

// SortedNames returns Names in deterministic order.
func (r Requirements) SortedNames() []string {
	names := r.Names()
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r Requirements) Len() int {
	return len(r.groups)
}

func (r Requirements) IsEmpty() bool {
	return len(r.groups) == 0
}

// Groups exposes the raw formula for wire encoding. Callers must not mutate.
func (r Requirements) Groups() [][]string {
	return r.groups
}

func groupSatisfied(group []string, completed map[string]struct{}) bool {
	for _, n := range group {
		if _, ok := completed[n]; ok {
			return true
		}
	}
	return false
}
