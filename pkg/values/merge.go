package values

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stackforge/pkg/ref"
)

// Conflict describes a key for which requirers declared different values at
// the same precedence. The winner is kept; Others lists the values it beat.
type Conflict struct {
	Key    string
	Winner Change
	Others []Change
}

// String renders the conflict for warnings.
func (c Conflict) String() string {
	var b strings.Builder
	b.WriteString(c.Key + "=" + c.Winner.Value + " (from " + c.Winner.Source + ")")
	for _, o := range c.Others {
		b.WriteString(", discarded " + o.Value + " (from " + o.Source + ")")
	}
	return b.String()
}

type scope int

const (
	scopeDefault scope = iota
	scopeWildcard
	scopeExplicit
	scopeDirect
)

func scopeOf(a Assignment) scope {
	switch {
	case a.IsDirect():
		return scopeDirect
	case IsWildcard(a.Pattern) || strings.HasPrefix(a.Pattern, "!"):
		return scopeWildcard
	}
	return scopeExplicit
}

type slot struct {
	change Change
	scope  scope
}

// replacedBy reports whether next takes over from cur.
func (cur slot) replacedBy(next slot) bool {
	if cur.change.Important != next.change.Important {
		return next.change.Important
	}
	if cur.scope == scopeDirect && next.scope == scopeWildcard {
		return false
	}
	return true
}

// sameRank reports whether a replacement of cur by next was decided by order
// alone between two different requirers.
func (cur slot) sameRank(next slot) bool {
	return cur.scope != scopeDefault &&
		cur.change.Important == next.change.Important &&
		cur.change.Origin == OriginRecipe && next.change.Origin == OriginRecipe &&
		cur.change.Source != next.change.Source &&
		cur.change.Value != next.change.Value
}

// Merge replays assignments over base for the package target. isConsumer
// marks target as the consumer, which direct assignments apply to. base is
// not modified; it may be nil.
//
// Merge is pure: the same inputs always produce the same values and
// conflicts.
func Merge(base *Values, assignments []Assignment, target ref.Reference, isConsumer bool) (*Values, []Conflict) {
	out := base.Clone()
	slots := make(map[string]slot, out.Len())
	for _, k := range out.Keys() {
		w, _ := out.Winner(k)
		slots[k] = slot{change: w, scope: scopeDefault}
	}

	conflicts := make(map[string]*Conflict)
	for _, a := range assignments {
		if !Match(a.Pattern, target, isConsumer) {
			continue
		}
		next := slot{
			change: Change{
				Key:       a.Key,
				Value:     a.Value,
				Pattern:   a.Pattern,
				Important: a.Important,
				Origin:    a.Origin,
				Source:    a.Source,
			},
			scope: scopeOf(a),
		}
		cur, exists := slots[a.Key]
		if exists && !cur.replacedBy(next) {
			continue
		}
		if exists && cur.sameRank(next) {
			c := conflicts[a.Key]
			if c == nil {
				c = &Conflict{Key: a.Key}
				conflicts[a.Key] = c
			}
			c.Others = append(c.Others, cur.change)
			c.Winner = next.change
		}
		slots[a.Key] = next
		out.apply(next.change)
	}

	if len(conflicts) == 0 {
		return out, nil
	}
	result := make([]Conflict, 0, len(conflicts))
	for _, k := range slices.Sorted(maps.Keys(conflicts)) {
		result = append(result, *conflicts[k])
	}
	return out, result
}
