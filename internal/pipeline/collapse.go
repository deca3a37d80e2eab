package pipeline

import "fmt"

// Outcome is the result of consulting a CollapseTable for a pair of events on
// the same path. It is either a replacement kind (collapse the newer event
// into the older delay), OutcomeCancel (both vanish) or OutcomeStack (keep
// both, newer behind older).
type Outcome int

const (
	// OutcomeCancel removes the older delay and drops the newer event.
	OutcomeCancel Outcome = -1
	// OutcomeStack keeps the older delay and appends the newer one behind it.
	OutcomeStack Outcome = 0
)

// Replace builds the outcome that rewrites the older delay to kind k while
// preserving its queue position and deadline.
func Replace(k EventKind) Outcome {
	return Outcome(k)
}

// Kind returns the replacement kind of a replace outcome. Calling it on
// OutcomeCancel or OutcomeStack is a programmer error.
func (o Outcome) Kind() EventKind {
	if o == OutcomeCancel || o == OutcomeStack {
		panic(fmt.Sprintf("outcome %d carries no replacement kind", int(o)))
	}
	return EventKind(o)
}

// CollapseTable decides what happens when a new event arrives for a path that
// already has a pending delay. It is total over the four non-move kinds; move
// kinds never reach the table because they are forced to stack.
type CollapseTable map[EventKind]map[EventKind]Outcome

// DefaultCollapse returns the stock collapse table.
//
// Reading row=older, column=newer: a Create followed by a Delete cancels out
// entirely; a Delete followed by a Create becomes a Modify (the file exists
// again, contents unknown); everything after a Create stays a Create so the
// target receives the file exactly once.
func DefaultCollapse() CollapseTable {
	return CollapseTable{
		KindAttrib: {
			KindAttrib: Replace(KindAttrib),
			KindModify: Replace(KindModify),
			KindCreate: Replace(KindCreate),
			KindDelete: Replace(KindDelete),
		},
		KindModify: {
			KindAttrib: Replace(KindModify),
			KindModify: Replace(KindModify),
			KindCreate: Replace(KindCreate),
			KindDelete: Replace(KindDelete),
		},
		KindCreate: {
			KindAttrib: Replace(KindCreate),
			KindModify: Replace(KindCreate),
			KindCreate: Replace(KindCreate),
			KindDelete: OutcomeCancel,
		},
		KindDelete: {
			KindAttrib: Replace(KindDelete),
			KindModify: Replace(KindDelete),
			KindCreate: Replace(KindModify),
			KindDelete: Replace(KindDelete),
		},
	}
}

// Lookup resolves the outcome for an (older, newer) pair. The table is total
// by construction; a missing entry means a kind escaped validation upstream,
// which is a programmer error.
func (t CollapseTable) Lookup(older, newer EventKind) Outcome {
	row, ok := t[older]
	if !ok {
		panic(fmt.Sprintf("collapse table has no row for %s", older))
	}
	o, ok := row[newer]
	if !ok {
		panic(fmt.Sprintf("collapse table row %s has no column for %s", older, newer))
	}
	return o
}
