package core

// StateKeyProverbs is the state delta key under which mutation tools publish
// the resulting proverb list.
const StateKeyProverbs = "proverbs"

// StateSnapshot is a point-in-time copy of the proverb list taken inside the
// critical section of the mutation that produced it. It never aliases the
// store's backing array.
type StateSnapshot struct {
	Proverbs []string `json:"proverbs"`
}

// Len returns the number of proverbs captured by the snapshot.
func (s StateSnapshot) Len() int { return len(s.Proverbs) }

// ProverbStore owns the process-wide ordered list of proverbs. Every operation
// is linearizable. Implementations must not perform I/O while holding their
// exclusion and must never hand out a slice that aliases internal storage.
type ProverbStore interface {
	// GetAll returns a copy of the current list.
	GetAll() []string
	// Append adds items in order to the end of the list and returns the
	// resulting snapshot. An empty items slice is a no-op.
	Append(items []string) StateSnapshot
	// Replace discards the current content, stores a copy of items and
	// returns the resulting snapshot.
	Replace(items []string) StateSnapshot
}

// ProverbSnapshot extracts the proverb list published by a mutation tool
// through the event's state delta.
func (e Event) ProverbSnapshot() (StateSnapshot, bool) {
	if e.Actions.StateDelta == nil {
		return StateSnapshot{}, false
	}

	v, ok := e.Actions.StateDelta[StateKeyProverbs]
	if !ok {
		return StateSnapshot{}, false
	}

	switch list := v.(type) {
	case []string:
		return StateSnapshot{Proverbs: append([]string{}, list...)}, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, isString := item.(string)
			if !isString {
				return StateSnapshot{}, false
			}
			out = append(out, s)
		}
		return StateSnapshot{Proverbs: out}, true
	default:
		return StateSnapshot{}, false
	}
}
