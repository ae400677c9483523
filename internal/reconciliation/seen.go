package reconciliation

import "sort"

// SeenSet holds the transaction ids that already produced a terminal
// notification. It is a value: Reconcile never mutates the set it is given
// and returns a fresh one when ids are added.
type SeenSet struct {
	ids map[string]struct{}
}

// NewSeenSet builds a set containing ids.
func NewSeenSet(ids ...string) SeenSet {
	if len(ids) == 0 {
		return SeenSet{}
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return SeenSet{ids: m}
}

func (s SeenSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s SeenSet) Len() int {
	return len(s.ids)
}

// IDs returns the members in sorted order.
func (s SeenSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s SeenSet) clone(extra int) SeenSet {
	m := make(map[string]struct{}, len(s.ids)+extra)
	for id := range s.ids {
		m[id] = struct{}{}
	}
	return SeenSet{ids: m}
}
