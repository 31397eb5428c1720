package opt

import "math/rand"

// TabuList maps move attributes to the last iteration in which they stay forbidden.
// Expired entries are dropped when they are looked up.
type TabuList struct {
	expiry map[Attribute]int
	limit  int
}

// NewTabuList returns a list holding at most limit attributes.
func NewTabuList(limit int) *TabuList {
	if limit < 1 {
		limit = 1
	}
	return &TabuList{expiry: make(map[Attribute]int), limit: limit}
}

// Len returns the number of stored entries, expired ones included.
func (t *TabuList) Len() int { return len(t.expiry) }

// IsTabu reports whether a is forbidden at iteration iter.
func (t *TabuList) IsTabu(a Attribute, iter int) bool {
	exp, ok := t.expiry[a]
	if !ok {
		return false
	}
	if iter > exp {
		delete(t.expiry, a)
		return false
	}
	return true
}

// Forbid makes a tabu for the tenure iterations following iter.
func (t *TabuList) Forbid(a Attribute, iter, tenure int) {
	exp := iter + tenure
	if cur, ok := t.expiry[a]; ok {
		if exp > cur {
			t.expiry[a] = exp
		}
		return
	}
	if len(t.expiry) >= t.limit {
		t.evict()
	}
	t.expiry[a] = exp
}

// evict drops the entry closest to expiry; ties go to the smallest attribute.
func (t *TabuList) evict() {
	var victim Attribute
	best := 0
	first := true
	for a, exp := range t.expiry {
		if first || exp < best || (exp == best && a.less(victim)) {
			victim, best, first = a, exp, false
		}
	}
	delete(t.expiry, victim)
}

// Aspiration reports whether a tabu candidate may be taken anyway: only when it
// strictly beats the best cost found so far.
func (t *TabuList) Aspiration(candidate, best float64) bool {
	return candidate < best-eps
}

// tenure draws base plus a uniform jitter in [-jitter, jitter], at least 1.
func tenure(rng *rand.Rand, base, jitter int) int {
	n := base
	if jitter > 0 {
		n += rng.Intn(2*jitter+1) - jitter
	}
	if n < 1 {
		n = 1
	}
	return n
}

// tabu reports whether any attribute m would introduce is forbidden.
func (t *TabuList) tabu(m *Move, iter int) bool {
	if m.Kind == MoveChain {
		for i := range m.Steps {
			if t.tabu(&m.Steps[i], iter) {
				return true
			}
		}
		return false
	}
	for _, a := range m.enter {
		if t.IsTabu(a, iter) {
			return true
		}
	}
	return false
}

// forbidMove records the attributes that would undo m.
func (t *TabuList) forbidMove(m *Move, iter, n int) {
	if m.Kind == MoveChain {
		for i := range m.Steps {
			t.forbidMove(&m.Steps[i], iter, n)
		}
		return
	}
	for _, a := range m.leave {
		t.Forbid(a, iter, n)
	}
}

type selection uint8

const (
	selNone selection = iota
	selFree
	selAspired
	selFallback
)

// selectMove picks the best admissible candidate under less. Admissible means
// not tabu, or tabu with aspires true. When nothing is admissible the fallback
// decides between the best tabu move and no move.
func selectMove(cands []Move, t *TabuList, iter int, less func(a, b *Move) bool, aspires func(*Move) bool, fb Fallback) (int, selection) {
	pick, how := -1, selNone
	fallback := -1
	for i := range cands {
		m := &cands[i]
		kind := selFree
		if t.tabu(m, iter) {
			if fallback < 0 || less(m, &cands[fallback]) {
				fallback = i
			}
			if !aspires(m) {
				continue
			}
			kind = selAspired
		}
		if pick < 0 || less(m, &cands[pick]) {
			pick, how = i, kind
		}
	}
	if pick >= 0 {
		return pick, how
	}
	if fallback >= 0 && fb == FallbackLeastDamaging {
		return fallback, selFallback
	}
	return -1, selNone
}
