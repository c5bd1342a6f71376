package typegraph

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
)

// SolverLimits bounds query recursion so pathological binding graphs
// degrade to a conservative answer instead of running forever. Zero fields
// take the defaults.
type SolverLimits struct {
	// MaxDepth caps the recursive query depth. Exceeding it answers
	// "visible" conservatively.
	MaxDepth int
	// MaxPasses caps the fixpoint iterations for cyclic queries.
	MaxPasses int
	// MaxMemoEntries caps the cache size; once full, answers are still
	// computed but no longer stored.
	MaxMemoEntries int
}

// DefaultLimits returns the tuning used when the caller does not care.
func DefaultLimits() SolverLimits {
	return SolverLimits{
		MaxDepth:       300,
		MaxPasses:      4,
		MaxMemoEntries: 10000,
	}
}

func (l SolverLimits) withDefaults() SolverLimits {
	d := DefaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxPasses <= 0 {
		l.MaxPasses = d.MaxPasses
	}
	if l.MaxMemoEntries <= 0 {
		l.MaxMemoEntries = d.MaxMemoEntries
	}
	return l
}

// QueryCache memoizes query answers for the lifetime of one analysis run.
// It must not be shared between independent runs; give each its own.
type QueryCache struct {
	memo map[[32]byte]bool

	Hits   int
	Misses int
}

func NewQueryCache() *QueryCache {
	return &QueryCache{memo: make(map[[32]byte]bool, 256)}
}

func (c *QueryCache) lookup(k [32]byte) (bool, bool) {
	r, ok := c.memo[k]
	if ok {
		c.Hits++
	} else {
		c.Misses++
	}
	return r, ok
}

// Solver answers visibility queries for one control-flow graph. It is not
// safe for concurrent use; one solver per interpretation.
type Solver struct {
	graph  *cfg.Graph
	cache  *QueryCache
	limits SolverLimits

	inProgress map[[32]byte]bool
	tentative  map[[32]byte]bool

	// sawCycle is set while solving when a re-entrant query had to answer
	// provisionally; such results are refined by extra passes and not
	// memoized below the top level.
	sawCycle bool
	depthHit bool
}

// NewSolver creates a solver over g backed by the given cache.
func NewSolver(g *cfg.Graph, cache *QueryCache, limits SolverLimits) *Solver {
	if cache == nil {
		cache = NewQueryCache()
	}
	return &Solver{
		graph:      g,
		cache:      cache,
		limits:     limits.withDefaults(),
		inProgress: make(map[[32]byte]bool, 32),
		tentative:  make(map[[32]byte]bool, 32),
	}
}

// Query reports whether b can still hold at the given point, assuming the
// listed bindings hold. b is visible when a control-flow path exists from
// its creation point to at along which no unrelated reassignment of the
// same variable intervenes, and at least one of its source sets is itself
// satisfiable at its creation point.
//
// Cyclic dependencies (loop-carried bindings querying themselves) are
// answered provisionally false on re-entry and iterated to a fixpoint,
// bounded by MaxPasses. Depth exhaustion answers true: over-approximating
// visibility keeps results sound for error reporting (a value that might
// be there is reported as there).
func (s *Solver) Query(b *Binding, at *cfg.Block, assuming []*Binding) bool {
	key := queryKey(b, at, assuming)
	if r, ok := s.cache.lookup(key); ok {
		return r
	}

	// Tentative answers only live for one top-level query; stale ones from
	// a previous query could leak unrefined cycle guesses.
	clear(s.tentative)

	var result bool
	prev := false
	for pass := 0; pass < s.limits.MaxPasses; pass++ {
		s.sawCycle = false
		s.depthHit = false
		result = s.solve(b, at, assuming, 0)
		if !s.sawCycle && !s.depthHit {
			break
		}
		if pass > 0 && result == prev {
			break
		}
		prev = result
		// Carry tentative answers into the next pass so cyclic queries
		// refine instead of recomputing identically.
		s.tentative[key] = result
	}

	if !s.depthHit && len(s.cache.memo) < s.limits.MaxMemoEntries {
		s.cache.memo[key] = result
	}
	return result
}

func (s *Solver) solve(b *Binding, at *cfg.Block, assuming []*Binding, depth int) bool {
	if depth > s.limits.MaxDepth {
		// Conservative: too deep to prove anything either way.
		s.depthHit = true
		return true
	}
	for _, a := range assuming {
		if a == b {
			return true
		}
	}

	key := queryKey(b, at, assuming)
	if r, ok := s.cache.memo[key]; ok {
		return r
	}
	if s.inProgress[key] {
		s.sawCycle = true
		if t, ok := s.tentative[key]; ok {
			return t
		}
		return false
	}
	s.inProgress[key] = true
	defer delete(s.inProgress, key)

	result := s.sourcesHold(b, assuming, depth) && s.pathExists(b, at)
	s.tentative[key] = result
	return result
}

// sourcesHold checks the OR-of-ANDs source condition: some source set must
// have every member visible at b's own creation point, assuming b itself
// (which breaks trivial self-cycles without weakening the condition).
func (s *Solver) sourcesHold(b *Binding, assuming []*Binding, depth int) bool {
	if len(b.SourceSets) == 0 {
		return true
	}
	inner := append(append([]*Binding(nil), assuming...), b)
	for _, set := range b.SourceSets {
		ok := true
		for _, src := range set {
			if !s.solve(src, b.Point, inner, depth+1) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// pathExists walks the CFG from b's creation point looking for at, refusing
// to pass through blocks where an unrelated binding reassigns the same
// variable. The target block itself is never treated as blocking: a read
// there may precede the reassignment, and block granularity cannot order
// the two.
func (s *Solver) pathExists(b *Binding, at *cfg.Block) bool {
	if b.Point == at {
		return true
	}

	blocked := s.shadowBlocks(b)

	visited := map[*cfg.Block]bool{b.Point: true}
	queue := []*cfg.Block{b.Point}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range cur.Out {
			next := e.To
			if next == at {
				return true
			}
			if visited[next] || blocked[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return false
}

// shadowBlocks collects the creation points of sibling bindings that are
// not derived from b: passing one of those means the variable was
// reassigned to something unrelated and b no longer flows.
func (s *Solver) shadowBlocks(b *Binding) map[*cfg.Block]bool {
	blocked := make(map[*cfg.Block]bool)
	for _, sib := range b.Variable.Bindings {
		if sib == b || sib.Point == b.Point {
			continue
		}
		if !sib.derivedFrom(b, map[*Binding]bool{}) {
			blocked[sib.Point] = true
		}
	}
	return blocked
}

// VisibleValues returns the values of every binding of v visible at the
// given point, in binding creation order.
func (s *Solver) VisibleValues(v *Variable, at *cfg.Block) []abstract.Value {
	var out []abstract.Value
	for _, b := range v.Bindings {
		if s.Query(b, at, nil) {
			out = append(out, b.Value)
		}
	}
	return out
}

// VisibleBindings is VisibleValues over the bindings themselves.
func (s *Solver) VisibleBindings(v *Variable, at *cfg.Block) []*Binding {
	var out []*Binding
	for _, b := range v.Bindings {
		if s.Query(b, at, nil) {
			out = append(out, b)
		}
	}
	return out
}

// queryKey canonicalizes a query so semantically identical queries share
// one cache entry: assumption order is normalized by sorting binding IDs.
func queryKey(b *Binding, at *cfg.Block, assuming []*Binding) [32]byte {
	ids := make([]int, len(assuming))
	for i, a := range assuming {
		ids[i] = a.ID
	}
	sort.Ints(ids)

	buf := make([]byte, 0, 64)
	buf = fmt.Appendf(buf, "q:%d@%d|", b.ID, at.ID)
	for _, id := range ids {
		buf = fmt.Appendf(buf, "%d,", id)
	}
	return sha256.Sum256(buf)
}
