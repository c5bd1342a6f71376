package abstract

// UnionOptions bounds union construction.
type UnionOptions struct {
	// Limit is the maximum number of options a union may hold before it is
	// widened to Unknown. Zero means no limit.
	Limit int
}

// MakeUnion joins values into their least upper bound:
//
//   - nested unions are flattened
//   - duplicates (by fingerprint) collapse, so two instances of the same
//     class are one option
//   - Unknown absorbs every other option except Unsolvable
//   - Unsolvable is never absorbed: it marks a dead end, not a legitimate
//     value, and must stay visible to downstream consumers
//   - exceeding opts.Limit widens the non-Unsolvable part to Unknown
//
// nil inputs (bottom) are skipped. Joining nothing yields nil; a single
// survivor is returned unwrapped.
func MakeUnion(opts UnionOptions, vals ...Value) Value {
	flat := make([]Value, 0, len(vals))
	seen := make(map[string]bool, len(vals))
	sawUnknown := false
	sawUnsolvable := false

	var add func(v Value)
	add = func(v Value) {
		switch {
		case v == nil:
			return
		case v.Kind() == KindUnion:
			for _, o := range v.(*Union).Options {
				add(o)
			}
		case v.Kind() == KindUnknown:
			sawUnknown = true
		case v.Kind() == KindUnsolvable:
			sawUnsolvable = true
		default:
			fp := Fingerprint(v)
			if !seen[fp] {
				seen[fp] = true
				flat = append(flat, v)
			}
		}
	}
	for _, v := range vals {
		add(v)
	}

	if sawUnknown {
		// Unknown subsumes every concrete option.
		flat = flat[:0]
		flat = append(flat, Unknown)
	}
	if opts.Limit > 0 && len(flat) > opts.Limit {
		flat = flat[:0]
		flat = append(flat, Unknown)
	}
	if sawUnsolvable {
		flat = append(flat, Unsolvable)
	}

	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &Union{Options: flat}
	}
}

// Options returns the disjuncts of v: the union's options, or v itself.
func Options(v Value) []Value {
	if v == nil {
		return nil
	}
	if u, ok := v.(*Union); ok {
		return u.Options
	}
	return []Value{v}
}

// ContainsUnsolvable reports whether v is, or contains, the Unsolvable
// marker.
func ContainsUnsolvable(v Value) bool {
	for _, o := range Options(v) {
		if IsUnsolvable(o) {
			return true
		}
	}
	return false
}
