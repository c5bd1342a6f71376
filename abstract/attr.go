package abstract

// AttrResult reports how an attribute lookup went.
type AttrResult int

const (
	// AttrFound means the name resolved to a declared member.
	AttrFound AttrResult = iota
	// AttrDynamic means the name was not declared but the class allows
	// dynamic attributes; the result is Unknown.
	AttrDynamic
	// AttrMissing means the name cannot exist on the value.
	AttrMissing
)

// Attribute resolves name on a single (non-union) value. The first match
// along the MRO wins; an MRO that fails to linearize resolves nothing and
// yields Unsolvable. Callers resolving an attribute on a Union should walk
// its Options themselves so each failing member can be reported separately.
func Attribute(v Value, name string) (Value, AttrResult) {
	switch t := v.(type) {
	case *Class:
		return classAttr(t, name, nil)
	case *Instance:
		return classAttr(t.Of, name, t)
	case *Module:
		if m, ok := t.Members.Get(name); ok {
			return m, AttrFound
		}
		return nil, AttrMissing
	case *Union:
		// Combined view: succeed if any member does, keep per-member
		// imprecision. Error reporting per member is the caller's job.
		results := make([]Value, 0, len(t.Options))
		any := false
		for _, o := range t.Options {
			r, res := Attribute(o, name)
			if res == AttrMissing {
				results = append(results, Unsolvable)
				continue
			}
			any = true
			results = append(results, r)
		}
		if !any {
			return nil, AttrMissing
		}
		return MakeUnion(UnionOptions{}, results...), AttrFound
	case *TypeParam:
		return Unknown, AttrDynamic
	case unknownVal:
		return Unknown, AttrDynamic
	case unsolvableVal:
		return Unsolvable, AttrDynamic
	default:
		return nil, AttrMissing
	}
}

// classAttr walks the MRO. When recv is non-nil the lookup is on an
// instance, and callables bind the receiver.
func classAttr(c *Class, name string, recv *Instance) (Value, AttrResult) {
	mro, err := Linearize(c)
	if err != nil {
		// A class whose hierarchy cannot be linearized resolves nothing
		// reliably; give up on this lookup rather than guessing a base.
		return Unsolvable, AttrDynamic
	}
	for _, cls := range mro {
		m, ok := cls.Members.Get(name)
		if !ok {
			continue
		}
		if recv != nil {
			switch m.Kind() {
			case KindFunction, KindExternal:
				return &BoundMethod{Recv: recv, Fn: m}, AttrFound
			}
		}
		return m, AttrFound
	}
	if classAllowsDynamic(mro) {
		return Unknown, AttrDynamic
	}
	return nil, AttrMissing
}

func classAllowsDynamic(mro []*Class) bool {
	for _, cls := range mro {
		if cls.Dynamic {
			return true
		}
	}
	return false
}
