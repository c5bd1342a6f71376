package abstract

import (
	"fmt"
	"strings"
)

// Signature is the abstract behavior of a callable whose body is not in
// the analyzed program. Overloads are tried in declaration order; the
// first one whose parameters accept the call's arguments wins.
type Signature struct {
	Name      string
	Overloads []Overload
}

// Overload is one parameter pattern with its return value. Params and
// Return may contain TypeParam values; a TypeParam bound by the arguments
// is substituted into the return value per call site.
type Overload struct {
	Params []Value
	Return Value
}

func (s *Signature) String() string {
	if s == nil {
		return "<nil signature>"
	}
	parts := make([]string, len(s.Overloads))
	for i, o := range s.Overloads {
		ps := make([]string, len(o.Params))
		for j, p := range o.Params {
			ps[j] = p.String()
		}
		parts[i] = fmt.Sprintf("(%s) -> %s", strings.Join(ps, ", "), o.Return)
	}
	return s.Name + ": " + strings.Join(parts, " | ")
}

// MatchFailure classifies why no overload accepted a call.
type MatchFailure int

const (
	// MatchArity: no overload has the right parameter count.
	MatchArity MatchFailure = iota
	// MatchType: an overload with the right count exists, but at least one
	// argument (or union member of one) is incompatible with it.
	MatchType
)

// MatchError carries the failing argument position and values for
// diagnostics.
type MatchError struct {
	Failure  MatchFailure
	Sig      *Signature
	ArgIndex int   // for MatchType: offending argument position
	Arg      Value // for MatchType: offending argument value
	Got      int   // for MatchArity: argument count supplied
}

func (e *MatchError) Error() string {
	switch e.Failure {
	case MatchArity:
		return fmt.Sprintf("%s: wrong argument count (got %d)", e.Sig.Name, e.Got)
	default:
		return fmt.Sprintf("%s: argument %d has incompatible value %s", e.Sig.Name, e.ArgIndex+1, e.Arg)
	}
}

// Match finds the first overload accepting args and computes its return
// value with type parameters substituted. Unknown and Unsolvable arguments
// match any parameter. A union argument matches when at least one of its
// options does; options that do not are the caller's IncompatibleUnion
// diagnostics, surfaced through MatchError when every option fails.
func (s *Signature) Match(args []Value, opts UnionOptions) (Value, *MatchError) {
	arityOK := false
	var firstBad *MatchError

	for _, ov := range s.Overloads {
		if len(ov.Params) != len(args) {
			continue
		}
		arityOK = true

		uni := NewUnifier()
		bad := -1
		for i, p := range ov.Params {
			if !matchArg(args[i], p, uni) {
				bad = i
				break
			}
		}
		if bad >= 0 {
			if firstBad == nil {
				firstBad = &MatchError{Failure: MatchType, Sig: s, ArgIndex: bad, Arg: args[bad]}
			}
			continue
		}
		return uni.Substitute(ov.Return, opts), nil
	}

	if !arityOK {
		return nil, &MatchError{Failure: MatchArity, Sig: s, Got: len(args)}
	}
	return nil, firstBad
}

// matchArg reports whether one argument is acceptable for one parameter
// pattern, recording type-parameter observations on the way.
func matchArg(arg, param Value, uni *Unifier) bool {
	if arg == nil {
		return false
	}
	// Imprecise arguments are compatible with anything.
	if IsUnknown(arg) || IsUnsolvable(arg) {
		if tp, ok := param.(*TypeParam); ok {
			uni.Observe(tp.Name, Unknown)
		}
		return true
	}

	switch p := param.(type) {
	case nil:
		return true
	case unknownVal:
		return true
	case *TypeParam:
		uni.Observe(p.Name, arg)
		return true
	case *Instance:
		// Parameter "an instance of class P": accept instances of P or a
		// subclass. A union argument is acceptable when any option is.
		for _, o := range Options(arg) {
			if inst, ok := o.(*Instance); ok && isSubclass(inst.Of, p.Of) {
				return true
			}
		}
		return false
	case *Class:
		// Parameter "the class P itself" (e.g. isinstance's second arg):
		// accept any class value.
		for _, o := range Options(arg) {
			if o.Kind() == KindClass {
				return true
			}
		}
		return false
	case *Union:
		for _, alt := range p.Options {
			if matchArg(arg, alt, uni) {
				return true
			}
		}
		return false
	default:
		return Equal(arg, param)
	}
}

// Subclass reports whether c is of, or derives from of, per c's MRO. A
// class whose hierarchy fails to linearize is never considered a
// subclass of anything but itself.
func Subclass(c, of *Class) bool {
	if c == of {
		return true
	}
	mro, err := Linearize(c)
	if err != nil {
		return false
	}
	for _, m := range mro {
		if m == of {
			return true
		}
	}
	return false
}

func isSubclass(c, of *Class) bool { return Subclass(c, of) }

// ----------------------------------------------------------------------------
// Type-parameter unification
// ----------------------------------------------------------------------------

// Unifier accumulates the concrete values observed for each type parameter
// at one call site and resolves each parameter to the most specific value
// consistent with all observations. Observations that cannot be reconciled
// resolve to Unknown rather than erroring.
type Unifier struct {
	observed map[string][]Value
	order    []string
}

func NewUnifier() *Unifier {
	return &Unifier{observed: make(map[string][]Value, 2)}
}

// Observe records that the named parameter was used with v.
func (u *Unifier) Observe(name string, v Value) {
	if _, ok := u.observed[name]; !ok {
		u.order = append(u.order, name)
	}
	u.observed[name] = append(u.observed[name], v)
}

// Resolve returns the unified value for one parameter: the join of every
// observation. The join of instance-like observations is their union (the
// most specific value every use conforms to); any observation that is not
// instance-like conflicts with the rest and collapses the parameter to
// Unknown.
func (u *Unifier) Resolve(name string, opts UnionOptions) Value {
	obs := u.observed[name]
	if len(obs) == 0 {
		return Unknown
	}
	for _, v := range obs {
		for _, o := range Options(v) {
			switch o.Kind() {
			case KindInstance, KindUnknown, KindUnsolvable:
			default:
				return Unknown
			}
		}
	}
	return MakeUnion(opts, obs...)
}

// Substitute replaces every TypeParam inside v with its resolved value.
func (u *Unifier) Substitute(v Value, opts UnionOptions) Value {
	switch t := v.(type) {
	case *TypeParam:
		return u.Resolve(t.Name, opts)
	case *Union:
		out := make([]Value, len(t.Options))
		for i, o := range t.Options {
			out[i] = u.Substitute(o, opts)
		}
		return MakeUnion(opts, out...)
	default:
		return v
	}
}
