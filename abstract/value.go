// Package abstract implements the value lattice: the symbolic stand-ins for
// runtime values that the interpreter pushes around instead of concrete
// data. Values are immutable once created and structurally deduplicated
// through a Universe, so two values describing the same set of runtime
// values compare equal by fingerprint.
package abstract

import (
	"fmt"
	"strings"

	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/speakeasy-api/openapi/sequencedmap"
)

// Kind discriminates the Value variants.
type Kind int

const (
	KindInstance Kind = iota
	KindClass
	KindFunction
	KindBoundMethod
	KindExternal
	KindModule
	KindUnion
	KindTypeParam
	KindUnknown
	KindUnsolvable
)

func (k Kind) String() string {
	switch k {
	case KindInstance:
		return "instance"
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	case KindBoundMethod:
		return "bound_method"
	case KindExternal:
		return "external"
	case KindModule:
		return "module"
	case KindUnion:
		return "union"
	case KindTypeParam:
		return "type_param"
	case KindUnknown:
		return "unknown"
	case KindUnsolvable:
		return "unsolvable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is one abstract value. Implementations are immutable; anything
// that looks like mutation returns a new value instead.
type Value interface {
	Kind() Kind
	String() string

	// appendFingerprint writes the value's canonical form. Two values with
	// equal fingerprints represent the same set of runtime values.
	appendFingerprint(sb *strings.Builder)
}

// Fingerprint returns the canonical identity string for a value.
// Nil is the empty value set ("bottom").
func Fingerprint(v Value) string {
	if v == nil {
		return "bottom"
	}
	var sb strings.Builder
	v.appendFingerprint(&sb)
	return sb.String()
}

// Equal reports whether two values are structurally identical.
func Equal(a, b Value) bool {
	return Fingerprint(a) == Fingerprint(b)
}

// ----------------------------------------------------------------------------
// Class and Instance
// ----------------------------------------------------------------------------

// Class is a class object: a name, ordered bases, and declared members.
// Members use an ordered map so lookup failures, MRO walks and dumps are
// deterministic. Dynamic marks classes whose instances accept attributes
// that were never declared (the analyzed language allows injecting them at
// runtime); lookups that miss on such a class degrade to Unknown instead
// of failing.
type Class struct {
	id      int
	Name    string
	Bases   []*Class
	Members *sequencedmap.Map[string, Value]
	Dynamic bool

	mro    []*Class
	mroErr error
}

func (c *Class) Kind() Kind { return KindClass }

func (c *Class) String() string { return fmt.Sprintf("class %s", c.Name) }

func (c *Class) appendFingerprint(sb *strings.Builder) {
	fmt.Fprintf(sb, "class:%d:%s", c.id, c.Name)
}

// SetMember declares a member on the class. Classes are assembled once,
// before interpretation starts; this must not be called afterwards.
func (c *Class) SetMember(name string, v Value) {
	c.Members.Set(name, v)
}

// Instance is "some object of this class". Instances carry no per-object
// state; two instances of the same class are the same value and the
// Universe hands out one canonical copy per class.
type Instance struct {
	Of *Class
}

func (i *Instance) Kind() Kind { return KindInstance }

func (i *Instance) String() string { return i.Of.Name }

func (i *Instance) appendFingerprint(sb *strings.Builder) {
	fmt.Fprintf(sb, "instance:%d:%s", i.Of.id, i.Of.Name)
}

// ----------------------------------------------------------------------------
// Callables
// ----------------------------------------------------------------------------

// Function is a function defined inside the analyzed program; Code is its
// instruction stream, interpreted on demand when the function is called.
type Function struct {
	Name string
	Code *pytype.Code
	id   int
}

func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) String() string { return fmt.Sprintf("def %s", f.Name) }

func (f *Function) appendFingerprint(sb *strings.Builder) {
	fmt.Fprintf(sb, "function:%d:%s", f.id, f.Name)
}

// BoundMethod pairs a receiver with a callable found on its class.
type BoundMethod struct {
	Recv Value
	Fn   Value // *Function or *ExternalFunction
}

func (m *BoundMethod) Kind() Kind { return KindBoundMethod }

func (m *BoundMethod) String() string {
	return fmt.Sprintf("bound %s on %s", m.Fn, m.Recv)
}

func (m *BoundMethod) appendFingerprint(sb *strings.Builder) {
	sb.WriteString("bound:")
	m.Fn.appendFingerprint(sb)
	sb.WriteByte(':')
	m.Recv.appendFingerprint(sb)
}

// ExternalFunction is a callable whose body lives outside the analyzed
// program; its behavior comes entirely from an overlay signature.
type ExternalFunction struct {
	QName string // qualified name, e.g. "len" or "int.bit_length"
	Sig   *Signature
}

func (e *ExternalFunction) Kind() Kind { return KindExternal }

func (e *ExternalFunction) String() string { return e.QName }

func (e *ExternalFunction) appendFingerprint(sb *strings.Builder) {
	fmt.Fprintf(sb, "external:%s", e.QName)
}

// ----------------------------------------------------------------------------
// Module
// ----------------------------------------------------------------------------

// Module is an imported module surface: a named bag of members.
type Module struct {
	Name    string
	Members *sequencedmap.Map[string, Value]
}

func (m *Module) Kind() Kind { return KindModule }

func (m *Module) String() string { return fmt.Sprintf("module %s", m.Name) }

func (m *Module) appendFingerprint(sb *strings.Builder) {
	fmt.Fprintf(sb, "module:%s", m.Name)
}

// ----------------------------------------------------------------------------
// Union
// ----------------------------------------------------------------------------

// Union is a disjunction of possible values. Construct through MakeUnion,
// which flattens, deduplicates and simplifies; a raw Union literal with
// fewer than two options is malformed.
type Union struct {
	Options []Value
}

func (u *Union) Kind() Kind { return KindUnion }

func (u *Union) String() string {
	parts := make([]string, len(u.Options))
	for i, o := range u.Options {
		parts[i] = o.String()
	}
	return "Union[" + strings.Join(parts, ", ") + "]"
}

func (u *Union) appendFingerprint(sb *strings.Builder) {
	sb.WriteString("union{")
	for i, o := range u.Options {
		if i > 0 {
			sb.WriteByte('|')
		}
		o.appendFingerprint(sb)
	}
	sb.WriteByte('}')
}

// ----------------------------------------------------------------------------
// TypeParam
// ----------------------------------------------------------------------------

// TypeParam is an unbound type parameter in an overlay signature. It takes
// on a concrete value per call site through unification (see Unifier).
type TypeParam struct {
	Name string
}

func (t *TypeParam) Kind() Kind { return KindTypeParam }

func (t *TypeParam) String() string { return t.Name }

func (t *TypeParam) appendFingerprint(sb *strings.Builder) {
	fmt.Fprintf(sb, "typeparam:%s", t.Name)
}

// ----------------------------------------------------------------------------
// Unknown and Unsolvable
// ----------------------------------------------------------------------------

type unknownVal struct{}

func (unknownVal) Kind() Kind                            { return KindUnknown }
func (unknownVal) String() string                        { return "Unknown" }
func (unknownVal) appendFingerprint(sb *strings.Builder) { sb.WriteString("unknown") }

type unsolvableVal struct{}

func (unsolvableVal) Kind() Kind                            { return KindUnsolvable }
func (unsolvableVal) String() string                        { return "Unsolvable" }
func (unsolvableVal) appendFingerprint(sb *strings.Builder) { sb.WriteString("unsolvable") }

// Unknown is the absorbing "could be anything" value: analysis chose to be
// imprecise here. It is a legitimate member of the lattice.
var Unknown Value = unknownVal{}

// Unsolvable means analysis attempted to determine a value and failed.
// It marks downstream results as suspect and, unlike Unknown, is never
// absorbed by a Union with other values.
var Unsolvable Value = unsolvableVal{}

// IsUnknown reports whether v is the Unknown marker.
func IsUnknown(v Value) bool { return v != nil && v.Kind() == KindUnknown }

// IsUnsolvable reports whether v is the Unsolvable marker.
func IsUnsolvable(v Value) bool { return v != nil && v.Kind() == KindUnsolvable }
