package abstract

import (
	"sort"

	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/speakeasy-api/openapi/sequencedmap"
)

// Universe owns every class and interned value of one analysis run. It is
// an explicit object, never a process-wide singleton, so independent runs
// can proceed concurrently each with their own Universe.
type Universe struct {
	nextClassID int
	nextFuncID  int

	classesByName map[string]*Class
	instances     map[*Class]*Instance

	// Builtin classes, created once per Universe.
	Object   *Class
	Int      *Class
	Float    *Class
	Str      *Class
	Bool     *Class
	Bytes    *Class
	List     *Class
	Dict     *Class
	Tuple    *Class
	Set      *Class
	Iterator *Class
	NoneType *Class

	// None is the canonical instance of NoneType.
	None Value
}

// NewUniverse creates a Universe with the builtin class hierarchy wired:
// everything derives from Object, bool derives from int (as in the
// analyzed language).
func NewUniverse() *Universe {
	u := &Universe{
		classesByName: make(map[string]*Class, 32),
		instances:     make(map[*Class]*Instance, 32),
	}

	u.Object = u.NewClass("object")
	u.Int = u.NewClass("int", u.Object)
	u.Float = u.NewClass("float", u.Object)
	u.Str = u.NewClass("str", u.Object)
	u.Bool = u.NewClass("bool", u.Int)
	u.Bytes = u.NewClass("bytes", u.Object)
	u.List = u.NewClass("list", u.Object)
	u.Dict = u.NewClass("dict", u.Object)
	u.Tuple = u.NewClass("tuple", u.Object)
	u.Set = u.NewClass("set", u.Object)
	u.Iterator = u.NewClass("iterator", u.Object)
	u.NoneType = u.NewClass("NoneType", u.Object)

	u.None = u.Instantiate(u.NoneType)
	return u
}

// NewClass creates a class with the given bases (Object implied when none
// are given, except for Object itself). Class identity is the pointer; the
// id only feeds fingerprints.
func (u *Universe) NewClass(name string, bases ...*Class) *Class {
	c := &Class{
		id:      u.nextClassID,
		Name:    name,
		Bases:   bases,
		Members: sequencedmap.New[string, Value](),
	}
	u.nextClassID++
	if len(bases) == 0 && u.Object != nil {
		c.Bases = []*Class{u.Object}
	}
	u.classesByName[name] = c
	return c
}

// ClassNamed looks up a class created in this Universe by name.
func (u *Universe) ClassNamed(name string) (*Class, bool) {
	c, ok := u.classesByName[name]
	return c, ok
}

// ClassNames returns every class name in this Universe, sorted.
func (u *Universe) ClassNames() []string {
	names := make([]string, 0, len(u.classesByName))
	for name := range u.classesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFunction wraps a code object as a callable value.
func (u *Universe) NewFunction(name string, code *pytype.Code) *Function {
	f := &Function{Name: name, Code: code, id: u.nextFuncID}
	u.nextFuncID++
	return f
}

// NewModule creates an empty module surface.
func (u *Universe) NewModule(name string) *Module {
	return &Module{Name: name, Members: sequencedmap.New[string, Value]()}
}

// Instantiate returns the canonical "some instance of c" value.
func (u *Universe) Instantiate(c *Class) Value {
	if inst, ok := u.instances[c]; ok {
		return inst
	}
	inst := &Instance{Of: c}
	u.instances[c] = inst
	return inst
}

// ConstValue maps a constant operand from the instruction stream to the
// abstract value of its class. Unrecognized constant kinds degrade to
// Unknown rather than failing: the stream already passed validation, so an
// odd constant is an imprecision, not a malformation.
func (u *Universe) ConstValue(c any) Value {
	switch c.(type) {
	case nil:
		return u.None
	case bool:
		return u.Instantiate(u.Bool)
	case int, int64:
		return u.Instantiate(u.Int)
	case float64:
		return u.Instantiate(u.Float)
	case string:
		return u.Instantiate(u.Str)
	case []byte:
		return u.Instantiate(u.Bytes)
	default:
		return Unknown
	}
}
