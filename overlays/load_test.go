package overlays

import (
	"strings"
	"testing"

	"github.com/LaudateCorpus1/pytype/abstract"
)

func TestBuiltinsCoverCore(t *testing.T) {
	u := abstract.NewUniverse()
	sigs := Builtins(u)

	for _, name := range []string{
		"len", "abs", "isinstance", "range",
		"int.bit_length", "str.upper", "list.append", "dict.get",
	} {
		if _, ok := sigs[name]; !ok {
			t.Errorf("builtin overlay is missing %s", name)
		}
	}

	// len returns int regardless of its argument.
	ret, merr := sigs["len"].Match([]abstract.Value{u.Instantiate(u.List)}, abstract.UnionOptions{})
	if merr != nil {
		t.Fatalf("len should accept a list: %v", merr)
	}
	if ret != u.Instantiate(u.Int) {
		t.Errorf("len must return int, got %s", ret)
	}

	// abs is the identity on its argument type.
	ret, merr = sigs["abs"].Match([]abstract.Value{u.Instantiate(u.Float)}, abstract.UnionOptions{})
	if merr != nil {
		t.Fatalf("abs should accept a float: %v", merr)
	}
	if ret != u.Instantiate(u.Float) {
		t.Errorf("abs(float) must return float, got %s", ret)
	}
}

func TestLoadFunctions(t *testing.T) {
	doc := `
functions:
  hypot: "[float, float] -> float"
  parse:
    - "[str] -> int"
    - "[bytes] -> int"
`
	u := abstract.NewUniverse()
	sigs, err := Load(strings.NewReader(doc), u)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hypot := sigs["hypot"]
	if hypot == nil || len(hypot.Overloads) != 1 {
		t.Fatalf("hypot should have 1 overload, got %+v", hypot)
	}
	ret, merr := hypot.Match([]abstract.Value{
		u.Instantiate(u.Float), u.Instantiate(u.Float),
	}, abstract.UnionOptions{})
	if merr != nil {
		t.Fatalf("hypot match failed: %v", merr)
	}
	if ret != u.Instantiate(u.Float) {
		t.Errorf("hypot must return float, got %s", ret)
	}

	parse := sigs["parse"]
	if parse == nil || len(parse.Overloads) != 2 {
		t.Fatalf("parse should have 2 overloads, got %+v", parse)
	}
	if _, merr := parse.Match([]abstract.Value{u.Instantiate(u.Bytes)}, abstract.UnionOptions{}); merr != nil {
		t.Errorf("parse should accept bytes through its second overload: %v", merr)
	}
}

func TestLoadClasses(t *testing.T) {
	doc := `
classes:
  Shape:
    methods:
      area: "[Shape] -> float"
  Circle:
    bases: [Shape]
    dynamic: true
functions:
  make_circle: "[float] -> Circle"
`
	u := abstract.NewUniverse()
	sigs, err := Load(strings.NewReader(doc), u)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	circle, ok := u.ClassNamed("Circle")
	if !ok {
		t.Fatal("Circle was not declared")
	}
	shape, _ := u.ClassNamed("Shape")
	if !abstract.Subclass(circle, shape) {
		t.Error("Circle must derive from Shape")
	}
	if !circle.Dynamic {
		t.Error("Circle must be dynamic")
	}

	// The declared method is installed on the class and binds on lookup.
	v, res := abstract.Attribute(u.Instantiate(circle), "area")
	if res != abstract.AttrFound {
		t.Fatalf("area lookup = %v, want found", res)
	}
	if _, ok := v.(*abstract.BoundMethod); !ok {
		t.Errorf("instance method lookup should bind, got %T", v)
	}

	if _, ok := sigs["Shape.area"]; !ok {
		t.Error("method signature should be exported under its qualified name")
	}

	ret, merr := sigs["make_circle"].Match([]abstract.Value{u.Instantiate(u.Float)}, abstract.UnionOptions{})
	if merr != nil {
		t.Fatalf("make_circle match failed: %v", merr)
	}
	if ret != u.Instantiate(circle) {
		t.Errorf("make_circle must return a Circle instance, got %s", ret)
	}
}

func TestLoadPatterns(t *testing.T) {
	doc := `
functions:
  maybe: "[int | str] -> int | None"
  ident: "[T] -> T"
  anything: "[object] -> object"
`
	u := abstract.NewUniverse()
	sigs, err := Load(strings.NewReader(doc), u)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Union parameter accepts both alternatives.
	for _, arg := range []abstract.Value{u.Instantiate(u.Int), u.Instantiate(u.Str)} {
		if _, merr := sigs["maybe"].Match([]abstract.Value{arg}, abstract.UnionOptions{}); merr != nil {
			t.Errorf("maybe should accept %s: %v", arg, merr)
		}
	}
	if _, merr := sigs["maybe"].Match([]abstract.Value{u.Instantiate(u.List)}, abstract.UnionOptions{}); merr == nil {
		t.Error("maybe should reject a list")
	}

	// Type parameter is the identity.
	ret, merr := sigs["ident"].Match([]abstract.Value{u.Instantiate(u.Str)}, abstract.UnionOptions{})
	if merr != nil {
		t.Fatalf("ident match failed: %v", merr)
	}
	if ret != u.Instantiate(u.Str) {
		t.Errorf("ident(str) must return str, got %s", ret)
	}

	// object patterns accept and return anything.
	ret, merr = sigs["anything"].Match([]abstract.Value{u.Instantiate(u.Dict)}, abstract.UnionOptions{})
	if merr != nil {
		t.Fatalf("anything match failed: %v", merr)
	}
	if !abstract.IsUnknown(ret) {
		t.Errorf("object return should be Unknown, got %s", ret)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown type", "functions:\n  f: \"[zilch] -> int\"\n", "unknown type"},
		{"missing arrow", "functions:\n  f: \"[int] int\"\n", "missing ->"},
		{"unbracketed params", "functions:\n  f: \"int -> int\"\n", "bracketed"},
		{"unknown base", "classes:\n  C:\n    bases: [Missing]\n", "unknown base class"},
		{"base cycle", "classes:\n  A:\n    bases: [B]\n  B:\n    bases: [A]\n", "cycle"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(c.doc), abstract.NewUniverse())
			if err == nil {
				t.Fatal("Load accepted a malformed document")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error %q should mention %q", err, c.want)
			}
		})
	}
}
