// Package overlays declares the signatures of builtin and external
// callables: code the analyzer cannot see into but must still type.
// Declarations are plain Signature values, installed against a Universe;
// additional overlays can be loaded from YAML with Load.
package overlays

import (
	"github.com/LaudateCorpus1/pytype/abstract"
)

// Builtins returns the signature overlay for the builtin namespace of u.
// Keys are either plain names ("len") or class-qualified method names
// ("int.bit_length").
func Builtins(u *abstract.Universe) map[string]*abstract.Signature {
	intOf := u.Instantiate(u.Int)
	floatOf := u.Instantiate(u.Float)
	strOf := u.Instantiate(u.Str)
	boolOf := u.Instantiate(u.Bool)
	listOf := u.Instantiate(u.List)
	iterOf := u.Instantiate(u.Iterator)
	t := &abstract.TypeParam{Name: "T"}

	sig := func(name string, overloads ...abstract.Overload) *abstract.Signature {
		return &abstract.Signature{Name: name, Overloads: overloads}
	}
	ov := func(ret abstract.Value, params ...abstract.Value) abstract.Overload {
		return abstract.Overload{Params: params, Return: ret}
	}

	return map[string]*abstract.Signature{
		"len":        sig("len", ov(intOf, abstract.Unknown)),
		"abs":        sig("abs", ov(t, t)),
		"repr":       sig("repr", ov(strOf, abstract.Unknown)),
		"print":      sig("print", ov(u.None), ov(u.None, abstract.Unknown), ov(u.None, abstract.Unknown, abstract.Unknown)),
		"isinstance": sig("isinstance", ov(boolOf, abstract.Unknown, abstract.Unknown)),
		"getattr": sig("getattr",
			ov(abstract.Unknown, abstract.Unknown, strOf),
			ov(abstract.Unknown, abstract.Unknown, strOf, abstract.Unknown)),
		"type": sig("type", ov(abstract.Unknown, abstract.Unknown)),
		"range": sig("range",
			ov(iterOf, intOf),
			ov(iterOf, intOf, intOf),
			ov(iterOf, intOf, intOf, intOf)),
		"sorted": sig("sorted", ov(listOf, abstract.Unknown)),
		"iter":   sig("iter", ov(iterOf, abstract.Unknown)),

		"int.bit_length": sig("int.bit_length", ov(intOf, intOf)),
		"int.__abs__":    sig("int.__abs__", ov(intOf, intOf)),
		"float.is_integer": sig("float.is_integer",
			ov(boolOf, floatOf)),

		"str.upper":       sig("str.upper", ov(strOf, strOf)),
		"str.lower":       sig("str.lower", ov(strOf, strOf)),
		"str.strip":       sig("str.strip", ov(strOf, strOf), ov(strOf, strOf, strOf)),
		"str.split":       sig("str.split", ov(listOf, strOf), ov(listOf, strOf, strOf)),
		"str.join":        sig("str.join", ov(strOf, strOf, abstract.Unknown)),
		"str.__getitem__": sig("str.__getitem__", ov(strOf, strOf, intOf)),

		"list.append":      sig("list.append", ov(u.None, listOf, abstract.Unknown)),
		"list.pop":         sig("list.pop", ov(abstract.Unknown, listOf), ov(abstract.Unknown, listOf, intOf)),
		"list.__getitem__": sig("list.__getitem__", ov(abstract.Unknown, listOf, intOf)),

		"dict.get": sig("dict.get",
			ov(abstract.Unknown, u.Instantiate(u.Dict), abstract.Unknown),
			ov(abstract.Unknown, u.Instantiate(u.Dict), abstract.Unknown, abstract.Unknown)),
		"dict.__getitem__": sig("dict.__getitem__",
			ov(abstract.Unknown, u.Instantiate(u.Dict), abstract.Unknown)),

		"tuple.__getitem__": sig("tuple.__getitem__",
			ov(abstract.Unknown, u.Instantiate(u.Tuple), intOf)),
	}
}
