package overlays

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LaudateCorpus1/pytype/abstract"
)

// File is the YAML shape of an overlay document:
//
//	classes:
//	  Vec:
//	    bases: [object]
//	    dynamic: false
//	    methods:
//	      norm: "[Vec] -> float"
//	functions:
//	  hypot:
//	    - "[float, float] -> float"
//	    - "[int, int] -> float"
//
// Each signature line is "[param, param, ...] -> return". Parameters and
// returns are type patterns: a class name, "None", a union like
// "int | str", a single capital letter for a type parameter, or "object"
// for any value.
type File struct {
	Classes   map[string]ClassDecl `yaml:"classes"`
	Functions map[string]SigDecl   `yaml:"functions"`
}

// ClassDecl declares one class with its bases and method signatures.
// Methods receive the class instance as their first parameter.
type ClassDecl struct {
	Bases   []string           `yaml:"bases"`
	Dynamic bool               `yaml:"dynamic"`
	Methods map[string]SigDecl `yaml:"methods"`
}

// SigDecl accepts either a single signature string or a list of overload
// strings.
type SigDecl struct {
	Overloads []string
}

func (d *SigDecl) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		d.Overloads = []string{s}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&d.Overloads)
	default:
		return fmt.Errorf("signature must be a string or a list of strings (line %d)", node.Line)
	}
}

// Load reads an overlay document and resolves it against the universe:
// declared classes are created in u (bases before dependents), and the
// returned signature map is keyed the same way Builtins keys are. Method
// keys are "Class.method".
func Load(r io.Reader, u *abstract.Universe) (map[string]*abstract.Signature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse overlay: %w", err)
	}

	if err := declareClasses(u, f.Classes); err != nil {
		return nil, err
	}

	sigs := make(map[string]*abstract.Signature, len(f.Functions)+8)
	for _, name := range sortedKeys(f.Functions) {
		sig, err := parseSignature(u, name, f.Functions[name])
		if err != nil {
			return nil, err
		}
		sigs[name] = sig
	}
	for _, clsName := range sortedKeys(f.Classes) {
		decl := f.Classes[clsName]
		cls, ok := u.ClassNamed(clsName)
		if !ok {
			return nil, fmt.Errorf("class %s vanished during load", clsName)
		}
		cls.Dynamic = decl.Dynamic
		for _, method := range sortedKeys(decl.Methods) {
			qname := clsName + "." + method
			sig, err := parseSignature(u, qname, decl.Methods[method])
			if err != nil {
				return nil, err
			}
			sigs[qname] = sig
			cls.SetMember(method, &abstract.ExternalFunction{QName: qname, Sig: sig})
		}
	}
	return sigs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// declareClasses creates every declared class, resolving bases first,
// in name order so class identities are stable across runs. Cycles in
// the base graph are reported rather than looping.
func declareClasses(u *abstract.Universe, classes map[string]ClassDecl) error {
	state := make(map[string]int, len(classes)) // 0 new, 1 visiting, 2 done

	var declare func(name string) error
	declare = func(name string) error {
		if _, ok := u.ClassNamed(name); ok {
			return nil
		}
		decl, ok := classes[name]
		if !ok {
			return fmt.Errorf("unknown base class %s", name)
		}
		switch state[name] {
		case 1:
			return fmt.Errorf("class %s participates in an inheritance cycle", name)
		case 2:
			return nil
		}
		state[name] = 1

		bases := make([]*abstract.Class, 0, len(decl.Bases))
		for _, base := range decl.Bases {
			if err := declare(base); err != nil {
				return err
			}
			bc, ok := u.ClassNamed(base)
			if !ok {
				return fmt.Errorf("unknown base class %s", base)
			}
			bases = append(bases, bc)
		}
		u.NewClass(name, bases...)
		state[name] = 2
		return nil
	}

	for _, name := range sortedKeys(classes) {
		if err := declare(name); err != nil {
			return err
		}
	}
	return nil
}

func parseSignature(u *abstract.Universe, name string, decl SigDecl) (*abstract.Signature, error) {
	sig := &abstract.Signature{Name: name}
	for _, line := range decl.Overloads {
		ov, err := parseOverload(u, line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sig.Overloads = append(sig.Overloads, ov)
	}
	if len(sig.Overloads) == 0 {
		return nil, fmt.Errorf("%s: no overloads declared", name)
	}
	return sig, nil
}

func parseOverload(u *abstract.Universe, line string) (abstract.Overload, error) {
	var ov abstract.Overload

	params, ret, ok := strings.Cut(line, "->")
	if !ok {
		return ov, fmt.Errorf("missing -> in %q", line)
	}
	params = strings.TrimSpace(params)
	if !strings.HasPrefix(params, "[") || !strings.HasSuffix(params, "]") {
		return ov, fmt.Errorf("parameters must be bracketed in %q", line)
	}
	inner := strings.TrimSpace(params[1 : len(params)-1])
	if inner != "" {
		for _, p := range strings.Split(inner, ",") {
			v, err := parsePattern(u, p)
			if err != nil {
				return ov, err
			}
			ov.Params = append(ov.Params, v)
		}
	}

	v, err := parsePattern(u, ret)
	if err != nil {
		return ov, err
	}
	ov.Return = v
	return ov, nil
}

// parsePattern resolves one type pattern against the universe.
func parsePattern(u *abstract.Universe, s string) (abstract.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty type pattern")
	}

	if strings.Contains(s, "|") {
		var opts []abstract.Value
		for _, part := range strings.Split(s, "|") {
			v, err := parsePattern(u, part)
			if err != nil {
				return nil, err
			}
			opts = append(opts, v)
		}
		return &abstract.Union{Options: opts}, nil
	}

	switch s {
	case "None":
		return u.None, nil
	case "object":
		return abstract.Unknown, nil
	}
	if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
		return &abstract.TypeParam{Name: s}, nil
	}
	if cls, ok := u.ClassNamed(s); ok {
		return u.Instantiate(cls), nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}
