package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	pytype "github.com/LaudateCorpus1/pytype"
)

// programFile is the YAML shape of an analyzable program: a module body
// plus named function bodies that make_function instructions reference
// through their code field.
//
//	name: example
//	filename: example.py
//	module:
//	  - {op: load_const, const: 1, line: 1}
//	  - {op: store_name, name: x, line: 1}
//	  - {op: load_const, const: null}
//	  - {op: return_value}
//	functions:
//	  double:
//	    params: [n]
//	    instrs:
//	      - {op: load_fast, name: n, line: 3}
//	      - {op: load_const, const: 2, line: 3}
//	      - {op: binary_op, binop: "*", line: 3}
//	      - {op: return_value, line: 3}
type programFile struct {
	Name      string              `yaml:"name"`
	Filename  string              `yaml:"filename"`
	Module    []instrDecl         `yaml:"module"`
	Functions map[string]codeDecl `yaml:"functions"`
}

type codeDecl struct {
	Params   []string      `yaml:"params"`
	Instrs   []instrDecl   `yaml:"instrs"`
	Handlers []handlerDecl `yaml:"handlers"`
}

type instrDecl struct {
	Op     string `yaml:"op"`
	Arg    int    `yaml:"arg"`
	Target int    `yaml:"target"`
	Name   string `yaml:"name"`
	Const  any    `yaml:"const"`
	Code   string `yaml:"code"`  // function name, for make_function
	BinOp  string `yaml:"binop"` // "+", "-", "*", "/", "//", "%"
	CmpOp  string `yaml:"cmpop"` // "==", "!=", "<", "<=", ">", ">=", "is", "in"
	Line   int    `yaml:"line"`
	Col    int    `yaml:"col"`
}

type handlerDecl struct {
	Start  int `yaml:"start"`
	End    int `yaml:"end"`
	Target int `yaml:"target"`
}

// loadProgram reads a program file and assembles its code objects,
// resolving make_function code references between them.
func loadProgram(path string) (*pytype.Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf programFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if pf.Name == "" {
		pf.Name = "<module>"
	}

	funcs := make(map[string]*pytype.Code, len(pf.Functions))
	for name, decl := range pf.Functions {
		funcs[name] = &pytype.Code{
			Name:     name,
			Filename: pf.Filename,
			Params:   decl.Params,
		}
	}
	for name, decl := range pf.Functions {
		if err := assemble(funcs[name], decl.Instrs, decl.Handlers, funcs); err != nil {
			return nil, fmt.Errorf("function %s: %w", name, err)
		}
	}

	module := &pytype.Code{Name: pf.Name, Filename: pf.Filename}
	if err := assemble(module, pf.Module, nil, funcs); err != nil {
		return nil, fmt.Errorf("module body: %w", err)
	}
	return module, nil
}

func assemble(code *pytype.Code, instrs []instrDecl, handlers []handlerDecl, funcs map[string]*pytype.Code) error {
	for i, d := range instrs {
		op, ok := pytype.ParseOpcode(d.Op)
		if !ok {
			return fmt.Errorf("instruction %d: unknown opcode %q", i, d.Op)
		}
		in := pytype.Instr{
			Op:     op,
			Arg:    d.Arg,
			Target: d.Target,
			Name:   d.Name,
			Const:  normalizeConst(d.Const),
			Line:   d.Line,
			Col:    d.Col,
		}
		switch op {
		case pytype.OpMakeFunction:
			fn, ok := funcs[d.Code]
			if !ok {
				return fmt.Errorf("instruction %d: make_function references unknown function %q", i, d.Code)
			}
			in.Const = fn
		case pytype.OpBinaryOp:
			b, err := parseBinOp(d.BinOp)
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			in.Arg = int(b)
		case pytype.OpCompareOp:
			c, err := parseCmpOp(d.CmpOp)
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			in.Arg = int(c)
		}
		code.Instrs = append(code.Instrs, in)
	}
	for _, h := range handlers {
		code.Handlers = append(code.Handlers, pytype.ExceptEntry{Start: h.Start, End: h.End, Target: h.Target})
	}
	return nil
}

// normalizeConst maps YAML scalar types onto the constant types the
// instruction model expects: YAML ints decode as int, the model carries
// int64.
func normalizeConst(c any) any {
	switch v := c.(type) {
	case int:
		return int64(v)
	default:
		return c
	}
}

func parseBinOp(s string) (pytype.BinOp, error) {
	switch s {
	case "+":
		return pytype.BinAdd, nil
	case "-":
		return pytype.BinSub, nil
	case "*":
		return pytype.BinMul, nil
	case "/":
		return pytype.BinDiv, nil
	case "//":
		return pytype.BinFloorDiv, nil
	case "%":
		return pytype.BinMod, nil
	}
	return 0, fmt.Errorf("unknown binary operator %q", s)
}

func parseCmpOp(s string) (pytype.CmpOp, error) {
	switch s {
	case "==":
		return pytype.CmpEq, nil
	case "!=":
		return pytype.CmpNe, nil
	case "<":
		return pytype.CmpLt, nil
	case "<=":
		return pytype.CmpLe, nil
	case ">":
		return pytype.CmpGt, nil
	case ">=":
		return pytype.CmpGe, nil
	case "is":
		return pytype.CmpIs, nil
	case "in":
		return pytype.CmpIn, nil
	}
	return 0, fmt.Errorf("unknown comparison operator %q", s)
}
