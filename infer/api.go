package infer

import (
	"context"
	"fmt"

	pytype "github.com/LaudateCorpus1/pytype"
)

// Result is the outcome of one analysis run.
type Result struct {
	Solution *Solution
	// Errors are the diagnostics recorded during interpretation,
	// deduplicated, in discovery order (deterministic for a given input).
	Errors []Error
	// LimitHit is set when any analysis budget was exhausted and parts of
	// the solution were degraded to Unknown or Unsolvable.
	LimitHit bool
	// CacheHits and CacheMisses report reachability query cache traffic.
	CacheHits, CacheMisses int
}

// Run analyzes a module's code object and infers the types of every
// name it defines. The code is validated and interpreted abstractly;
// diagnostics are collected on the Result rather than aborting, and an
// error is returned only when the bytecode itself is malformed or an
// internal invariant breaks.
//
// Example:
//
//	code := &pytype.Code{...}
//	result, err := infer.Run(context.Background(), code)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	module := result.Solution.Funcs[0]
//	x, _ := module.TypeOf("x")
//	fmt.Printf("x: %s\n", x)
func Run(ctx context.Context, code *pytype.Code, opts ...Options) (*Result, error) {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	return Exec(ctx, code, opt)
}

// Exec is the non-variadic core of Run: it validates and interprets code
// under a fully specified Options value.
func Exec(ctx context.Context, code *pytype.Code, opt Options) (*Result, error) {
	opt = opt.withDefaults()

	if code == nil {
		return nil, fmt.Errorf("code cannot be nil")
	}
	if err := pytype.Validate(code); err != nil {
		return nil, fmt.Errorf("invalid code: %w", err)
	}

	e, err := newEnv(ctx, opt)
	if err != nil {
		return nil, err
	}

	moduleKey := summaryKey{code: code}
	ret, err := e.analyzeCode(moduleKey, code.Name, code, nil)
	if err != nil {
		return nil, err
	}

	sol := &Solution{}
	for _, key := range e.analysisKeys {
		a := e.analysisByKey[key]
		r := ret
		if key != moduleKey {
			if s, ok := e.summaries[key]; ok {
				r = s.ret
			} else {
				r = nil
			}
		}
		sol.Funcs = append(sol.Funcs, a.solution(r))
	}

	e.logger.With(map[string]any{
		"funcs":  len(sol.Funcs),
		"errors": len(e.recorder.errors),
		"steps":  e.steps,
	}).Debugf("analysis complete")

	return &Result{
		Solution:    sol,
		Errors:      e.recorder.errors,
		LimitHit:    e.limitHit,
		CacheHits:   e.cache.Hits,
		CacheMisses: e.cache.Misses,
	}, nil
}
