package infer

import "github.com/LaudateCorpus1/pytype/abstract"

// Options configures one analysis run. The numeric caps exist to guarantee
// termination on pathological input; every one of them degrades
// conservatively (Unknown values, "visible" answers, a LimitExceeded
// record) when hit, never a crash.
type Options struct {
	// UnionLimit is the maximum number of options a union may hold before
	// widening to Unknown (default: 10).
	UnionLimit int
	// MaxQueryDepth caps recursive visibility queries (default: 300).
	MaxQueryDepth int
	// MaxQueryPasses caps fixpoint iterations for cyclic queries
	// (default: 4).
	MaxQueryPasses int
	// MaxCallDepth caps nested function interpretation (default: 50).
	MaxCallDepth int
	// MaxLoopIterations caps re-interpretations of a loop body before the
	// still-growing variables are clamped to Unknown (default: 8).
	MaxLoopIterations int
	// MaxUnrollCount caps call-graph fixpoint refinements for recursive
	// calls (default: 3).
	MaxUnrollCount int
	// MaxSteps is the fuel budget in block visits across the whole run;
	// 0 means unlimited (default: 100000).
	MaxSteps int

	// StrictMode aborts on constructs the interpreter has no semantics
	// for; the default degrades them to Unknown with a warning.
	StrictMode bool

	// Overlays adds or overrides signature declarations for external
	// names, merged over the builtin overlay. Signature values must be
	// universe-independent patterns (Unknown, TypeParam, None via
	// OverlayYAML); declarations tied to classes belong in OverlayYAML.
	Overlays map[string]*abstract.Signature
	// OverlayYAML holds overlay documents in the overlays package's YAML
	// format, resolved against the run's own universe. Class declarations
	// in them become real classes visible to the analyzed code.
	OverlayYAML [][]byte

	// Logging configuration.
	LogLevel string // "error", "warn", "info", "debug" (default: "warn")
	Logger   Logger // overrides LogLevel when set
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		UnionLimit:        10,
		MaxQueryDepth:     300,
		MaxQueryPasses:    4,
		MaxCallDepth:      50,
		MaxLoopIterations: 8,
		MaxUnrollCount:    3,
		MaxSteps:          100000,
		StrictMode:        false,
		LogLevel:          "warn",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.UnionLimit <= 0 {
		o.UnionLimit = d.UnionLimit
	}
	if o.MaxQueryDepth <= 0 {
		o.MaxQueryDepth = d.MaxQueryDepth
	}
	if o.MaxQueryPasses <= 0 {
		o.MaxQueryPasses = d.MaxQueryPasses
	}
	if o.MaxCallDepth <= 0 {
		o.MaxCallDepth = d.MaxCallDepth
	}
	if o.MaxLoopIterations <= 0 {
		o.MaxLoopIterations = d.MaxLoopIterations
	}
	if o.MaxUnrollCount <= 0 {
		o.MaxUnrollCount = d.MaxUnrollCount
	}
	if o.LogLevel == "" {
		o.LogLevel = d.LogLevel
	}
	return o
}

func (o Options) unionOptions() abstract.UnionOptions {
	return abstract.UnionOptions{Limit: o.UnionLimit}
}
