package infer

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	pytype "github.com/LaudateCorpus1/pytype"
	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
	"github.com/LaudateCorpus1/pytype/overlays"
	"github.com/LaudateCorpus1/pytype/typegraph"
	"github.com/speakeasy-api/openapi/sequencedmap"
)

// env is the execution environment of one top-level analysis run. It owns
// every cache of the run: the typegraph, the query cache, call summaries
// and the universe. Independent runs get independent envs, which is what
// makes concurrent analysis of separate modules safe without any locking
// in here.
type env struct {
	ctx  context.Context
	opts Options

	logger   Logger
	recorder *errorRecorder

	universe *abstract.Universe
	program  *typegraph.Program
	cache    *typegraph.QueryCache

	// builtins maps plain names (len, int, isinstance...) to their values.
	builtins *sequencedmap.Map[string, abstract.Value]
	// globals holds module-level variables, shared across every frame of
	// the run so nested functions can read them.
	globals *sequencedmap.Map[string, *typegraph.Variable]

	graphs map[*pytype.Code]*cfg.Graph
	// functionCache interns the callable wrapper per nested code object,
	// so re-executing a make_function yields the same value.
	functionCache map[*pytype.Code]*abstract.Function

	summaries map[summaryKey]*callSummary
	callDepth int

	steps    int
	limitHit bool

	// analyses, in first-interpretation order, feed the Solution.
	// Re-interpretation of the same (code, args) replaces the entry
	// in place so the last pass wins.
	analysisKeys  []summaryKey
	analysisByKey map[summaryKey]*analysis
}

// summaryKey identifies one call target by callable identity and the
// abstract shape of its arguments: calls with the same shape share one
// interpretation.
type summaryKey struct {
	code   *pytype.Code
	argsFP string
}

// callSummary memoizes the result of interpreting one summaryKey.
// While provisional, re-entrant calls for the same key are recursion and
// receive the current tentative return (Unsolvable at first), refined by
// the unroll loop in callFunction.
type callSummary struct {
	ret         abstract.Value
	provisional bool
	used        bool // a recursive call consumed the tentative return
}

func newEnv(ctx context.Context, opts Options) (*env, error) {
	logger := opts.Logger
	if logger == nil {
		if opts.LogLevel != "" {
			logger = NewLogger(ParseLogLevel(opts.LogLevel), nil)
		} else {
			logger = NewNoopLogger()
		}
	}

	e := &env{
		ctx:           ctx,
		opts:          opts,
		logger:        logger,
		recorder:      newErrorRecorder(),
		universe:      abstract.NewUniverse(),
		program:       typegraph.NewProgram(),
		cache:         typegraph.NewQueryCache(),
		builtins:      sequencedmap.New[string, abstract.Value](),
		globals:       sequencedmap.New[string, *typegraph.Variable](),
		graphs:        make(map[*pytype.Code]*cfg.Graph, 8),
		functionCache: make(map[*pytype.Code]*abstract.Function, 8),
		summaries:     make(map[summaryKey]*callSummary, 16),
		analysisByKey: make(map[summaryKey]*analysis, 8),
	}
	if err := e.installOverlays(); err != nil {
		return nil, err
	}
	return e, nil
}

// installOverlays merges the builtin overlay with the caller's extra
// declarations and wires every entry in: "cls.method" keys become class
// members, plain keys become builtin callables. Builtin classes are also
// reachable by name. YAML overlays resolve against this run's universe,
// so the classes they declare are real classes here.
func (e *env) installOverlays() error {
	u := e.universe
	sigs := overlays.Builtins(u)
	for _, doc := range e.opts.OverlayYAML {
		loaded, err := overlays.Load(bytes.NewReader(doc), u)
		if err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
		for qname, sig := range loaded {
			sigs[qname] = sig
		}
	}
	for qname, sig := range e.opts.Overlays {
		sigs[qname] = sig
	}

	qnames := make([]string, 0, len(sigs))
	for q := range sigs {
		qnames = append(qnames, q)
	}
	sort.Strings(qnames)

	for _, qname := range qnames {
		sig := sigs[qname]
		ext := &abstract.ExternalFunction{QName: qname, Sig: sig}
		if cls, method, ok := splitQualified(qname); ok {
			if c, found := u.ClassNamed(cls); found {
				c.SetMember(method, ext)
			} else {
				e.logger.Warnf("overlay %s targets unknown class %s, skipped", qname, cls)
			}
			continue
		}
		e.builtins.Set(qname, ext)
	}

	// Every class in the universe is reachable by name, the builtin
	// hierarchy and overlay-declared classes alike.
	for _, name := range u.ClassNames() {
		c, _ := u.ClassNamed(name)
		e.builtins.Set(name, c)
	}
	e.builtins.Set("None", u.None)
	e.builtins.Set("True", u.Instantiate(u.Bool))
	e.builtins.Set("False", u.Instantiate(u.Bool))
	return nil
}

func splitQualified(qname string) (cls, method string, ok bool) {
	i := strings.IndexByte(qname, '.')
	if i < 0 {
		return "", "", false
	}
	return qname[:i], qname[i+1:], true
}

func (e *env) graphFor(code *pytype.Code) (*cfg.Graph, error) {
	if g, ok := e.graphs[code]; ok {
		return g, nil
	}
	g, err := cfg.Build(code)
	if err != nil {
		return nil, &AbortError{Func: code.Name, Reason: "control-flow graph build failed", Err: err}
	}
	e.graphs[code] = g
	return g, nil
}

// spendFuel accounts for one block visit against the run budget and the
// context deadline. false means the run must wind down.
func (e *env) spendFuel(fn string, b *cfg.Block) bool {
	if err := e.ctx.Err(); err != nil {
		e.reportLimit(fn, b, fmt.Sprintf("analysis cancelled: %v", err))
		return false
	}
	e.steps++
	if e.opts.MaxSteps > 0 && e.steps > e.opts.MaxSteps {
		e.reportLimit(fn, b, fmt.Sprintf("fuel budget of %d block visits exhausted", e.opts.MaxSteps))
		return false
	}
	return true
}

func (e *env) reportLimit(fn string, b *cfg.Block, msg string) {
	e.limitHit = true
	e.recorder.record(Error{
		Kind:    LimitExceeded,
		Func:    fn,
		Block:   b,
		Message: msg,
	})
}

func (e *env) registerAnalysis(key summaryKey, a *analysis) {
	if _, ok := e.analysisByKey[key]; !ok {
		e.analysisKeys = append(e.analysisKeys, key)
	}
	e.analysisByKey[key] = a
}

func argsFingerprint(args []abstract.Value) string {
	var sb strings.Builder
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(abstract.Fingerprint(a))
	}
	return sb.String()
}
