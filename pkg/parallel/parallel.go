// Package parallel drives the parallelization techniques over the loops of
// a function.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-loop-parallel/internal/log"
	"github.com/l3aro/go-loop-parallel/pkg/cache"
	"github.com/l3aro/go-loop-parallel/pkg/dswp"
	"github.com/l3aro/go-loop-parallel/pkg/helix"
	"github.com/l3aro/go-loop-parallel/pkg/ir"
	"github.com/l3aro/go-loop-parallel/pkg/loopdep"
	"github.com/l3aro/go-loop-parallel/pkg/plan"
)

// Technique is a loop parallelization scheme.
type Technique interface {
	Name() string

	// CanApply reports whether the technique accepts the loop. A false
	// result carries the reason; it is a status, not an error.
	CanApply(info *loopdep.Info) (bool, string)

	// Apply builds the plan of an accepted loop.
	Apply(info *loopdep.Info) (*plan.Plan, error)
}

var (
	_ Technique = (*dswp.Technique)(nil)
	_ Technique = (*helix.Technique)(nil)
)

// ErrUnknownTechnique is returned for a technique name with no
// implementation.
var ErrUnknownTechnique = errors.New("unknown technique")

// Result is the outcome for one loop.
type Result struct {
	Loop   *ir.Loop
	Plan   *plan.Plan   // nil when declined or served from the cache
	Report *plan.Report // always set
	Cached bool

	// Declined maps each technique that refused the loop to its reason.
	Declined map[string]string
}

// Parallelized reports whether some technique produced a plan.
func (r *Result) Parallelized() bool { return r.Report.Parallelizable }

// Options configures a Parallelizer.
type Options struct {
	Techniques []Technique // tried in order; the first that applies wins
	Analysis   loopdep.Options
	Cache      *cache.Plans // optional

	// Fingerprint distinguishes cache entries computed with different
	// technique settings.
	Fingerprint string

	Logger log.Logger
}

// Parallelizer tries techniques on loops.
type Parallelizer struct {
	opts   Options
	logger log.Logger
}

// New creates a Parallelizer.
func New(opts Options) *Parallelizer {
	return &Parallelizer{opts: opts, logger: log.OrNop(opts.Logger)}
}

// Parallelize plans one loop of fn. Declining loops is not an error;
// invariant violations are logged and returned.
func (p *Parallelizer) Parallelize(fn *ir.Function, loop *ir.Loop) (*Result, error) {
	res := &Result{Loop: loop, Declined: make(map[string]string)}

	key := p.cacheKey(fn, loop)
	if p.opts.Cache != nil {
		if r, ok := p.opts.Cache.Get(key); ok {
			p.logger.Debug("plan served from cache", "loop", loop.Header.Name)
			res.Report = r
			res.Cached = true
			return res, nil
		}
	}

	// The function PDG is shared; each technique gets its own SCCDAG since
	// merging rewrites it.
	base := loopdep.Analyze(fn, loop, p.opts.Analysis)
	var reasons []string
	for i, tech := range p.opts.Techniques {
		info := base
		if i > 0 {
			info = loopdep.FromPDG(fn, loop, base.FunctionPDG, base.Accumulators)
		}

		ok, reason := tech.CanApply(info)
		if !ok {
			res.Declined[tech.Name()] = reason
			reasons = append(reasons, tech.Name()+": "+reason)
			continue
		}
		pl, err := tech.Apply(info)
		if err != nil {
			if errors.Is(err, plan.ErrInvariantViolation) {
				p.logger.Error("invariant violation", "technique", tech.Name(), "loop", loop.Header.Name, "error", err)
				return nil, fmt.Errorf("%s on %s: %w", tech.Name(), loop.Header.Name, err)
			}
			if errors.Is(err, plan.ErrNotParallelizable) {
				res.Declined[tech.Name()] = err.Error()
				reasons = append(reasons, tech.Name()+": "+err.Error())
				continue
			}
			return nil, fmt.Errorf("%s on %s: %w", tech.Name(), loop.Header.Name, err)
		}
		res.Plan = pl
		res.Report = plan.NewReport(pl)
		p.logger.Info("loop parallelized", "loop", loop.Header.Name, "technique", tech.Name())
		break
	}

	if res.Report == nil {
		reason := "no technique configured"
		if len(reasons) > 0 {
			reason = strings.Join(reasons, "; ")
		}
		res.Report = plan.Declined(loop, reason)
		p.logger.Info("loop not parallelized", "loop", loop.Header.Name, "reason", reason)
	}
	if p.opts.Cache != nil {
		p.opts.Cache.Put(key, res.Report)
	}
	return res, nil
}

// ParallelizeAll plans every loop concurrently, one goroutine per loop.
// Results are in the order of loops.
func (p *Parallelizer) ParallelizeAll(ctx context.Context, fn *ir.Function, loops []*ir.Loop) ([]*Result, error) {
	results := make([]*Result, len(loops))
	g, gctx := errgroup.WithContext(ctx)
	for i, loop := range loops {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Parallelize(fn, loop)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Parallelizer) cacheKey(fn *ir.Function, loop *ir.Loop) string {
	names := make([]string, len(p.opts.Techniques))
	for i, t := range p.opts.Techniques {
		names[i] = t.Name()
	}
	return cache.Key(fn.String(), loop.Header.Name, strings.Join(names, ","), p.opts.Fingerprint)
}

// TechniqueOptions are the per-technique settings Techniques builds from.
type TechniqueOptions struct {
	DSWP  dswp.Options
	HELIX helix.Options
}

// Techniques instantiates techniques by name, in order.
func Techniques(names []string, opts TechniqueOptions) ([]Technique, error) {
	out := make([]Technique, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(name) {
		case dswp.Name:
			out = append(out, dswp.New(opts.DSWP))
		case helix.Name:
			out = append(out, helix.New(opts.HELIX))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTechnique, name)
		}
	}
	return out, nil
}
