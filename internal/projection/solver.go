package projection

import (
	"math"

	"github.com/jobrunner/travelmap/internal/domain"
)

// Solver defaults.
const (
	DefaultMaxIterations = 1000
	DefaultTolerance     = 1e-11
)

// Policy decides what an inverse projection does when the solver hits its
// iteration cap.
type Policy int

const (
	// PolicyBestEffort returns the last iterate. The non-convergence hook
	// still fires.
	PolicyBestEffort Policy = iota

	// PolicyStrict makes Invert return a *domain.ConvergenceError.
	PolicyStrict
)

// String returns the policy name.
func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "best_effort"
}

// ParsePolicy maps a configuration value onto a Policy.
func ParsePolicy(s string) Policy {
	if s == "strict" {
		return PolicyStrict
	}
	return PolicyBestEffort
}

// Solver runs Newton-Raphson iterations with an explicit cap.
//
// Forward projections have no error return, so for them the hook is the
// only signal of non-convergence.
type Solver struct {
	MaxIterations int
	Tolerance     float64
	Policy        Policy

	// OnNonConvergence is called every time a solve stops without meeting
	// the tolerance. It must be safe for concurrent use.
	OnNonConvergence func(*domain.ConvergenceError)
}

// DefaultSolver returns a best-effort solver with the default cap and
// tolerance.
func DefaultSolver() Solver {
	return Solver{
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		Policy:        PolicyBestEffort,
	}
}

// Solve finds a root of f starting from x0. fn returns f(x) and f'(x).
//
// The iteration stops when |step| < Tolerance, when the derivative
// vanishes, or after MaxIterations steps. In the last two cases the last
// iterate is returned together with a *domain.ConvergenceError, and the
// hook is invoked.
func (s Solver) Solve(name string, x0 float64, fn func(x float64) (fx, dfx float64)) (float64, *domain.ConvergenceError) {
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	x := x0
	step := math.Inf(1)
	i := 0
	for ; i < maxIter; i++ {
		fx, dfx := fn(x)
		if fx == 0 {
			return x, nil
		}
		if dfx == 0 || math.IsNaN(dfx) {
			break
		}
		step = fx / dfx
		if math.IsNaN(step) || math.IsInf(step, 0) {
			break
		}
		x -= step
		if math.Abs(step) < tol {
			return x, nil
		}
	}

	cerr := &domain.ConvergenceError{
		Projection: name,
		Iterations: i,
		Residual:   math.Abs(step),
		Estimate:   x,
	}
	if s.OnNonConvergence != nil {
		s.OnNonConvergence(cerr)
	}
	return x, cerr
}

// inverseErr converts a solve failure into the error an inverse projection
// returns under the solver's policy.
func (s Solver) inverseErr(cerr *domain.ConvergenceError) error {
	if cerr == nil || s.Policy != PolicyStrict {
		return nil
	}
	return cerr
}
