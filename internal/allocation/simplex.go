package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// SimplexSolver adapts gonum's simplex implementation to the Solver
// interface. gonum's Simplex is not cancellable mid-pivot, so the time
// limit is enforced by racing the solve against the deadline; a solve that
// overruns keeps its goroutine until it finishes, but the caller gets
// SolveTimeout within the limit.
type SimplexSolver struct {
	// Tol is passed through to lp.Simplex; zero selects gonum's default.
	Tol float64
}

// NewSimplexSolver creates the default gonum-backed solver.
func NewSimplexSolver() *SimplexSolver {
	return &SimplexSolver{}
}

type simplexOutcome struct {
	objective float64
	values    []float64
	err       error
}

// Solve converts the maximization problem into gonum's standard form and
// runs the simplex method under the problem's time limit.
func (s *SimplexSolver) Solve(ctx context.Context, p Problem) (*Solution, error) {
	n := len(p.Objective)
	if n == 0 {
		return nil, fmt.Errorf("empty objective")
	}

	// gonum minimizes, so negate the objective.
	c := make([]float64, n)
	for i, v := range p.Objective {
		c[i] = -v
	}

	// Inequality rows: the caller's Le rows first (their slacks are
	// reported back), then variable bounds expressed as rows.
	g := make([][]float64, 0, len(p.LeMatrix)+2*n)
	h := make([]float64, 0, len(p.LeBounds)+2*n)
	for r, row := range p.LeMatrix {
		g = append(g, row)
		h = append(h, p.LeBounds[r])
	}
	for i := 0; i < n; i++ {
		if len(p.Upper) > i && !math.IsInf(p.Upper[i], 1) {
			row := make([]float64, n)
			row[i] = 1
			g = append(g, row)
			h = append(h, p.Upper[i])
		}
		if len(p.Lower) > i && p.Lower[i] > 0 {
			row := make([]float64, n)
			row[i] = -1
			g = append(g, row)
			h = append(h, -p.Lower[i])
		}
	}

	if len(p.EqMatrix) == 0 {
		return nil, fmt.Errorf("at least one equality constraint is required")
	}
	// Convert requires a non-empty inequality block; a zero row with a zero
	// bound is always satisfied and pads the block when none exist.
	if len(g) == 0 {
		g = append(g, make([]float64, n))
		h = append(h, 0)
	}

	cStd, aStd, bStd := lp.Convert(c, denseFromRows(g, n), h, denseFromRows(p.EqMatrix, n), p.EqBounds)

	limit := p.TimeLimit
	if limit <= 0 {
		limit = DefaultLPTimeLimit
	}
	solveCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	outcome := make(chan simplexOutcome, 1)
	go func() {
		obj, x, err := lp.Simplex(cStd, aStd, bStd, s.Tol, nil)
		outcome <- simplexOutcome{objective: obj, values: x, err: err}
	}()

	select {
	case <-solveCtx.Done():
		return &Solution{Status: SolveTimeout}, nil
	case out := <-outcome:
		if out.err != nil {
			switch {
			case errors.Is(out.err, lp.ErrInfeasible):
				return &Solution{Status: SolveInfeasible}, nil
			case errors.Is(out.err, lp.ErrUnbounded):
				return &Solution{Status: SolveUnbounded}, nil
			default:
				return nil, fmt.Errorf("simplex solve failed: %w", out.err)
			}
		}

		// lp.Convert splits each free variable x into x⁺ - x⁻ and appends
		// one slack per inequality row: the standard-form vector is laid
		// out [x⁺ (n), x⁻ (n), slacks (len(g))].
		values := make([]float64, n)
		for i := 0; i < n; i++ {
			values[i] = out.values[i] - out.values[n+i]
		}
		slacks := make([]float64, len(p.LeMatrix))
		for r := range p.LeMatrix {
			slacks[r] = out.values[2*n+r]
		}

		return &Solution{
			Status:    SolveOptimal,
			Values:    values,
			Objective: -out.objective,
			Slacks:    slacks,
		}, nil
	}
}

func denseFromRows(rows [][]float64, cols int) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	d := mat.NewDense(len(rows), cols, nil)
	for r, row := range rows {
		d.SetRow(r, row)
	}
	return d
}
