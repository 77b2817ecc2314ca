package allocation

import (
	"context"
	"time"
)

// SolveStatus is the uniform status a solver adapter reports. All
// backend-specific error mapping happens inside the adapter so the engine
// only ever branches on these values.
type SolveStatus string

const (
	SolveOptimal     SolveStatus = "optimal"
	SolveInfeasible  SolveStatus = "infeasible"
	SolveUnbounded   SolveStatus = "unbounded"
	SolveTimeout     SolveStatus = "timeout"
	SolveError       SolveStatus = "error"
	SolveUnavailable SolveStatus = "unavailable"
)

// Problem is a linear program in maximization form:
//
//	maximize  Objective · x
//	s.t.      EqMatrix · x  == EqBounds
//	          LeMatrix · x  <= LeBounds
//	          Lower <= x <= Upper   (Upper entry of +Inf means unbounded)
//
// TimeLimit bounds the solve; adapters must honor it.
type Problem struct {
	Objective []float64
	EqMatrix  [][]float64
	EqBounds  []float64
	LeMatrix  [][]float64
	LeBounds  []float64
	Lower     []float64
	Upper     []float64
	TimeLimit time.Duration
}

// Solution is the uniform solve outcome.
type Solution struct {
	Status    SolveStatus
	Values    []float64
	Objective float64

	// Slacks holds the slack per LeMatrix row at the optimum.
	Slacks []float64
}

// Solver is the narrow interface the engine uses for the cost-constrained
// strategy. Implementations must be safe for concurrent use and must return
// within the problem's time limit, reporting SolveTimeout when exceeded.
type Solver interface {
	Solve(ctx context.Context, p Problem) (*Solution, error)
}
