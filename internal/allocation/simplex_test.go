package allocation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplexSolver_Optimal(t *testing.T) {
	// maximize x2 subject to x1 + x2 == 10, x2 <= 4.
	p := Problem{
		Objective: []float64{0, 1},
		EqMatrix:  [][]float64{{1, 1}},
		EqBounds:  []float64{10},
		LeMatrix:  [][]float64{{0, 1}},
		LeBounds:  []float64{4},
		Lower:     []float64{0, 0},
		Upper:     []float64{math.Inf(1), math.Inf(1)},
		TimeLimit: 5 * time.Second,
	}

	sol, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, SolveOptimal, sol.Status)
	require.Len(t, sol.Values, 2)
	assert.InDelta(t, 6, sol.Values[0], 1e-6)
	assert.InDelta(t, 4, sol.Values[1], 1e-6)
	assert.InDelta(t, 4, sol.Objective, 1e-6)
	require.Len(t, sol.Slacks, 1)
	assert.InDelta(t, 0, sol.Slacks[0], 1e-6)
}

func TestSimplexSolver_HonorsBounds(t *testing.T) {
	// maximize x1 subject to x1 + x2 == 10, x1 <= 7, x2 >= 1.
	p := Problem{
		Objective: []float64{1, 0},
		EqMatrix:  [][]float64{{1, 1}},
		EqBounds:  []float64{10},
		Lower:     []float64{0, 1},
		Upper:     []float64{7, math.Inf(1)},
		TimeLimit: 5 * time.Second,
	}

	sol, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)

	require.Equal(t, SolveOptimal, sol.Status)
	assert.InDelta(t, 7, sol.Values[0], 1e-6)
	assert.InDelta(t, 3, sol.Values[1], 1e-6)
}

func TestSimplexSolver_Infeasible(t *testing.T) {
	// x1 + x2 == 1 cannot satisfy x1 + x2 >= 3.
	p := Problem{
		Objective: []float64{1, 1},
		EqMatrix:  [][]float64{{1, 1}},
		EqBounds:  []float64{1},
		LeMatrix:  [][]float64{{-1, -1}},
		LeBounds:  []float64{-3},
		Lower:     []float64{0, 0},
		Upper:     []float64{math.Inf(1), math.Inf(1)},
		TimeLimit: 5 * time.Second,
	}

	sol, err := NewSimplexSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, SolveInfeasible, sol.Status)
}

func TestSimplexSolver_RequiresEquality(t *testing.T) {
	_, err := NewSimplexSolver().Solve(context.Background(), Problem{Objective: []float64{1}})
	assert.Error(t, err)
}

func TestSimplexSolver_EmptyObjective(t *testing.T) {
	_, err := NewSimplexSolver().Solve(context.Background(), Problem{})
	assert.Error(t, err)
}
