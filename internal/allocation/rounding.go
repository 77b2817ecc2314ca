package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/evalforge/coverplan/internal/types"
)

// roundLargestRemainder applies the largest-remainder (Hamilton)
// apportionment method: floor every target, then award the leftover units
// one each to the strata ranked by descending fractional remainder, ties
// broken by ascending stratum ID. The rounded vector sums exactly to total
// and every rounded value is within one unit of its raw target.
//
// The returned deltas are quota minus raw target, captured here before any
// maximum-enforcement redistribution.
func roundLargestRemainder(targets []float64, strata []Stratum, total int) ([]int, []float64) {
	n := len(targets)
	quotas := make([]int, n)
	fractions := make([]float64, n)

	allocated := 0
	for i, t := range targets {
		if t < 0 {
			t = 0
		}
		floor := math.Floor(t)
		quotas[i] = int(floor)
		fractions[i] = t - floor
		allocated += quotas[i]
	}

	remainder := total - allocated
	if remainder <= 0 {
		return quotas, deltas(quotas, targets)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if fractions[i] != fractions[j] {
			return fractions[i] > fractions[j]
		}
		return strata[i].ID < strata[j].ID
	})

	// Targets normally sum to the total, so one pass suffices; the loop
	// guards against accumulated floating drift leaving more units than
	// strata.
	for remainder > 0 {
		for _, i := range order {
			if remainder == 0 {
				break
			}
			quotas[i]++
			remainder--
		}
	}

	return quotas, deltas(quotas, targets)
}

func deltas(quotas []int, targets []float64) []float64 {
	out := make([]float64, len(quotas))
	for i := range quotas {
		out[i] = float64(quotas[i]) - targets[i]
	}
	return out
}

// enforceMaximums caps every quota at its declared maximum and
// redistributes the excess to other strata ranked by descending remaining
// capacity (ties by ascending stratum ID), repeating until no maximum is
// violated. It returns a fatal CAPACITY_EXHAUSTED error when no capacity
// remains to absorb the excess, and finally reconciles any last unit of
// drift onto the currently largest-allocated stratum so the grand total is
// exact. Quotas are adjusted in place.
func enforceMaximums(quotas []int, strata []Stratum, total int) ([]string, error) {
	var notes []string

	excess := 0
	for i, s := range strata {
		if s.hasMaximum() && quotas[i] > s.Maximum {
			over := quotas[i] - s.Maximum
			quotas[i] = s.Maximum
			excess += over
			notes = append(notes, fmt.Sprintf(
				"stratum %q capped at maximum %d (removed %d)", s.ID, s.Maximum, over))
		}
	}

	if excess > 0 {
		// Rank recipients by descending remaining capacity, unbounded
		// strata first, ties broken by ascending stratum ID.
		candidates := make([]int, 0, len(strata))
		for i, s := range strata {
			if s.capacity(quotas[i]) != 0 {
				candidates = append(candidates, i)
			}
		}
		sort.Slice(candidates, func(a, b int) bool {
			i, j := candidates[a], candidates[b]
			ci, cj := strata[i].capacity(quotas[i]), strata[j].capacity(quotas[j])
			if (ci < 0) != (cj < 0) {
				return ci < 0 // unbounded outranks any finite capacity
			}
			if ci != cj {
				return ci > cj
			}
			return strata[i].ID < strata[j].ID
		})

		for _, i := range candidates {
			if excess == 0 {
				break
			}
			give := excess
			if c := strata[i].capacity(quotas[i]); c > 0 && give > c {
				give = c
			}
			quotas[i] += give
			excess -= give
			notes = append(notes, fmt.Sprintf(
				"redistributed %d excess items to stratum %q", give, strata[i].ID))
		}
		if excess > 0 {
			return notes, types.NewErrorf(types.CAPACITY_EXHAUSTED,
				"cannot redistribute %d excess items: every stratum is at its maximum", excess)
		}
	}

	// Reconcile residual drift onto the largest-allocated stratum.
	sum := 0
	for _, q := range quotas {
		sum += q
	}
	if drift := total - sum; drift != 0 {
		i, err := driftRecipient(quotas, strata, drift)
		if err != nil {
			return notes, err
		}
		quotas[i] += drift
		notes = append(notes, fmt.Sprintf(
			"reconciled %+d drift on stratum %q", drift, strata[i].ID))
	}

	return notes, nil
}

// driftRecipient picks the largest-allocated stratum able to absorb the
// drift (positive drift needs capacity, negative drift needs quota).
func driftRecipient(quotas []int, strata []Stratum, drift int) (int, error) {
	best := -1
	for i, s := range strata {
		if drift > 0 {
			if c := s.capacity(quotas[i]); c >= 0 && c < drift {
				continue
			}
		} else if quotas[i]+drift < 0 {
			continue
		}
		if best == -1 || quotas[i] > quotas[best] ||
			(quotas[i] == quotas[best] && s.ID < strata[best].ID) {
			best = i
		}
	}
	if best == -1 {
		return 0, types.NewErrorf(types.CAPACITY_EXHAUSTED,
			"cannot reconcile %+d drift: no stratum can absorb it", drift)
	}
	return best, nil
}
