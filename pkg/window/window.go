// Package window is a generic ordered-partition processor: ranking, offset
// lookups, frame-bounded moving aggregates, quantile buckets and percentile
// interpolation, all dispatched through one partition/sort/apply pipeline so
// that partitioning and tie-break semantics stay identical across every
// analysis built on top of it.
package window

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Kind selects one operation of the closed op set.
type Kind int

const (
	RowNumber Kind = iota // 1..n per partition, order position
	Rank                  // ties share rank, gaps after tie groups
	DenseRank             // ties share rank, no gaps
	Lag                   // value Offset rows before, invalid at the boundary
	Lead                  // value Offset rows after, invalid at the boundary
	FrameSum              // sum over (frame start .. current row)
	FrameAvg              // average over (frame start .. current row)
	Ntile                 // Buckets quantile buckets, sizes differ by at most 1
	Percentile            // linear interpolation at fractional rank P
)

// Frame bounds a moving aggregate: either the Preceding rows before the
// current one, or everything from the partition start when Unbounded is set.
type Frame struct {
	Preceding int
	Unbounded bool
}

// Op is one tagged operation variant. Value extracts the measure for the
// value-carrying kinds (Lag, Lead, FrameSum, FrameAvg, Percentile).
type Op[R any] struct {
	Kind    Kind
	Offset  int     // Lag, Lead
	Buckets int     // Ntile
	Frame   Frame   // FrameSum, FrameAvg
	P       float64 // Percentile, in [0,1]
	Value   func(R) decimal.Decimal
}

// Spec describes one windowed computation. OrderKey must be deterministic;
// rows with equal keys keep their input order (stable), which makes rank and
// bucket assignment reproducible.
type Spec[R any] struct {
	PartitionKey func(R) string
	OrderKey     func(R) float64
	Desc         bool
	Op           Op[R]
}

// Cell is the computed column for one input row. Int carries RowNumber, Rank,
// DenseRank and Ntile results; Dec carries the rest. Valid is false only for
// Lag/Lead past a partition boundary.
type Cell struct {
	Int   int
	Dec   decimal.Decimal
	Valid bool
}

// Evaluate runs one windowed operation over rows and returns one Cell per
// input row, indexed like the input. Source rows are never mutated.
func Evaluate[R any](rows []R, spec Spec[R]) ([]Cell, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}

	cells := make([]Cell, len(rows))
	for _, part := range partitions(rows, spec.PartitionKey) {
		ordered := orderIndices(rows, part, spec)
		apply(rows, ordered, spec, cells)
	}
	return cells, nil
}

func validate[R any](spec Spec[R]) error {
	if spec.OrderKey == nil {
		return fmt.Errorf("window: order key is required")
	}
	op := spec.Op
	switch op.Kind {
	case Lag, Lead:
		if op.Offset < 1 {
			return fmt.Errorf("window: offset must be >= 1, got %d", op.Offset)
		}
	case Ntile:
		if op.Buckets < 1 {
			return fmt.Errorf("window: ntile buckets must be >= 1, got %d", op.Buckets)
		}
	case FrameSum, FrameAvg:
		if !op.Frame.Unbounded && op.Frame.Preceding < 0 {
			return fmt.Errorf("window: frame preceding must be >= 0, got %d", op.Frame.Preceding)
		}
	case Percentile:
		if op.P < 0 || op.P > 1 {
			return fmt.Errorf("window: percentile must be in [0,1], got %g", op.P)
		}
	case RowNumber, Rank, DenseRank:
	default:
		return fmt.Errorf("window: unknown op kind %d", op.Kind)
	}
	switch op.Kind {
	case Lag, Lead, FrameSum, FrameAvg, Percentile:
		if op.Value == nil {
			return fmt.Errorf("window: op kind %d needs a value extractor", op.Kind)
		}
	}
	return nil
}

// partitions groups row indices by partition key, partitions emitted in
// first-seen order. A nil key function yields a single partition.
func partitions[R any](rows []R, key func(R) string) [][]int {
	if key == nil {
		all := make([]int, len(rows))
		for i := range rows {
			all[i] = i
		}
		if len(all) == 0 {
			return nil
		}
		return [][]int{all}
	}

	grouped := make(map[string][]int)
	var order []string
	for i, r := range rows {
		k := key(r)
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], i)
	}
	out := make([][]int, 0, len(order))
	for _, k := range order {
		out = append(out, grouped[k])
	}
	return out
}

// orderIndices sorts a partition's indices by OrderKey. The sort is stable so
// equal keys keep input order.
func orderIndices[R any](rows []R, part []int, spec Spec[R]) []int {
	ordered := make([]int, len(part))
	copy(ordered, part)
	sort.SliceStable(ordered, func(a, b int) bool {
		ka, kb := spec.OrderKey(rows[ordered[a]]), spec.OrderKey(rows[ordered[b]])
		if spec.Desc {
			return ka > kb
		}
		return ka < kb
	})
	return ordered
}

func apply[R any](rows []R, ordered []int, spec Spec[R], cells []Cell) {
	n := len(ordered)
	op := spec.Op

	switch op.Kind {
	case RowNumber:
		for pos, idx := range ordered {
			cells[idx] = Cell{Int: pos + 1, Valid: true}
		}

	case Rank, DenseRank:
		rank, dense := 0, 0
		var prev float64
		for pos, idx := range ordered {
			k := spec.OrderKey(rows[idx])
			if pos == 0 || k != prev {
				rank = pos + 1
				dense++
				prev = k
			}
			if op.Kind == Rank {
				cells[idx] = Cell{Int: rank, Valid: true}
			} else {
				cells[idx] = Cell{Int: dense, Valid: true}
			}
		}

	case Lag, Lead:
		for pos, idx := range ordered {
			src := pos - op.Offset
			if op.Kind == Lead {
				src = pos + op.Offset
			}
			if src < 0 || src >= n {
				cells[idx] = Cell{}
				continue
			}
			cells[idx] = Cell{Dec: op.Value(rows[ordered[src]]), Valid: true}
		}

	case FrameSum, FrameAvg:
		for pos, idx := range ordered {
			lo := 0
			if !op.Frame.Unbounded && pos-op.Frame.Preceding > 0 {
				lo = pos - op.Frame.Preceding
			}
			sum := decimal.Zero
			for i := lo; i <= pos; i++ {
				sum = sum.Add(op.Value(rows[ordered[i]]))
			}
			if op.Kind == FrameAvg {
				sum = sum.Div(decimal.NewFromInt(int64(pos - lo + 1)))
			}
			cells[idx] = Cell{Dec: sum, Valid: true}
		}

	case Ntile:
		// First n%b buckets get one extra row, so sizes differ by at most 1.
		base, extra := n/op.Buckets, n%op.Buckets
		bucket, filled, size := 1, 0, base
		if extra > 0 {
			size = base + 1
		}
		for _, idx := range ordered {
			for filled >= size {
				bucket++
				filled = 0
				size = base
				if bucket <= extra {
					size = base + 1
				}
			}
			cells[idx] = Cell{Int: bucket, Valid: true}
			filled++
		}

	case Percentile:
		v := interpolate(rows, ordered, op)
		for _, idx := range ordered {
			cells[idx] = Cell{Dec: v, Valid: true}
		}
	}
}

// interpolate computes the value at fractional rank P over the ordered
// partition, linearly interpolating between the two bracketing values.
func interpolate[R any](rows []R, ordered []int, op Op[R]) decimal.Decimal {
	n := len(ordered)
	if n == 1 {
		return op.Value(rows[ordered[0]])
	}
	target := op.P * float64(n-1)
	lo := int(math.Floor(target))
	hi := int(math.Ceil(target))
	vlo := op.Value(rows[ordered[lo]])
	if lo == hi {
		return vlo
	}
	vhi := op.Value(rows[ordered[hi]])
	frac := decimal.NewFromFloat(target - float64(lo))
	return vlo.Add(vhi.Sub(vlo).Mul(frac))
}
