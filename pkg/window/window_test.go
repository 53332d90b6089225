package window

import (
	"testing"

	"github.com/shopspring/decimal"
)

type row struct {
	part string
	key  float64
	val  float64
}

func (r row) value() decimal.Decimal { return decimal.NewFromFloat(r.val) }

func spec(op Op[row]) Spec[row] {
	return Spec[row]{
		PartitionKey: func(r row) string { return r.part },
		OrderKey:     func(r row) float64 { return r.key },
		Op:           op,
	}
}

func TestRowNumber_PerPartition(t *testing.T) {
	rows := []row{
		{part: "a", key: 2},
		{part: "b", key: 1},
		{part: "a", key: 1},
	}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: RowNumber}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// a sorted by key: rows[2]=1, rows[0]=2; b: rows[1]=1
	want := []int{2, 1, 1}
	for i, w := range want {
		if cells[i].Int != w {
			t.Fatalf("row %d: got %d, want %d", i, cells[i].Int, w)
		}
	}
}

func TestRank_TiesShareAndGap(t *testing.T) {
	rows := []row{
		{key: 400}, {key: 400}, {key: 50}, {key: 50}, {key: 10},
	}
	s := spec(Op[row]{Kind: Rank})
	s.Desc = true
	cells, err := Evaluate(rows, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 1, 3, 3, 5}
	for i, w := range want {
		if cells[i].Int != w {
			t.Fatalf("row %d: got rank %d, want %d", i, cells[i].Int, w)
		}
	}
}

func TestDenseRank_NoGaps(t *testing.T) {
	rows := []row{{key: 1}, {key: 1}, {key: 2}, {key: 3}, {key: 3}}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: DenseRank}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 1, 2, 3, 3}
	for i, w := range want {
		if cells[i].Int != w {
			t.Fatalf("row %d: got dense rank %d, want %d", i, cells[i].Int, w)
		}
	}
}

func TestLag_BoundaryInvalid(t *testing.T) {
	rows := []row{
		{part: "a", key: 1, val: 10},
		{part: "a", key: 2, val: 20},
		{part: "b", key: 1, val: 99},
	}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: Lag, Offset: 1, Value: row.value}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cells[0].Valid {
		t.Fatal("first row of partition a should have no lag value")
	}
	if !cells[1].Valid || !cells[1].Dec.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("got %v, want 10", cells[1].Dec)
	}
	if cells[2].Valid {
		t.Fatal("partition b must not see partition a values")
	}
}

func TestLead_Offset(t *testing.T) {
	rows := []row{{key: 1, val: 10}, {key: 2, val: 20}, {key: 3, val: 30}}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: Lead, Offset: 2, Value: row.value}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cells[0].Valid || !cells[0].Dec.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("got %v, want 30", cells[0].Dec)
	}
	if cells[1].Valid || cells[2].Valid {
		t.Fatal("lead(2) past the partition end must be invalid")
	}
}

func TestFrameSum_RunningTotal(t *testing.T) {
	rows := []row{{key: 1, val: 100}, {key: 2, val: 300}, {key: 3, val: 50}}
	cells, err := Evaluate(rows, spec(Op[row]{
		Kind:  FrameSum,
		Frame: Frame{Unbounded: true},
		Value: row.value,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{100, 400, 450}
	for i, w := range want {
		if !cells[i].Dec.Equal(decimal.NewFromInt(w)) {
			t.Fatalf("row %d: got %v, want %d", i, cells[i].Dec, w)
		}
	}
}

func TestFrameAvg_Bounded(t *testing.T) {
	rows := []row{{key: 1, val: 10}, {key: 2, val: 20}, {key: 3, val: 30}, {key: 4, val: 40}}
	cells, err := Evaluate(rows, spec(Op[row]{
		Kind:  FrameAvg,
		Frame: Frame{Preceding: 1},
		Value: row.value,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (10), (10+20)/2, (20+30)/2, (30+40)/2
	want := []float64{10, 15, 25, 35}
	for i, w := range want {
		if !cells[i].Dec.Equal(decimal.NewFromFloat(w)) {
			t.Fatalf("row %d: got %v, want %g", i, cells[i].Dec, w)
		}
	}
}

func TestNtile_Balance(t *testing.T) {
	var rows []row
	for i := 0; i < 7; i++ {
		rows = append(rows, row{key: float64(i)})
	}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: Ntile, Buckets: 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sizes := map[int]int{}
	for _, c := range cells {
		sizes[c.Int]++
	}
	// 7 rows over 3 buckets: 3,2,2
	if sizes[1] != 3 || sizes[2] != 2 || sizes[3] != 2 {
		t.Fatalf("unexpected bucket sizes: %v", sizes)
	}
}

func TestNtile_MoreBucketsThanRows(t *testing.T) {
	rows := []row{{key: 1}, {key: 2}}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: Ntile, Buckets: 5}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cells[0].Int != 1 || cells[1].Int != 2 {
		t.Fatalf("got buckets %d,%d, want 1,2", cells[0].Int, cells[1].Int)
	}
}

func TestNtile_TiesKeepInputOrder(t *testing.T) {
	// Four equal keys: the stable sort keeps input order, so bucket
	// assignment is deterministic.
	rows := []row{{key: 1}, {key: 1}, {key: 1}, {key: 1}}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: Ntile, Buckets: 2}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 1, 2, 2}
	for i, w := range want {
		if cells[i].Int != w {
			t.Fatalf("row %d: got bucket %d, want %d", i, cells[i].Int, w)
		}
	}
}

func TestPercentile_Interpolates(t *testing.T) {
	rows := []row{{key: 4, val: 40}, {key: 1, val: 10}, {key: 3, val: 30}, {key: 2, val: 20}}
	cells, err := Evaluate(rows, spec(Op[row]{Kind: Percentile, P: 0.5, Value: row.value}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := decimal.NewFromInt(25)
	for i, c := range cells {
		if !c.Dec.Equal(want) {
			t.Fatalf("row %d: got %v, want 25", i, c.Dec)
		}
	}
}

func TestEvaluate_RequiresOrderKey(t *testing.T) {
	_, err := Evaluate([]row{{}}, Spec[row]{Op: Op[row]{Kind: RowNumber}})
	if err == nil {
		t.Fatal("expected error for missing order key, got nil")
	}
}

func TestEvaluate_EmptyInput(t *testing.T) {
	cells, err := Evaluate(nil, spec(Op[row]{Kind: RowNumber}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cells) != 0 {
		t.Fatalf("got %d cells, want 0", len(cells))
	}
}
