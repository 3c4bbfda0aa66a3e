package tripload_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/tripload"
	"github.com/bjaus/tripload/zone"
)

func TestSizeBatcher(t *testing.T) {
	tests := []struct {
		name     string
		maxSize  int
		items    []int64
		expected [][]int64
	}{
		{
			name:     "empty items",
			maxSize:  3,
			items:    []int64{},
			expected: nil,
		},
		{
			name:     "zero max size",
			maxSize:  0,
			items:    []int64{1, 2, 3},
			expected: nil,
		},
		{
			name:     "negative max size",
			maxSize:  -1,
			items:    []int64{1, 2, 3},
			expected: nil,
		},
		{
			name:     "items fit in one batch",
			maxSize:  5,
			items:    []int64{1, 2, 3},
			expected: [][]int64{{1, 2, 3}},
		},
		{
			name:     "items require multiple batches",
			maxSize:  2,
			items:    []int64{1, 2, 3, 4, 5},
			expected: [][]int64{{1, 2}, {3, 4}, {5}},
		},
		{
			name:     "exact batch size",
			maxSize:  3,
			items:    []int64{1, 2, 3, 4, 5, 6},
			expected: [][]int64{{1, 2, 3}, {4, 5, 6}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batcher := tripload.SizeBatcher[int64](tt.maxSize)
			result := batcher.Batch(tt.items)
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestSizeBatcher_Zones(t *testing.T) {
	zones := make([]zone.Zone, 7)
	for i := range zones {
		zones[i] = zone.Zone{LocationID: int64(i + 1)}
	}

	batches := tripload.SizeBatcher[zone.Zone](3).Batch(zones)
	require.Len(t, batches, 3)

	var ids []int64
	for _, b := range batches {
		require.LessOrEqual(t, len(b), 3)
		for _, z := range b {
			ids = append(ids, z.LocationID)
		}
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, ids)
}

func TestWeightedBatcher(t *testing.T) {
	type record struct {
		ID     string
		Params int
	}

	weigher := func(r record) int { return r.Params }

	t.Run("empty items", func(t *testing.T) {
		batcher := tripload.WeightedBatcher(weigher, 100)
		result := batcher.Batch([]record{})
		require.Nil(t, result)
	})

	t.Run("zero max weight", func(t *testing.T) {
		batcher := tripload.WeightedBatcher(weigher, 0)
		result := batcher.Batch([]record{{ID: "1", Params: 10}})
		require.Nil(t, result)
	})

	t.Run("negative max weight", func(t *testing.T) {
		batcher := tripload.WeightedBatcher(weigher, -1)
		result := batcher.Batch([]record{{ID: "1", Params: 10}})
		require.Nil(t, result)
	})

	t.Run("all items fit in one batch", func(t *testing.T) {
		items := []record{
			{ID: "1", Params: 10},
			{ID: "2", Params: 20},
			{ID: "3", Params: 30},
		}
		batcher := tripload.WeightedBatcher(weigher, 100)
		result := batcher.Batch(items)
		require.Len(t, result, 1)
		require.Len(t, result[0], 3)
	})

	t.Run("items split across batches", func(t *testing.T) {
		items := []record{
			{ID: "1", Params: 30},
			{ID: "2", Params: 30},
			{ID: "3", Params: 30},
			{ID: "4", Params: 30},
			{ID: "5", Params: 30},
		}
		batcher := tripload.WeightedBatcher(weigher, 70)
		result := batcher.Batch(items)

		// 30+30 fits, a third would make 90
		require.Len(t, result, 3)
		require.Len(t, result[0], 2)
		require.Len(t, result[1], 2)
		require.Len(t, result[2], 1)
	})

	t.Run("single item exceeds max weight", func(t *testing.T) {
		items := []record{
			{ID: "1", Params: 10},
			{ID: "2", Params: 200},
			{ID: "3", Params: 10},
		}
		batcher := tripload.WeightedBatcher(weigher, 100)
		result := batcher.Batch(items)

		// Oversized item gets its own batch, never dropped
		require.Len(t, result, 3)
		require.Equal(t, "1", result[0][0].ID)
		require.Equal(t, "2", result[1][0].ID)
		require.Equal(t, "3", result[2][0].ID)
	})

	t.Run("exact weight boundary", func(t *testing.T) {
		items := []record{
			{ID: "1", Params: 50},
			{ID: "2", Params: 50},
			{ID: "3", Params: 50},
		}
		batcher := tripload.WeightedBatcher(weigher, 100)
		result := batcher.Batch(items)
		require.Len(t, result, 2)
		require.Len(t, result[0], 2)
		require.Len(t, result[1], 1)
	})

	t.Run("sqlite parameter limit", func(t *testing.T) {
		items := make([]record, 130)
		for i := range items {
			items[i] = record{Params: 16}
		}
		result := tripload.WeightedBatcher(weigher, 999).Batch(items)

		// 62 rows * 16 = 992 params per statement
		require.Len(t, result, 3)
		require.Len(t, result[0], 62)
		require.Len(t, result[1], 62)
		require.Len(t, result[2], 6)
	})
}

func TestBatcherFunc(t *testing.T) {
	pairs := tripload.BatcherFunc[int](func(items []int) [][]int {
		var out [][]int
		for i := 0; i < len(items); i += 2 {
			out = append(out, items[i:min(i+2, len(items))])
		}
		return out
	})

	require.Equal(t, [][]int{{1, 2}, {3}}, pairs.Batch([]int{1, 2, 3}))
}
