package tripload

// Batcher splits the rows of one write into statement-sized groups. Store
// implementations use it to keep a multi-row INSERT under the driver's
// bound-parameter limit while still committing the whole chunk in one
// transaction.
//
// Ready-made batchers are available for common patterns:
//   - [SizeBatcher]: fixed number of items per batch
//   - [WeightedBatcher]: batch by cumulative weight (e.g., SQL param limits)
//
// Example:
//
//	// 16 bound parameters per trip row, SQLite's default limit of 999
//	for _, stmt := range tripload.WeightedBatcher(func(trip.Derived) int { return 16 }, 999).Batch(rows) {
//	    // one INSERT ... VALUES (...), (...) per stmt
//	}
type Batcher[T any] interface {
	// Batch groups items into batches.
	Batch(items []T) [][]T
}

// BatcherFunc adapts a plain function to the [Batcher] interface.
type BatcherFunc[T any] func(items []T) [][]T

func (f BatcherFunc[T]) Batch(items []T) [][]T {
	return f(items)
}

// SizeBatcher creates batches with a maximum number of items per batch.
//
// Example:
//
//	// Upsert zones 200 at a time
//	batcher := tripload.SizeBatcher[zone.Zone](200)
func SizeBatcher[T any](maxSize int) Batcher[T] {
	return BatcherFunc[T](func(items []T) [][]T {
		if len(items) == 0 || maxSize <= 0 {
			return nil
		}
		return splitEvery(items, maxSize)
	})
}

// WeightedBatcher creates batches where the total weight does not exceed maxWeight.
// The weigher function returns the weight of each individual item. Items are accumulated
// into a batch until adding the next item would exceed maxWeight, at which point a new
// batch is started.
//
// If a single item exceeds maxWeight, it is placed in its own batch (never dropped).
func WeightedBatcher[T any](weigher func(T) int, maxWeight int) Batcher[T] {
	return BatcherFunc[T](func(items []T) [][]T {
		if len(items) == 0 || maxWeight <= 0 {
			return nil
		}

		var batches [][]T
		var current []T
		currentWeight := 0

		for _, item := range items {
			w := weigher(item)

			// If adding this item would exceed the limit, flush current batch
			if len(current) > 0 && currentWeight+w > maxWeight {
				batches = append(batches, current)
				current = nil
				currentWeight = 0
			}

			current = append(current, item)
			currentWeight += w
		}

		if len(current) > 0 {
			batches = append(batches, current)
		}

		return batches
	})
}

// splitEvery splits a slice into sub-slices of at most size elements.
func splitEvery[T any](items []T, size int) [][]T {
	if len(items) == 0 || size <= 0 {
		return nil
	}

	numChunks := (len(items) + size - 1) / size
	result := make([][]T, 0, numChunks)

	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		result = append(result, items[i:end])
	}

	return result
}
