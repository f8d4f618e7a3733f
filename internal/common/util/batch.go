package util

// Batch splits elements into consecutive slices of at most batchSize elements.
// The returned slices share elements' backing array.
func Batch[T any](elements []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 1
	}
	batches := make([][]T, 0, (len(elements)+batchSize-1)/batchSize)
	for start := 0; start < len(elements); start += batchSize {
		end := min(start+batchSize, len(elements))
		batches = append(batches, elements[start:end])
	}
	return batches
}
