package sqsrepo

import "strconv"

// MaxBatchSize is the largest number of entries SQS accepts in one batch
// request, and the largest number of messages one receive can return.
const MaxBatchSize = 10

// batchEntry pairs a value with the id it is sent under in one batch request.
// Ids are "1".."n" in submission order and mean nothing outside that request.
type batchEntry[T any] struct {
	id    string
	value T
}

// splitBatches partitions items into contiguous chunks of at most size
// elements. The chunks share the backing array of items.
func splitBatches[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}

	return batches
}

func newBatchEntries[T any](batch []T) []batchEntry[T] {
	entries := make([]batchEntry[T], len(batch))

	for i, v := range batch {
		entries[i] = batchEntry[T]{id: strconv.Itoa(i + 1), value: v}
	}

	return entries
}

// reconcile splits entries into the values whose id the service reported as
// successful and everything else. Ids the service failed to mention at all
// end up in failed.
func reconcile[T any](entries []batchEntry[T], successfulIDs []string) *Result[T] {
	ok := make(map[string]struct{}, len(successfulIDs))
	for _, id := range successfulIDs {
		ok[id] = struct{}{}
	}

	result := newResult[T](len(entries))

	for _, e := range entries {
		if _, found := ok[e.id]; found {
			result.Successful = append(result.Successful, e.value)
		} else {
			result.Failed = append(result.Failed, e.value)
		}
	}

	return result
}
