package runner

// Partition splits tasks into n contiguous shards, preserving order. Every
// task lands in exactly one shard and shard sizes differ by at most one; when
// n exceeds the task count the tail shards are empty. Returns nil for n <= 0.
func Partition[T any](tasks []T, n int) [][]T {
	if n <= 0 {
		return nil
	}

	shards := make([][]T, n)
	base := len(tasks) / n
	extra := len(tasks) % n

	next := 0
	for i := range shards {
		size := base
		if i < extra {
			size++
		}
		shards[i] = tasks[next : next+size]
		next += size
	}
	return shards
}
