package core

// Batch is one sampling call's worth of work.
type Batch struct {
	NumSamples int
	Offset     int
}

// Batches splits a sample quota into batches of at most size samples. Every
// batch except possibly the last is full, and offsets count the samples drawn
// before it.
func Batches(total, size int) []Batch {
	if total <= 0 || size <= 0 {
		return nil
	}

	var batches []Batch
	remaining := total
	for remaining > 0 {
		n := min(size, remaining)
		batches = append(batches, Batch{NumSamples: n, Offset: total - remaining})
		remaining -= n
	}
	return batches
}
