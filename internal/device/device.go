package device

import "fmt"

const (
	KindCUDA = "cuda"
	KindCPU  = "cpu"
)

// Handle identifies the compute device a worker is bound to. A handle is
// owned by exactly one worker for the lifetime of a run.
type Handle struct {
	Kind  string
	Index int
}

func (h Handle) String() string {
	if h.Kind == KindCPU {
		return KindCPU
	}
	return fmt.Sprintf("%s:%d", h.Kind, h.Index)
}

// Pool returns the ordered device handles for a run, one per worker. Worker i
// is bound to handle i.
func Pool(kind string, n int) ([]Handle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("device count must be positive, got %d", n)
	}
	if kind != KindCUDA && kind != KindCPU {
		return nil, fmt.Errorf("unknown device kind %q", kind)
	}

	handles := make([]Handle, n)
	for i := range handles {
		handles[i] = Handle{Kind: kind, Index: i}
	}
	return handles, nil
}
