package types

import "fmt"

// SampleRequest is one batched sampling call. The model draws NumSamples
// backbones and writes one PDB file per sample under OutDir; the caller only
// tracks counts.
type SampleRequest struct {
	// Motif scaffolding inputs. MotifPath points at the motif PDB file,
	// Structures optionally pins the contig layout, and Strength weighs the
	// motif guidance term.
	MotifPath  string
	Structures string
	Strength   float64

	// Unconditional input: the backbone length to draw.
	Length int

	// Sampling noise scale shared by both modes.
	Scale float64

	// Batch bounds. Offset counts samples already drawn for the same target,
	// so artifact indices stay dense across batches.
	NumSamples int
	Offset     int

	// Artifact destination.
	OutDir string
	Prefix string
}

// SampleName returns the artifact stem for the i-th sample of the batch.
func (r SampleRequest) SampleName(i int) string {
	return fmt.Sprintf("%s_%d", r.Prefix, r.Offset+i)
}
