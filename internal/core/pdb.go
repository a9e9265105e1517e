package core

import (
	"fmt"
	"os"
	"strings"
)

// WriteCATrace writes one sampled backbone as a CA-only PDB file, one glycine
// residue per coordinate. Column layout follows the PDB ATOM record format so
// downstream structure tools can read the output directly.
func WriteCATrace(path string, coords [][3]float32) error {
	var b strings.Builder
	for i, xyz := range coords {
		fmt.Fprintf(&b, "ATOM  %5d  CA  GLY A%4d    %8.3f%8.3f%8.3f  1.00  0.00           C\n",
			i+1, i+1, xyz[0], xyz[1], xyz[2])
	}
	b.WriteString("END\n")

	return os.WriteFile(path, []byte(b.String()), 0644)
}
