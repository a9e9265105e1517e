package contig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
)

/*
This is a parser for structure (contig) specifications with the following grammar:

Spec     := Segment ( ("/" | ",") Segment )*
Segment  := Motif | Scaffold
Motif    := <chain><start> "-" <end>     e.g. A16-35, a span of fixed residues
Scaffold := <len> | <min> "-" <max>      e.g. 25 or 10-25, a sampled scaffold run

*/

var parser = participle.MustBuild[rawSpec](
	participle.Union[rawSegment](motifSegment{}, scaffoldSegment{}),
)

// Segment is one run of residues in a specification: either a fixed motif
// span anchored on a source chain, or a scaffold run whose length is sampled
// from [Start, End].
type Segment struct {
	Chain byte // 0 for scaffold segments
	Start int
	End   int
}

func (s Segment) IsMotif() bool { return s.Chain != 0 }

func (s Segment) String() string {
	if s.IsMotif() {
		return fmt.Sprintf("%c%d-%d", s.Chain, s.Start, s.End)
	}
	if s.Start == s.End {
		return strconv.Itoa(s.Start)
	}
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Spec is a parsed structure specification.
type Spec struct {
	Segments []Segment
}

func Parse(spec string) (*Spec, error) {
	raw, err := parser.ParseString("", spec)
	if err != nil {
		return nil, fmt.Errorf("error parsing structure spec '%s': %w", spec, err)
	}

	parsed, err := raw.toSpec()
	if err != nil {
		return nil, fmt.Errorf("invalid structure spec '%s': %w", spec, err)
	}

	return parsed, nil
}

func (s *Spec) HasMotif() bool {
	for _, seg := range s.Segments {
		if seg.IsMotif() {
			return true
		}
	}
	return false
}

// MinLength and MaxLength bound the total residue count of any structure the
// specification admits.
func (s *Spec) MinLength() int {
	total := 0
	for _, seg := range s.Segments {
		if seg.IsMotif() {
			total += seg.End - seg.Start + 1
		} else {
			total += seg.Start
		}
	}
	return total
}

func (s *Spec) MaxLength() int {
	total := 0
	for _, seg := range s.Segments {
		if seg.IsMotif() {
			total += seg.End - seg.Start + 1
		} else {
			total += seg.End
		}
	}
	return total
}

func (s *Spec) String() string {
	parts := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		parts[i] = seg.String()
	}
	return strings.Join(parts, "/")
}

type rawSpec struct {
	Segments []rawSegment `@@ ( ( "/" | "," ) @@ )*`
}

func (r *rawSpec) toSpec() (*Spec, error) {
	if len(r.Segments) == 0 {
		return nil, fmt.Errorf("empty specification")
	}

	spec := &Spec{Segments: make([]Segment, 0, len(r.Segments))}
	for _, raw := range r.Segments {
		seg, err := raw.toSegment()
		if err != nil {
			return nil, err
		}
		spec.Segments = append(spec.Segments, seg)
	}
	return spec, nil
}

type rawSegment interface {
	toSegment() (Segment, error)
}

type motifSegment struct {
	Anchor string `@Ident` // chain letter followed by the start residue, e.g. A16
	End    int    `"-" @Int`
}

func (m motifSegment) toSegment() (Segment, error) {
	if len(m.Anchor) < 2 {
		return Segment{}, fmt.Errorf("motif segment %q must be a chain letter followed by a residue index", m.Anchor)
	}

	chain := m.Anchor[0]
	if chain < 'A' || chain > 'Z' {
		return Segment{}, fmt.Errorf("invalid chain identifier %q", string(chain))
	}

	start, err := strconv.Atoi(m.Anchor[1:])
	if err != nil {
		return Segment{}, fmt.Errorf("invalid start residue in motif segment %q", m.Anchor)
	}
	if m.End < start {
		return Segment{}, fmt.Errorf("motif segment %c%d-%d has end before start", chain, start, m.End)
	}

	return Segment{Chain: chain, Start: start, End: m.End}, nil
}

type scaffoldSegment struct {
	Min int  `@Int`
	Max *int `( "-" @Int )?`
}

func (s scaffoldSegment) toSegment() (Segment, error) {
	if s.Min < 0 {
		return Segment{}, fmt.Errorf("scaffold length %d is negative", s.Min)
	}

	max := s.Min
	if s.Max != nil {
		max = *s.Max
	}
	if max < s.Min {
		return Segment{}, fmt.Errorf("scaffold range %d-%d has max before min", s.Min, max)
	}

	return Segment{Start: s.Min, End: max}, nil
}
