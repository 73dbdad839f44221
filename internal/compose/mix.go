package compose

import "github.com/examforge/examforge/internal/exam"

// assignTypes returns one answer type per slot of s using smooth weighted
// round-robin over the section mix. Every type appears exactly Mix[t]
// times and types are spread evenly through the section.
func assignTypes(s exam.SectionSpec) []exam.AnswerType {
	types := s.AllowedTypes()
	total := 0
	for _, t := range types {
		total += s.Mix[t]
	}

	current := make([]int, len(types))
	out := make([]exam.AnswerType, 0, total)
	for range total {
		best := 0
		for i, t := range types {
			current[i] += s.Mix[t]
			if current[i] > current[best] {
				best = i
			}
		}
		current[best] -= total
		out = append(out, types[best])
	}
	return out
}
