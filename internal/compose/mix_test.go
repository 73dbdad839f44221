package compose

import (
	"testing"

	"github.com/examforge/examforge/internal/exam"
)

func TestAssignTypes_ExactCounts(t *testing.T) {
	table := exam.DefaultTable()
	for _, spec := range []exam.Spec{{Exam: exam.CAT}, {Exam: exam.GATE, Stream: "CS"}} {
		_, sections, err := table.Resolve(spec)
		if err != nil {
			t.Fatalf("resolve %s: %v", spec, err)
		}
		for _, sec := range sections {
			types := assignTypes(sec)
			if len(types) != sec.Count {
				t.Errorf("%s: %d slots, want %d", sec.Name, len(types), sec.Count)
			}
			got := make(map[exam.AnswerType]int)
			for _, typ := range types {
				got[typ]++
			}
			for typ, want := range sec.Mix {
				if got[typ] != want {
					t.Errorf("%s: %d %s slots, want %d", sec.Name, got[typ], typ, want)
				}
			}
		}
	}
}

func TestAssignTypes_Interleaves(t *testing.T) {
	sec := exam.SectionSpec{Name: "DILR", Count: 22, Mix: map[exam.AnswerType]int{exam.MCQ: 12, exam.TITA: 10}}
	types := assignTypes(sec)

	// With a near-even mix no type runs longer than two in a row.
	run := 1
	for i := 1; i < len(types); i++ {
		if types[i] == types[i-1] {
			run++
		} else {
			run = 1
		}
		if run > 2 {
			t.Fatalf("run of %d %s at slot %d: %v", run, types[i], i, types)
		}
	}
}

func TestAssignTypes_Deterministic(t *testing.T) {
	sec := exam.SectionSpec{Name: "Technical", Count: 55, Mix: map[exam.AnswerType]int{exam.MCQ: 45, exam.NAT: 10}}
	a, b := assignTypes(sec), assignTypes(sec)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs between calls: %s vs %s", i, a[i], b[i])
		}
	}
	if a[0] != exam.MCQ {
		t.Errorf("heavier type should lead, got %s", a[0])
	}
}

func TestAssignTypes_SingleType(t *testing.T) {
	sec := exam.SectionSpec{Name: "General Aptitude", Count: 10, Mix: map[exam.AnswerType]int{exam.MCQ: 10}}
	for i, typ := range assignTypes(sec) {
		if typ != exam.MCQ {
			t.Errorf("slot %d = %s", i, typ)
		}
	}
}
