package exam

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed layouts.yaml
var defaultLayouts []byte

// ErrInvalidSpec is returned by Table.Resolve for unknown exam/stream
// combinations.
var ErrInvalidSpec = errors.New("invalid exam spec")

// Table is the immutable section-layout configuration for all exams.
// The zero value has no exams.
type Table struct {
	exams map[Name]examLayout
}

type examLayout struct {
	streamRequired bool
	sections       []SectionSpec
}

type layoutFile struct {
	Version int                   `yaml:"version"`
	Exams   map[string]examConfig `yaml:"exams"`
}

type examConfig struct {
	StreamRequired bool            `yaml:"stream_required"`
	Sections       []sectionConfig `yaml:"sections"`
}

type sectionConfig struct {
	Name   string         `yaml:"name"`
	Count  int            `yaml:"count"`
	Mix    map[string]int `yaml:"mix"`
	Shared bool           `yaml:"shared"`
	Topics []string       `yaml:"topics"`
}

// DefaultTable returns the built-in CAT and GATE layouts.
func DefaultTable() *Table {
	t, err := ParseTable(defaultLayouts)
	if err != nil {
		panic(fmt.Sprintf("embedded layouts: %v", err))
	}
	return t
}

// LoadTable reads a layout table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML layout table. Unknown fields are
// rejected.
func ParseTable(data []byte) (*Table, error) {
	var f layoutFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("parse layouts: multiple documents are not supported")
		}
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	if f.Version != 1 {
		return nil, fmt.Errorf("unsupported layouts version %d", f.Version)
	}

	t := &Table{exams: make(map[Name]examLayout, len(f.Exams))}
	for rawName, ec := range f.Exams {
		name, err := ParseName(rawName)
		if err != nil {
			return nil, err
		}
		if len(ec.Sections) == 0 {
			return nil, fmt.Errorf("exam %s: no sections", name)
		}
		layout := examLayout{streamRequired: ec.StreamRequired}
		seen := make(map[string]bool)
		for _, sc := range ec.Sections {
			sec, err := sc.toSpec()
			if err != nil {
				return nil, fmt.Errorf("exam %s: %w", name, err)
			}
			if seen[sec.Name] {
				return nil, fmt.Errorf("exam %s: duplicate section %q", name, sec.Name)
			}
			seen[sec.Name] = true
			layout.sections = append(layout.sections, sec)
		}
		t.exams[name] = layout
	}
	return t, nil
}

func (sc sectionConfig) toSpec() (SectionSpec, error) {
	if sc.Name == "" {
		return SectionSpec{}, fmt.Errorf("section name is empty")
	}
	if sc.Count <= 0 {
		return SectionSpec{}, fmt.Errorf("section %q: count must be positive", sc.Name)
	}
	mix := make(map[AnswerType]int, len(sc.Mix))
	sum := 0
	for rawType, n := range sc.Mix {
		at, err := ParseAnswerType(rawType)
		if err != nil {
			return SectionSpec{}, fmt.Errorf("section %q: %w", sc.Name, err)
		}
		if n < 0 {
			return SectionSpec{}, fmt.Errorf("section %q: negative count for %s", sc.Name, at)
		}
		if n == 0 {
			continue
		}
		mix[at] += n
		sum += n
	}
	if sum != sc.Count {
		return SectionSpec{}, fmt.Errorf("section %q: mix sums to %d, count is %d", sc.Name, sum, sc.Count)
	}
	return SectionSpec{
		Name:   sc.Name,
		Count:  sc.Count,
		Mix:    mix,
		Shared: sc.Shared,
		Topics: slices.Clone(sc.Topics),
	}, nil
}

// Exams returns the exam names configured in the table, sorted.
func (t *Table) Exams() []Name {
	return slices.Sorted(maps.Keys(t.exams))
}

// Resolve validates spec against the table and returns the normalized spec
// with its section contracts in exam order. Returned sections are copies.
func (t *Table) Resolve(spec Spec) (Spec, []SectionSpec, error) {
	name, err := ParseName(string(spec.Exam))
	if err != nil {
		return Spec{}, nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	layout, ok := t.exams[name]
	if !ok {
		return Spec{}, nil, fmt.Errorf("%w: no layout for exam %s", ErrInvalidSpec, name)
	}
	out := Spec{Exam: name, Year: spec.Year}

	if layout.streamRequired {
		st, ok := LookupStream(spec.Stream)
		if !ok {
			return Spec{}, nil, fmt.Errorf("%w: unsupported %s stream %q", ErrInvalidSpec, name, spec.Stream)
		}
		out.Stream = st.Code
	} else if spec.Stream != "" {
		return Spec{}, nil, fmt.Errorf("%w: exam %s does not take a stream", ErrInvalidSpec, name)
	}
	if spec.Year < 0 {
		return Spec{}, nil, fmt.Errorf("%w: year %d", ErrInvalidSpec, spec.Year)
	}

	sections := make([]SectionSpec, len(layout.sections))
	for i, s := range layout.sections {
		s.Mix = maps.Clone(s.Mix)
		s.Topics = slices.Clone(s.Topics)
		sections[i] = s
	}
	return out, sections, nil
}

// Section returns the named section of an exam. Names match
// case-insensitively.
func (t *Table) Section(exam Name, name string) (SectionSpec, bool) {
	layout, ok := t.exams[exam]
	if !ok {
		return SectionSpec{}, false
	}
	for _, s := range layout.sections {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			s.Mix = maps.Clone(s.Mix)
			s.Topics = slices.Clone(s.Topics)
			return s, true
		}
	}
	return SectionSpec{}, false
}

// Total returns the number of questions across sections.
func Total(sections []SectionSpec) int {
	n := 0
	for _, s := range sections {
		n += s.Count
	}
	return n
}
