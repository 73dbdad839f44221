package exam

import (
	"slices"
	"strings"
)

// Stream is a GATE paper.
type Stream struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// gateStreams lists all 30 GATE papers as of 2024.
var gateStreams = []Stream{
	{"AE", "Aerospace Engineering"},
	{"AG", "Agricultural Engineering"},
	{"AR", "Architecture and Planning"},
	{"BM", "Biomedical Engineering"},
	{"BT", "Biotechnology"},
	{"CE", "Civil Engineering"},
	{"CH", "Chemical Engineering"},
	{"CS", "Computer Science and Information Technology"},
	{"CY", "Chemistry"},
	{"DA", "Data Science and Artificial Intelligence"},
	{"EC", "Electronics and Communication Engineering"},
	{"EE", "Electrical Engineering"},
	{"EN", "Environmental Science and Engineering"},
	{"ES", "Earth Sciences"},
	{"EY", "Ecology and Evolution"},
	{"GE", "Geology and Geophysics"},
	{"GG", "Geophysics"},
	{"IN", "Instrumentation Engineering"},
	{"MA", "Mathematics"},
	{"ME", "Mechanical Engineering"},
	{"MN", "Mining Engineering"},
	{"MT", "Metallurgical Engineering"},
	{"NM", "Naval Architecture and Marine Engineering"},
	{"PE", "Petroleum Engineering"},
	{"PH", "Physics"},
	{"PI", "Production and Industrial Engineering"},
	{"ST", "Statistics"},
	{"TF", "Textile Engineering and Fibre Science"},
	{"XE", "Engineering Sciences"},
	{"XL", "Life Sciences"},
}

// GATEStreams returns a copy of the GATE stream catalogue.
func GATEStreams() []Stream {
	return slices.Clone(gateStreams)
}

// LookupStream finds a GATE stream by code, case-insensitively.
func LookupStream(code string) (Stream, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, s := range gateStreams {
		if s.Code == code {
			return s, true
		}
	}
	return Stream{}, false
}
