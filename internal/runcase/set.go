package runcase

import (
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Set is an insertion-ordered collection of cases indexed by experiment label.
// Cases are identified by structural parameter equality: adding a case equal
// to one already stored reuses the stored slot under the new label.
//
// A Set is not safe for concurrent mutation.
type Set struct {
	cases    []*Case
	expNames []string
	expIndex map[string][]int
	filter   []string
	view     []int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{expIndex: make(map[string][]int)}
}

// AddNewCases stores cases under label, deduplicating against every case
// already in the set.
func (s *Set) AddNewCases(cases []*Case, label string) error {
	if label == "" {
		return casaerr.New(casaerr.UndefinedValue, "Set.AddNewCases", "experiment label cannot be empty")
	}
	if _, ok := s.expIndex[label]; ok {
		return casaerr.New(casaerr.AlreadyDefined, "Set.AddNewCases", "experiment %s already exists", label)
	}

	idx := make([]int, 0, len(cases))
	for _, c := range cases {
		pos := -1
		for j := range s.cases {
			if s.cases[j].Equal(c) {
				pos = j
				break
			}
		}
		if pos < 0 {
			s.cases = append(s.cases, c)
			pos = len(s.cases) - 1
		}
		if !slices.Contains(idx, pos) {
			idx = append(idx, pos)
		}
	}
	s.expNames = append(s.expNames, label)
	s.expIndex[label] = idx
	s.rebuildView()
	return nil
}

// FilterByExperimentName restricts Size and Case to the cases of label. An
// empty label clears the filter.
func (s *Set) FilterByExperimentName(label string) error {
	if label == "" {
		return s.FilterByDoeList(nil)
	}
	return s.FilterByDoeList([]string{label})
}

// FilterByDoeList restricts Size and Case to the ordered, duplicate-free union
// of the given experiments. An empty list clears the filter.
func (s *Set) FilterByDoeList(labels []string) error {
	var filter []string
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := s.expIndex[l]; !ok {
			return casaerr.New(casaerr.UndefinedValue, "Set.Filter", "unknown experiment %s", l)
		}
		if !slices.Contains(filter, l) {
			filter = append(filter, l)
		}
	}
	s.filter = filter
	s.rebuildView()
	return nil
}

func (s *Set) rebuildView() {
	if len(s.filter) == 0 {
		s.view = nil
		return
	}
	s.view = s.union(s.filter)
}

// union merges the index lists of labels, keeping first-seen order.
func (s *Set) union(labels []string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range labels {
		for _, i := range s.expIndex[l] {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}

// Filter returns the active experiment labels, empty when unfiltered.
func (s *Set) Filter() []string { return slices.Clone(s.filter) }

// Size is the number of cases visible through the current filter.
func (s *Set) Size() int {
	if s.filter != nil {
		return len(s.view)
	}
	return len(s.cases)
}

// Len is the number of stored cases regardless of the filter.
func (s *Set) Len() int { return len(s.cases) }

// Empty reports whether no case is visible.
func (s *Set) Empty() bool { return s.Size() == 0 }

// Case returns the i-th visible case, or nil when i is out of range.
func (s *Set) Case(i int) *Case {
	if i < 0 || i >= s.Size() {
		return nil
	}
	if s.filter != nil {
		return s.cases[s.view[i]]
	}
	return s.cases[i]
}

// At returns the i-th stored case ignoring the filter, or nil when out of range.
func (s *Set) At(i int) *Case {
	if i < 0 || i >= len(s.cases) {
		return nil
	}
	return s.cases[i]
}

// Cases returns the visible cases in order.
func (s *Set) Cases() []*Case {
	out := make([]*Case, 0, s.Size())
	for i := range s.Size() {
		out = append(out, s.Case(i))
	}
	return out
}

// Index returns the position of c among all stored cases, or -1.
func (s *Set) Index(c *Case) int {
	return slices.Index(s.cases, c)
}

// Find returns the stored case equal to c, or nil.
func (s *Set) Find(c *Case) *Case {
	if i := slices.IndexFunc(s.cases, c.Equal); i >= 0 {
		return s.cases[i]
	}
	return nil
}

// CollectCompletedCases returns the completed cases of the given experiments
// in storage order.
func (s *Set) CollectCompletedCases(labels []string) ([]*Case, error) {
	for _, l := range labels {
		if _, ok := s.expIndex[l]; !ok {
			return nil, casaerr.New(casaerr.UndefinedValue, "Set.CollectCompletedCases", "unknown experiment %s", l)
		}
	}
	idx := s.union(labels)
	slices.Sort(idx)
	var out []*Case
	for _, i := range idx {
		if s.cases[i].State() == Completed {
			out = append(out, s.cases[i])
		}
	}
	return out, nil
}

// ExperimentNames lists experiment labels in insertion order.
func (s *Set) ExperimentNames() []string { return slices.Clone(s.expNames) }

// IndexOf returns the case indices of an experiment.
func (s *Set) IndexOf(label string) []int { return slices.Clone(s.expIndex[label]) }
