package extract

import "github.com/lukemcguire/linkscout/result"

// CandidateSet is an insertion-ordered set of candidates keyed by
// NormalizedURL. The first candidate added for a URL is kept.
type CandidateSet struct {
	items []result.LinkCandidate
	index map[string]int
}

// NewCandidateSet returns an empty set.
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{index: make(map[string]int)}
}

// Add inserts c unless its URL is already present and reports whether it
// was inserted.
func (s *CandidateSet) Add(c result.LinkCandidate) bool {
	if c.NormalizedURL == "" {
		return false
	}
	if _, ok := s.index[c.NormalizedURL]; ok {
		return false
	}
	s.index[c.NormalizedURL] = len(s.items)
	s.items = append(s.items, c)
	return true
}

// Contains reports whether url is in the set.
func (s *CandidateSet) Contains(url string) bool {
	_, ok := s.index[url]
	return ok
}

// Len returns the number of candidates.
func (s *CandidateSet) Len() int { return len(s.items) }

// Items returns the candidates in insertion order.
func (s *CandidateSet) Items() []result.LinkCandidate {
	return append([]result.LinkCandidate(nil), s.items...)
}
