package domain

import (
	"sort"
)

// Snapshot is an immutable, versioned collection of keys and segments. All
// evaluation happens against exactly one snapshot; an update produces a new
// snapshot, never a mutation of an existing one. Keys and segments are held
// in an arena indexed by identifier so that references between them stay
// plain strings.
type Snapshot struct {
	version  string
	keys     []Key
	segments []Segment

	keyIndex     map[string]int
	segmentIndex map[string]int
}

// NewSnapshot builds a snapshot from its version and contents. The slices
// are copied; callers may not rely on later mutation being visible.
func NewSnapshot(version string, keys []Key, segments []Segment) *Snapshot {
	s := &Snapshot{
		version:      version,
		keys:         append([]Key(nil), keys...),
		segments:     append([]Segment(nil), segments...),
		keyIndex:     make(map[string]int, len(keys)),
		segmentIndex: make(map[string]int, len(segments)),
	}
	for i := range s.keys {
		s.keyIndex[s.keys[i].Name] = i
	}
	for i := range s.segments {
		s.segmentIndex[s.segments[i].Name] = i
	}
	return s
}

// Version returns the snapshot's logical version.
func (s *Snapshot) Version() string { return s.version }

// Key returns the named key, if present.
func (s *Snapshot) Key(name string) (*Key, bool) {
	i, ok := s.keyIndex[name]
	if !ok {
		return nil, false
	}
	return &s.keys[i], true
}

// Segment returns the named segment, if present.
func (s *Snapshot) Segment(name string) (*Segment, bool) {
	i, ok := s.segmentIndex[name]
	if !ok {
		return nil, false
	}
	return &s.segments[i], true
}

// Keys returns the snapshot's keys in document order.
func (s *Snapshot) Keys() []Key {
	return append([]Key(nil), s.keys...)
}

// Segments returns the snapshot's segments in document order.
func (s *Snapshot) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}

// KeyNames returns all key names sorted lexically.
func (s *Snapshot) KeyNames() []string {
	names := make([]string, 0, len(s.keys))
	for i := range s.keys {
		names = append(names, s.keys[i].Name)
	}
	sort.Strings(names)
	return names
}

// SegmentNames returns all segment names sorted lexically.
func (s *Snapshot) SegmentNames() []string {
	names := make([]string, 0, len(s.segments))
	for i := range s.segments {
		names = append(names, s.segments[i].Name)
	}
	sort.Strings(names)
	return names
}
