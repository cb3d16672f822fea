// Package source describes where table data comes from and turns those
// descriptions into rows of display strings.
package source

import (
	"slices"
	"time"
)

// Kind identifies the variant of a Descriptor.
type Kind int

const (
	KindStatic Kind = iota
	KindFile
	KindRemote
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindFile:
		return "file"
	case KindRemote:
		return "http"
	default:
		return "unknown"
	}
}

// Descriptor is a closed set of table sources: Static, File and Remote.
// Adding a source means adding a variant here and a case in Loader.Fetch.
type Descriptor interface {
	Kind() Kind
	isDescriptor()
}

// Static rows embedded in the configuration. Never refreshed.
type Static struct {
	Rows [][]string
}

// File is a local JSON file re-read every Interval.
type File struct {
	Path     string
	Interval time.Duration
	Mapping  []string // nil means absent
}

// Remote is an HTTP endpoint fetched with GET every Interval.
type Remote struct {
	URL      string
	Interval time.Duration
	Mapping  []string // nil means absent
}

func (Static) Kind() Kind { return KindStatic }
func (File) Kind() Kind   { return KindFile }
func (Remote) Kind() Kind { return KindRemote }

func (Static) isDescriptor() {}
func (File) isDescriptor()   {}
func (Remote) isDescriptor() {}

// KindOf returns the kind of d. A nil descriptor reports KindStatic with no rows.
func KindOf(d Descriptor) Kind {
	if d == nil {
		return KindStatic
	}
	return d.Kind()
}

// TargetOf returns the path or URL a descriptor reads from. Static sources
// have no target.
func TargetOf(d Descriptor) string {
	switch v := d.(type) {
	case File:
		return v.Path
	case Remote:
		return v.URL
	default:
		return ""
	}
}

// IntervalOf returns the refresh interval of d, zero for static sources.
func IntervalOf(d Descriptor) time.Duration {
	switch v := d.(type) {
	case File:
		return v.Interval
	case Remote:
		return v.Interval
	default:
		return 0
	}
}

// MappingOf returns the field mapping of d, nil for static sources.
func MappingOf(d Descriptor) []string {
	switch v := d.(type) {
	case File:
		return v.Mapping
	case Remote:
		return v.Mapping
	default:
		return nil
	}
}

// SameSource reports whether a and b read from the same place: same kind and
// same path or URL. Two static descriptors are always the same source.
func SameSource(a, b Descriptor) bool {
	return KindOf(a) == KindOf(b) && TargetOf(a) == TargetOf(b)
}

// Equal reports whether a and b are identical descriptors, including
// interval, mapping and static rows.
func Equal(a, b Descriptor) bool {
	if !SameSource(a, b) {
		return false
	}
	if IntervalOf(a) != IntervalOf(b) {
		return false
	}
	ma, mb := MappingOf(a), MappingOf(b)
	if (ma == nil) != (mb == nil) || !slices.Equal(ma, mb) {
		return false
	}
	sa, okA := a.(Static)
	sb, okB := b.(Static)
	if okA && okB {
		return slices.EqualFunc(sa.Rows, sb.Rows, slices.Equal[[]string])
	}
	return true
}

// CloneRows returns a deep copy of rows.
func CloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = slices.Clone(row)
	}
	return out
}
