package edit

import (
	"fmt"
	"strings"
)

// Filter is a visual transform applied after the tonal adjustments.
type Filter int

const (
	Grayscale Filter = iota
	InvertColors
	MirrorHorizontal

	filterCount
)

var filterNames = [filterCount]string{
	Grayscale:        "grayscale",
	InvertColors:     "invertColors",
	MirrorHorizontal: "mirrorHorizontal",
}

var filterAliases = map[string]Filter{
	"greyscale":     Grayscale,
	"invert":        InvertColors,
	"invert_colors": InvertColors,
	"mirror":        MirrorHorizontal,
	"mirror_x":      MirrorHorizontal,
}

func (f Filter) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Filter(%d)", int(f))
	}
	return filterNames[f]
}

func (f Filter) Valid() bool {
	return f >= 0 && f < filterCount
}

// Filters lists every filter in declaration order.
func Filters() []Filter {
	out := make([]Filter, filterCount)
	for i := range out {
		out[i] = Filter(i)
	}
	return out
}

// ParseFilter resolves a case-insensitive filter identifier.
func ParseFilter(name string) (Filter, error) {
	name = strings.TrimSpace(name)
	for i, n := range filterNames {
		if strings.EqualFold(n, name) {
			return Filter(i), nil
		}
	}
	if f, ok := filterAliases[strings.ToLower(name)]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}
