package edit

import (
	"fmt"
	"strings"
)

// Adjustment is a numeric edit parameter.
type Adjustment int

const (
	Brightness Adjustment = iota
	Contrast
	Gamma
	RedGain
	GreenGain
	BlueGain
	Volume
	Speed

	adjustmentCount
)

var adjustmentNames = [adjustmentCount]string{
	Brightness: "brightness",
	Contrast:   "contrast",
	Gamma:      "gamma",
	RedGain:    "redGain",
	GreenGain:  "greenGain",
	BlueGain:   "blueGain",
	Volume:     "volume",
	Speed:      "speed",
}

// Short channel names kept from older front ends.
var adjustmentAliases = map[string]Adjustment{
	"r":     RedGain,
	"g":     GreenGain,
	"b":     BlueGain,
	"red":   RedGain,
	"green": GreenGain,
	"blue":  BlueGain,
}

func (a Adjustment) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Adjustment(%d)", int(a))
	}
	return adjustmentNames[a]
}

func (a Adjustment) Valid() bool {
	return a >= 0 && a < adjustmentCount
}

// Neutral is the value at which the adjustment has no effect.
func (a Adjustment) Neutral() float64 {
	switch a {
	case Brightness, Contrast:
		return 0
	default:
		return 1
	}
}

// Adjustments lists every adjustment in declaration order.
func Adjustments() []Adjustment {
	out := make([]Adjustment, adjustmentCount)
	for i := range out {
		out[i] = Adjustment(i)
	}
	return out
}

// ParseAdjustment resolves a case-insensitive adjustment name.
func ParseAdjustment(name string) (Adjustment, error) {
	name = strings.TrimSpace(name)
	for i, n := range adjustmentNames {
		if strings.EqualFold(n, name) {
			return Adjustment(i), nil
		}
	}
	if a, ok := adjustmentAliases[strings.ToLower(name)]; ok {
		return a, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAdjustment, name)
}
