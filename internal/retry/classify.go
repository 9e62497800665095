package retry

import (
	"fmt"
	"strings"
)

// Condition is a recognised transient fee-race failure. Any error that does
// not map to a Condition is fatal.
type Condition int

const (
	BaseFeeBelowBlock Condition = iota + 1
	FeeExceedsThreshold
	MaxPossibleFee
)

func (c Condition) String() string {
	switch c {
	case BaseFeeBelowBlock:
		return "BaseFeeBelowBlock"
	case FeeExceedsThreshold:
		return "FeeExceedsThreshold"
	case MaxPossibleFee:
		return "MaxPossibleFee"
	default:
		return fmt.Sprintf("Condition(%d)", int(c))
	}
}

// patterns are matched case-insensitively against the full error text.
var patterns = []struct {
	cond Condition
	text string
}{
	{BaseFeeBelowBlock, "max fee per gas less than block base fee"},
	{FeeExceedsThreshold, "exceeds threshold"},
	{FeeExceedsThreshold, "exceeds the configured cap"},
	{MaxPossibleFee, "max possible fee"},
}

// Classify maps err to a transient Condition.
func Classify(err error) (Condition, bool) {
	if err == nil {
		return 0, false
	}
	s := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(s, p.text) {
			return p.cond, true
		}
	}
	return 0, false
}

// IsTransient reports whether err is worth another attempt after a delay.
func IsTransient(err error) bool {
	_, ok := Classify(err)
	return ok
}
