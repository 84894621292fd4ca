package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxLabels      = 20
	MaxLabelLength = 50
)

// NormalizeLabels trims, drops blanks and duplicates, keeping first-seen order.
func NormalizeLabels(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, l := range in {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if utf8.RuneCountInString(l) > MaxLabelLength {
			return nil, fmt.Errorf("label %q is longer than %d characters", l, MaxLabelLength)
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	if len(out) > MaxLabels {
		return nil, fmt.Errorf("at most %d labels are allowed", MaxLabels)
	}
	return out, nil
}
