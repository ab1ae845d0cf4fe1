package job

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Operation is the closed set of things a job can ask for.
type Operation int

const (
	OpPassthrough Operation = iota
	OpGrayscale
	OpWarp
	OpWarpAuto
	OpDetectCorners
)

var operationNames = [...]string{
	OpPassthrough:   "passthrough",
	OpGrayscale:     "grayscale",
	OpWarp:          "warp",
	OpWarpAuto:      "warp_auto",
	OpDetectCorners: "detect_corners",
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	return []Operation{OpPassthrough, OpGrayscale, OpWarp, OpWarpAuto, OpDetectCorners}
}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

var folder = cases.Fold()

// normalizeOperation folds case and drops separators, so "warp_auto",
// "warpAuto" and "WARP-AUTO" compare equal.
func normalizeOperation(s string) string {
	s = folder.String(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// ParseOperation resolves a wire name. Unknown names resolve to
// OpPassthrough with ok=false.
func ParseOperation(s string) (op Operation, ok bool) {
	key := normalizeOperation(s)
	for _, candidate := range Operations() {
		if normalizeOperation(candidate.String()) == key {
			return candidate, true
		}
	}
	return OpPassthrough, false
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; unknown names become passthrough.
func (o *Operation) UnmarshalText(b []byte) error {
	*o, _ = ParseOperation(string(b))
	return nil
}
