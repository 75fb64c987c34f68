package game

import "fmt"

// Kind identifies a game variant. The set is closed: unknown kinds are a
// rejected request, never a runtime lookup failure.
type Kind string

const (
	KindRPS Kind = "rps"
)

// ParseKind maps a client-supplied string onto the closed kind set.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRPS:
		return KindRPS, nil
	default:
		return "", fmt.Errorf("unknown game kind: %q", s)
	}
}

// Result is the final outcome of a completed game session. A nil Winner
// means a draw; cumulative room scoring treats a draw as a point for all
// participants.
type Result struct {
	Winner  *string
	Reason  string
	Details map[string]any
}
