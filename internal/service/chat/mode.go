package chat

import "fmt"

// Mode is the conversation mode: scripted tree or free-form AI. It is an
// explicit enum internally and serializes to its wire string only at the
// API edge.
type Mode int

const (
	ModeTree Mode = iota
	ModeAI
)

const (
	modeTreeWire = "tree"
	modeAIWire   = "ai"
)

func (m Mode) String() string {
	switch m {
	case ModeAI:
		return modeAIWire
	default:
		return modeTreeWire
	}
}

// ParseMode maps a wire string to a Mode. Empty defaults to tree.
func ParseMode(s string) (Mode, error) {
	switch s {
	case modeTreeWire, "":
		return ModeTree, nil
	case modeAIWire:
		return ModeAI, nil
	default:
		return ModeTree, fmt.Errorf("unknown mode %q", s)
	}
}
