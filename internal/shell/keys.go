package shell

import (
	"fmt"
	"strings"
)

// Key is a navigation key.
type Key int

const (
	KeyLeft Key = iota
	KeyRight
)

func (k Key) String() string {
	if k == KeyRight {
		return "right"
	}
	return "left"
}

// ParseKey accepts "left" and "right" as well as the browser key names
// "ArrowLeft" and "ArrowRight".
func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "arrowleft":
		return KeyLeft, nil
	case "right", "arrowright":
		return KeyRight, nil
	default:
		return 0, fmt.Errorf("unknown key %q", s)
	}
}
