package tracker

import (
	"fmt"
	"strings"
)

// Kind identifies a tracker family. The set is closed.
type Kind int

// Tracker kinds.
const (
	EyeLink Kind = iota + 1
	SMI
	Tobii
	EyeTribe
	Dummy
)

var kindNames = map[Kind]string{ //nolint:gochecknoglobals // lookup table
	EyeLink:  "eyelink",
	SMI:      "smi",
	Tobii:    "tobii",
	EyeTribe: "eyetribe",
	Dummy:    "dummy",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a case-insensitive name to a Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: tracker %q", ErrUnsupported, name)
}
