package shelf

import (
	"fmt"
	"strings"
)

// Mode is the open mode of a shelf, fixed when it is opened.
type Mode byte

const (
	// ModeCreate opens read-write, creating the store if it is absent.
	ModeCreate Mode = 'c'
	// ModeNew opens read-write on an empty store, creating it if absent
	// and deleting every key otherwise.
	ModeNew Mode = 'n'
	// ModeWrite opens read-write; the store must exist.
	ModeWrite Mode = 'w'
	// ModeRead opens read-only; the store must exist.
	ModeRead Mode = 'r'
)

// ParseMode parses a single-character mode flag, ignoring case.
func ParseMode(s string) (Mode, error) {
	if len(s) == 1 {
		switch m := Mode(strings.ToLower(s)[0]); m {
		case ModeCreate, ModeNew, ModeWrite, ModeRead:
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want c, n, w or r)", ErrInvalidMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeCreate, ModeNew, ModeWrite, ModeRead:
		return string(rune(m))
	}
	return fmt.Sprintf("Mode(%d)", byte(m))
}

// CanCreate reports whether opening in m creates an absent store.
func (m Mode) CanCreate() bool { return m == ModeCreate || m == ModeNew }

// Writable reports whether m permits Set and Delete.
func (m Mode) Writable() bool { return m == ModeCreate || m == ModeNew || m == ModeWrite }

// Clears reports whether opening in m deletes existing keys.
func (m Mode) Clears() bool { return m == ModeNew }

func (m Mode) valid() bool {
	return m == ModeCreate || m == ModeNew || m == ModeWrite || m == ModeRead
}
