package climber

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vk/treeclimb/tree"
)

var (
	// ErrCycleDetected matches any *CycleError.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrInvalidKey matches any *InvalidKeyError.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidSeparator is returned when the configured separator is empty.
	ErrInvalidSeparator = errors.New("separator must not be empty")
)

// CycleError reports a container reached a second time during one walk.
// Shared references are reported the same way as true cycles.
type CycleError struct {
	// Path is where the container was reached again.
	Path   string
	Handle tree.Handle
}

func (e *CycleError) Error() string {
	if e.Path == "" {
		return "cycle detected at the root"
	}
	return fmt.Sprintf("cycle detected at %q", e.Path)
}

// Is reports whether target is ErrCycleDetected.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// InvalidKeyError reports a key that contains the path separator.
type InvalidKeyError struct {
	Key       string
	Separator string
	// Path is the path of the container holding the key.
	Path string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("key %q cannot contain a %q character", e.Key, e.Separator)
}

// Is reports whether target is ErrInvalidKey.
func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}
