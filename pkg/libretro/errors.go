// Package libretro keeps the host side of the libretro environment protocol:
// the shared AV info, core options, paths and the environment dispatcher.
package libretro

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap one of these, test with errors.Is.
var (
	ErrLifecycle           = errors.New("lifecycle violation")
	ErrPluginRejected      = errors.New("core rejected the call")
	ErrValidation          = errors.New("validation failed")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrUnsupported         = errors.New("unsupported feature")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
