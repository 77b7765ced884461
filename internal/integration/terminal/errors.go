package terminal

import "errors"

// ErrPTYNotSupported is returned when ModePTY is requested on a platform
// without pseudo-terminals.
var ErrPTYNotSupported = errors.New("PTY not supported on this platform")
