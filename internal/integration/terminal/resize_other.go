//go:build !unix

package terminal

import "os"

func watchResize(_, _ *os.File) (stop func()) {
	return func() {}
}
