// Package clipboard writes generated SQL to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("system clipboard is not available")

// System is the OS clipboard. It needs pbcopy, xclip, xsel, wl-copy or the
// Windows clipboard API at runtime.
type System struct{}

func (System) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Available reports whether a clipboard backend was found.
func Available() bool {
	return !clipboard.Unsupported
}
