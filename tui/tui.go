// Package tui renders command output for terminals and degrades to plain
// text when stdout is not a TTY.
package tui

import (
	"os"

	"github.com/mattn/go-isatty"
)

var (
	HasTTY = isatty.IsTerminal(os.Stdout.Fd())
)
