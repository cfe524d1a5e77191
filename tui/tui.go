package tui

import (
	"os"

	"github.com/mattn/go-isatty"
)

var (
	// HasTTY reports whether stdout is a terminal. Tables and styles are
	// rendered plain when it is not.
	HasTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
)
