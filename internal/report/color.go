package report

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
)

// ShouldUseColor reports whether w is a terminal that accepts ANSI colors.
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func paint(s, code string, color bool) string {
	if !color || code == "" {
		return s
	}
	return code + s + colorReset
}
