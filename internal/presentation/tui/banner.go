package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the nodeflow ASCII banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []string{
		"                   _       __ _               ",
		"  _ __   ___   __| | ___ / _| | _____      __",
		" | '_ \\ / _ \\ / _` |/ _ \\ |_| |/ _ \\ \\ /\\ / /",
		" | | | | (_) | (_| |  __/  _| | (_) \\ V  V / ",
		" |_| |_|\\___/ \\__,_|\\___|_| |_|\\___/ \\_/\\_/  ",
	}
	// Teal to blue gradient.
	colors := []string{"#2dd4bf", "#22d3ee", "#38bdf8", "#60a5fa", "#818cf8"}

	fmt.Fprintln(w)
	for i, line := range lines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(colors[i])))
	}
	fmt.Fprintln(w, out.String("  "+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}

// Status colours a short success or failure marker.
func Status(w io.Writer, ok bool) string {
	out := termenv.NewOutput(w)
	if ok {
		return out.String("ok").Foreground(out.Color("#22c55e")).Bold().String()
	}
	return out.String("failed").Foreground(out.Color("#ef4444")).Bold().String()
}
