package main

import (
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasi-executor/errors"
)

var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#FF6B6B")).
			Padding(0, 1)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// diagnostic renders err for stderr. Styling is applied only on a terminal
// so that redirected output stays plain.
func diagnostic(err error, styled bool) string {
	class := string(errors.ClassOf(err))
	var path string
	var e *errors.Error
	if stderrors.As(err, &e) && len(e.Path) > 0 {
		path = strings.Join(e.Path, ".")
	}

	if !styled {
		var b strings.Builder
		b.WriteString("wasi-exec: ")
		b.WriteString(class)
		b.WriteString(" error")
		if path != "" {
			b.WriteString(" at ")
			b.WriteString(path)
		}
		b.WriteString(": ")
		b.WriteString(err.Error())
		return b.String()
	}

	parts := []string{labelStyle.Render(class + " error")}
	if path != "" {
		parts = append(parts, pathStyle.Render(path))
	}
	parts = append(parts, detailStyle.Render(err.Error()))
	return strings.Join(parts, " ")
}
