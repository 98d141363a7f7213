package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/junocash-tools/juno-addrgen/pkg/addrgen"
)

// jsonVersion tags every --json document.
const jsonVersion = "v1"

// Codes for arguments rejected before derivation.
const (
	codeIndexInvalid = "index_invalid"
	codeCountInvalid = "count_invalid"
)

var (
	red        = lipgloss.Color(completeColor("#FF4444", "196", "9"))
	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)
)

// fail reports a derivation error and returns the matching exit error.
func (a *app) fail(jsonOut bool, err error) error {
	code := addrgen.CodeOf(err)

	var message string
	var ae *addrgen.Error
	switch {
	case errors.As(err, &ae):
		message = ae.Message
	case code == addrgen.ErrInternal:
		message = err.Error()
	}

	log.Debugf("Derivation failed: %v", err)
	return a.writeErr(jsonOut, string(code), message)
}

// writeErr writes an error as JSON on stdout or as text on stderr.
//
// Returns:
//   - An *exitError with status 1
func (a *app) writeErr(jsonOut bool, code, message string) error {
	if jsonOut {
		_ = json.NewEncoder(a.stdout).Encode(map[string]interface{}{
			"version": jsonVersion,
			"status":  addrgen.StatusErr,
			"error":   code,
			"message": message,
		})
		return &exitError{code: 1}
	}

	if message == "" {
		a.printError(code)
	} else {
		a.printError(code + ": " + message)
	}
	return &exitError{code: 1}
}

func (a *app) writeJSON(v interface{}) error {
	if err := json.NewEncoder(a.stdout).Encode(v); err != nil {
		a.printError(err.Error())
		return &exitError{code: 1}
	}
	return nil
}

// printError writes msg to stderr, styled when stderr is a terminal.
func (a *app) printError(msg string) {
	if isTerminal(a.stderr) {
		fmt.Fprintln(a.stderr, errorStyle.Render(msg))
		return
	}
	fmt.Fprintln(a.stderr, msg)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func completeColor(truecolor, ansi256, ansi string) string {
	//nolint: exhaustive
	switch lipgloss.ColorProfile() {
	case termenv.TrueColor:
		return truecolor
	case termenv.ANSI256:
		return ansi256
	}
	return ansi
}
