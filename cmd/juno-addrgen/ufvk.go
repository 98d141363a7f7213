package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stdinKey is the --ufvk value that reads the key from standard input.
const stdinKey = "-"

// maxKeyInput bounds how much is read from a key file or stdin.
const maxKeyInput = 1 << 16

// keyFlags are the mutually exclusive viewing key sources of a command.
type keyFlags struct {
	ufvk string
	file string
	env  string
}

func (k *keyFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&k.ufvk, "ufvk", "", "UFVK (jview1...), or - to read it from stdin")
	f.StringVar(&k.ufvk, "uvfk", "", "Alias for --ufvk")
	_ = f.MarkHidden("uvfk")
	f.StringVar(&k.file, "ufvk-file", "", "Read the UFVK from a file")
	f.StringVar(&k.env, "ufvk-env", "", "Read the UFVK from the named environment variable")
}

// read returns the trimmed viewing key from the single configured source.
// An empty key is returned as is and left for the deriver to reject.
//
// Parameters:
//   - stdin: Source for --ufvk -
//   - prompt: Where the hidden prompt is written when stdin is a terminal
//
// Returns:
//   - The viewing key text
//   - A usage error if zero or several sources are set, or a source
//     cannot be read
func (k *keyFlags) read(stdin io.Reader, prompt io.Writer) (string, error) {
	ufvk := strings.TrimSpace(k.ufvk)
	file := strings.TrimSpace(k.file)
	env := strings.TrimSpace(k.env)

	var sources int
	for _, s := range []string{ufvk, file, env} {
		if s != "" {
			sources++
		}
	}
	if sources == 0 {
		return "", usagef("ufvk is required (use --ufvk, --ufvk-file, or --ufvk-env)")
	}
	if sources > 1 {
		return "", usagef("ufvk source conflict (use only one of --ufvk, --ufvk-file, --ufvk-env)")
	}

	switch {
	case ufvk == stdinKey:
		return readStdin(stdin, prompt)
	case ufvk != "":
		return ufvk, nil
	case env != "":
		return strings.TrimSpace(os.Getenv(env)), nil
	}

	f, err := os.Open(file)
	if err != nil {
		return "", usagef("read ufvk file (%s): %w", filepath.Base(file), err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxKeyInput))
	if err != nil {
		return "", usagef("read ufvk file (%s): %w", filepath.Base(file), err)
	}
	return strings.TrimSpace(string(b)), nil
}

// readStdin reads the key from stdin, without echo when stdin is a terminal.
func readStdin(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint: gosec
		fmt.Fprint(prompt, "UFVK: ")
		b, err := term.ReadPassword(int(f.Fd())) //nolint: gosec
		fmt.Fprintln(prompt)
		if err != nil {
			return "", usagef("could not read ufvk: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	b, err := io.ReadAll(io.LimitReader(stdin, maxKeyInput))
	if err != nil {
		return "", usagef("could not read ufvk from stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
