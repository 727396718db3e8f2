package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
//
//nolint:gochecknoglobals
var readPassword = term.ReadPassword

var errNoInput = errors.New("no input")

// prompter asks for values that were not given as flags.
type prompter struct {
	in       *bufio.Reader
	out      io.Writer
	terminal bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()

	return &prompter{
		in:       bufio.NewReader(in),
		out:      cmd.ErrOrStderr(),
		terminal: in == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Text prompts for a line of input.
func (p *prompter) Text(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}

	return p.readLine()
}

// Password prompts for a secret. On a terminal the input is not echoed.
func (p *prompter) Password(label string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", label); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}

	if !p.terminal {
		return p.readLine()
	}

	password, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)

	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return string(password), nil
}

func (p *prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}

		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}
