// Package cli implements the interactive side of archerctl.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"archer/internal/errors"

	"golang.org/x/term"
)

// Prompter reads answers from the user.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer

	// readPassword is a test seam for term.ReadPassword.
	readPassword func(fd int) ([]byte, error)
}

// NewPrompter reads lines from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		reader:       bufio.NewReader(in),
		out:          out,
		readPassword: term.ReadPassword,
	}
}

// Text prints prompt and returns one trimmed line.
func (p *Prompter) Text(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", errors.WithStack(err)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}

		return "", errors.WithStack(err)
	}

	return strings.TrimSpace(line), nil
}

// Password reads a secret without echo when stdin is a terminal.
func (p *Prompter) Password(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p.Text(prompt)
	}

	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", errors.WithStack(err)
	}
	pw, err := p.readPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}

	return string(pw), nil
}

// Println writes a line to the output.
func (p *Prompter) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

// Printf writes formatted output.
func (p *Prompter) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}
