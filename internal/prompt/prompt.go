// Package prompt provides interactive prompts for presence commands.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/profilecard/presence/internal/output"
)

// errCanceled is returned when input ends before an answer is given.
var errCanceled = errors.New("prompt canceled")

// IsCanceled reports whether err means the user ended input (Ctrl-D).
func IsCanceled(err error) bool {
	return errors.Is(err, errCanceled)
}

// Prompter handles interactive prompts.
type Prompter struct {
	out    *output.Writer
	reader *bufio.Reader
	fd     int
	isTTY  func(fd int) bool
}

// New creates a Prompter reading from stdin.
func New(out *output.Writer) *Prompter {
	return &Prompter{
		out:    out,
		reader: bufio.NewReader(os.Stdin),
		fd:     int(os.Stdin.Fd()),
		isTTY:  term.IsTerminal,
	}
}

// NewWithReader creates a Prompter reading from r, which is never treated
// as a terminal.
func NewWithReader(out *output.Writer, r io.Reader) *Prompter {
	return &Prompter{
		out:    out,
		reader: bufio.NewReader(r),
		fd:     -1,
		isTTY:  func(int) bool { return false },
	}
}

// CanPrompt returns true if interactive prompts are available.
func (p *Prompter) CanPrompt() bool {
	return p.out.Terminal().InteractiveEnabled() && !p.out.NoInput
}

func (p *Prompter) readLine() (string, error) {
	input, err := p.reader.ReadString('\n')
	if errors.Is(err, io.EOF) && input == "" {
		return "", errCanceled
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(input), nil
}

// Confirm prompts for a yes/no confirmation.
func (p *Prompter) Confirm(message string, defaultValue bool) (bool, error) {
	defaultStr := "y/N"
	if defaultValue {
		defaultStr = "Y/n"
	}

	p.out.Print("%s [%s]: ", message, defaultStr)

	input, err := p.readLine()
	if err != nil {
		return defaultValue, err
	}

	input = strings.ToLower(input)
	if input == "" {
		return defaultValue, nil
	}

	return input == "y" || input == "yes", nil
}

// Input prompts for a line of text. An empty answer yields defaultValue.
func (p *Prompter) Input(message, defaultValue string) (string, error) {
	if defaultValue != "" {
		p.out.Print("%s [%s]: ", message, defaultValue)
	} else {
		p.out.Print("%s: ", message)
	}

	input, err := p.readLine()
	if err != nil {
		return "", err
	}

	if input == "" {
		return defaultValue, nil
	}

	return input, nil
}

// Password prompts for a secret. Input is hidden on a terminal.
func (p *Prompter) Password(prompt string) (string, error) {
	p.out.Print("%s: ", prompt)

	if !p.isTTY(p.fd) {
		return p.readLine()
	}

	secret, err := term.ReadPassword(p.fd)
	p.out.Println()

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimSpace(string(secret)), nil
}

// Select prompts the user to select from a list of options and returns the
// chosen index.
func (p *Prompter) Select(message string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, errors.New("nothing to select")
	}

	p.out.Println(message)
	for i, opt := range options {
		p.out.Print("  [%d] %s\n", i+1, opt)
	}
	p.out.Println()

	for {
		if len(options) == 1 {
			p.out.Print("Select [1]: ")
		} else {
			p.out.Print("Select [1-%d]: ", len(options))
		}

		input, err := p.readLine()
		if err != nil {
			return -1, err
		}

		if input == "" {
			continue
		}

		num, err := strconv.Atoi(input)
		if err != nil || num < 1 || num > len(options) {
			p.out.Warning("Invalid selection. Please enter a number between 1 and %d", len(options))
			continue
		}

		return num - 1, nil
	}
}

// SteamKey prompts for a Steam Web API key with hidden input.
func (p *Prompter) SteamKey() (string, error) {
	p.out.Muted("Get a key at https://steamcommunity.com/dev/apikey")

	return p.Password("Steam Web API key")
}
