package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

var errNotConfirmed = errors.New("not confirmed")

// prompter reads one line of user input.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// confirmDestroy asks the user to type the device path before a test that
// overwrites all data.
func confirmDestroy(p prompter, out io.Writer, device string, kind fmt.Stringer) error {
	fmt.Fprintf(out, "The %s test overwrites every sector of %s. All data on it will be lost.\n", kind, device)
	answer, err := p.Prompt("Type the device path to continue: ")
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return errNotConfirmed
		}
		return err
	}
	if strings.TrimSpace(answer) != device {
		return fmt.Errorf("%w: %q does not match %s", errNotConfirmed, strings.TrimSpace(answer), device)
	}
	return nil
}

// askUser prompts on the terminal with line editing.
func askUser(out io.Writer, device string, kind fmt.Stringer) error {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)
	return confirmDestroy(l, out, device, kind)
}
