package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/eiannone/keyboard"
)

// Decision is the answer to a per-file confirmation prompt.
type Decision int

const (
	DecisionYes  Decision = iota // apply this file
	DecisionNo                   // skip this file
	DecisionAll                  // apply this and every remaining file
	DecisionQuit                 // skip everything left
)

// Confirm asks a single-key y/n/a/q question for one file.
// Enter counts as yes, Esc and Ctrl+C as quit. When no raw terminal is
// available it falls back to buffered line input.
func (w *Writer) Confirm(path string) (Decision, error) {
	prompt := MakePrompt(fmt.Sprintf(" apply %s? [y/n/a/q] ", path))
	for {
		fmt.Fprint(w.stdout, prompt+" ")

		ch, key, err := keyboard.GetSingleKey()
		if err != nil {
			fmt.Fprintln(w.stdout)
			return w.confirmLine(prompt)
		}

		switch {
		case key == keyboard.KeyEnter || ch == 'y' || ch == 'Y':
			fmt.Fprintln(w.stdout, "y")
			return DecisionYes, nil
		case ch == 'n' || ch == 'N':
			fmt.Fprintln(w.stdout, "n")
			return DecisionNo, nil
		case ch == 'a' || ch == 'A':
			fmt.Fprintln(w.stdout, "a")
			return DecisionAll, nil
		case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC || ch == 'q' || ch == 'Q':
			fmt.Fprintln(w.stdout, "q")
			return DecisionQuit, nil
		}
		// Unrecognized key; ask again
		fmt.Fprintln(w.stdout)
	}
}

func (w *Writer) confirmLine(prompt string) (Decision, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(w.stdout, prompt+" ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return DecisionQuit, fmt.Errorf("cannot read confirmation (use -y to apply or -n to preview): %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return DecisionYes, nil
		case "n", "no":
			return DecisionNo, nil
		case "a", "all":
			return DecisionAll, nil
		case "q", "quit":
			return DecisionQuit, nil
		}
	}
}
