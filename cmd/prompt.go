package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinIsTerminal reports whether prompting makes sense. Can be swapped for tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirm asks a yes/no question on out and reads the answer from in.
// Anything but an explicit yes, including EOF, is a no.
func confirm(prompt string, in io.Reader, out io.Writer) bool {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			fmt.Fprintln(out)
			return false
		}
		input = strings.TrimSpace(strings.ToLower(input))

		switch input {
		case "y", "yes":
			return true
		case "n", "no", "":
			return false
		default:
			fmt.Fprintf(out, "Invalid input: %q. Please answer y or n.\n", input)
			if err != nil {
				return false
			}
		}
	}
}
