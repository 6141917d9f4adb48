package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ReadCredential prompts for an identity credential. On a terminal the input
// is not echoed.
func ReadCredential(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Google credential: ")

	if term.IsTerminal(int(in.Fd())) {
		raw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read credential: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	return readLine(in)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return strings.TrimSpace(line), nil
}
