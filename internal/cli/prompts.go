package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptPassword prompts for a password with hidden input.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

// promptNewPassword prompts for a new password with confirmation.
func promptNewPassword() (string, error) {
	password, err := promptPassword("Enter keystore password: ")
	if err != nil {
		return "", err
	}

	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// readMnemonic reads the phrase from r. Terminals get a prompt; piped input
// is read to the end.
func readMnemonic(r io.Reader, interactive bool) (string, error) {
	if interactive {
		fmt.Fprint(os.Stderr, "Enter mnemonic phrase: ")
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading mnemonic: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading mnemonic: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
