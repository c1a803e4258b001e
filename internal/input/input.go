// Package input resolves secret flag values given literally, as - (stdin) or
// with @file syntax, so credentials need not appear in the process list.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmpty is returned when stdin or the file holds no non-empty line.
var ErrEmpty = errors.New("no value found")

// Secret expands v. "-" reads the first non-empty line of stdin, "@path" the
// first non-empty line of the file; anything else is returned unchanged.
func Secret(v string, stdin io.Reader) (string, error) {
	switch {
	case v == "-":
		line, err := FirstLine(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return line, nil
	case strings.HasPrefix(v, "@"):
		path := strings.TrimPrefix(v, "@")
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		line, err := FirstLine(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return line, nil
	default:
		return v, nil
	}
}

// FirstLine returns the first non-empty line of r, trimmed.
func FirstLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", ErrEmpty
}
