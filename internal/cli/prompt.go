package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadPath reads an image path from the first non-blank line of r.
func ReadPath(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read image path: %w", err)
	}
	return "", errors.New("no image path given on standard input")
}
