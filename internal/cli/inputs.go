package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// collectInputs gathers raw candidate paths in order: positional arguments,
// then every --from-file, then stdin. Blank lines are ignored; other lines are
// kept verbatim apart from the line terminator.
func collectInputs(args, fromFiles []string, useStdin bool, stdin io.Reader) ([]string, error) {
	raw := append([]string(nil), args...)

	for _, name := range fromFiles {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		lines, err := readLines(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		raw = append(raw, lines...)
	}

	if useStdin {
		lines, err := readLines(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = append(raw, lines...)
	}

	return raw, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
