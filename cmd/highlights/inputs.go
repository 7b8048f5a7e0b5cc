package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// readSources expands --input. A .txt file lists one source per line; blank lines and
// lines starting with # are skipped. Anything else is a single source (path or URL).
func readSources(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("--input is required")
	}

	if !strings.EqualFold(filepath.Ext(input), ".txt") {
		return []string{input}, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open source list: %w", err)
	}
	defer f.Close()

	var sources []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sources = append(sources, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source list: %w", err)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("source list %s is empty", input)
	}

	return sources, nil
}
