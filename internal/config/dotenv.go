package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// parseDotEnv reads KEY=VALUE lines. Blank lines, # comments and lines without '=' are ignored,
// an "export " prefix is accepted, and one pair of matching quotes around a value is stripped.
// A later line for the same key wins.
func parseDotEnv(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("dotenv line %d: empty key", lineNo)
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dotenv: %w", err)
	}
	return values, nil
}

func unquote(v string) string {
	if len(v) < 2 {
		return v
	}
	if first, last := v[0], v[len(v)-1]; first == last && (first == '"' || first == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

// applyDotEnv loads path into the process environment without overriding variables that are
// already set, and returns the keys it applied in sorted order. A missing file applies nothing.
func applyDotEnv(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dotenv: %w", err)
	}
	defer f.Close()

	values, err := parseDotEnv(f)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(values))
	for key, value := range values {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return applied, fmt.Errorf("set %s: %w", key, err)
		}
		applied = append(applied, key)
	}
	sort.Strings(applied)
	return applied, nil
}
