// Package envsync applies a KEY=VALUE .env file to the process environment
// before configuration is read.
package envsync

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

type Result struct {
	EnvPath     string
	AppliedKeys []string
	Skipped     bool
	Reason      string
}

// Load sets every key from path that the environment does not already
// define. A missing file is skipped, not an error.
func Load(path string) (Result, error) {
	path = strings.TrimSpace(path)
	result := Result{EnvPath: path}
	if path == "" {
		result.Skipped = true
		result.Reason = "no env file configured"
		return result, nil
	}

	lines, err := readLines(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Skipped = true
			result.Reason = "env file not found"
			return result, nil
		}
		return result, err
	}

	values, err := parseLines(lines)
	if err != nil {
		return result, fmt.Errorf("parse %s: %w", path, err)
	}
	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return result, fmt.Errorf("set %s: %w", key, err)
		}
		result.AppliedKeys = append(result.AppliedKeys, key)
	}
	sort.Strings(result.AppliedKeys)
	return result, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer file.Close()

	lines := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return lines, nil
}

// parseLines accepts blank lines, # comments, an optional "export " prefix
// and single or double quoted values. Later keys win.
func parseLines(lines []string) (map[string]string, error) {
	values := map[string]string{}
	for number, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE", number+1)
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	return values, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	if index := strings.Index(value, " #"); index >= 0 {
		return strings.TrimSpace(value[:index])
	}
	return value
}
