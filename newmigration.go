package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Numbering modes accepted by CreateMigration.
const (
	ModeInt       = "int"
	ModeTimestamp = "timestamp"
)

var (
	nonAlnumRe  = regexp.MustCompile("[^a-z0-9]+")
	intPrefixRe = regexp.MustCompile(`^([0-9]+)_`)
)

// now is swapped in tests.
var now = time.Now

// CreateMigration writes an empty migration file into dir and returns its path.
// description is snake_cased into the filename.
// mode: "int" (default) prefixes the next zero-padded sequence number after
// the highest one present; "timestamp" prefixes the UTC time as
// YYYYMMDDHHMMSS.
func CreateMigration(dir, description, mode string) (string, error) {
	desc := snakeCase(description)
	if desc == "" {
		return "", fmt.Errorf("a description is required")
	}

	var prefix string
	switch strings.ToLower(mode) {
	case ModeTimestamp:
		prefix = now().UTC().Format("20060102150405")
	case ModeInt, "":
		migs, err := LoadMigrations(dir)
		if err != nil {
			return "", fmt.Errorf("failed to scan migration files: %w", err)
		}
		max, width := 0, 3
		for _, m := range migs {
			match := intPrefixRe.FindStringSubmatch(m.Name)
			if match == nil {
				continue
			}
			num, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if num > max {
				max = num
			}
			if len(match[1]) > width {
				width = len(match[1])
			}
		}
		prefix = fmt.Sprintf("%0*d", width, max+1)
	default:
		return "", fmt.Errorf("mode must be one of: %s, %s", ModeInt, ModeTimestamp)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, desc, Ext))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create migration file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString("-- Write your migration SQL here\n"); err != nil {
		return "", fmt.Errorf("failed to write migration file %s: %w", path, err)
	}
	return path, nil
}

// snakeCase lowercases s and joins its alphanumeric runs with underscores.
func snakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
