package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// SafeFilename builds a filesystem-safe Markdown filename from a topic,
// keeping letters and digits (including CJK) and collapsing everything
// else to underscores.
func SafeFilename(topic string, now time.Time) string {
	name := unsafeChars.ReplaceAllString(strings.TrimSpace(topic), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "report"
	}
	if runes := []rune(name); len(runes) > 60 {
		name = string(runes[:60])
	}
	return fmt.Sprintf("%s_%s.md", name, now.Format("20060102_150405"))
}

// Save writes the report under dir, creating the directory if needed, and
// returns the written path.
func Save(dir, topic, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	path := filepath.Join(dir, SafeFilename(topic, time.Now()))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
