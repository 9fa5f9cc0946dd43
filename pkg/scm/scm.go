// Package scm fetches merge request and push diffs from the Git hosting
// platforms that deliver webhooks to this service.
package scm

import (
	"strings"
)

// Change is one changed file in a merge request or push diff.
type Change struct {
	Diff      string `json:"diff"`
	NewPath   string `json:"new_path"`
	OldPath   string `json:"old_path,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Deleted   bool   `json:"deleted_file,omitempty"`
	Renamed   bool   `json:"renamed_file,omitempty"`
}

// CountDiffLines counts added and removed lines in a unified diff fragment.
// File headers (+++, ---) are not counted.
func CountDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

// ParseUnifiedDiff splits a raw multi-file unified diff into per-file
// changes. Platforms that only expose a single diff document (gitea, coding)
// go through this to reach the same Change shape as the API-backed clients.
func ParseUnifiedDiff(raw string) []Change {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var changes []Change
	sections := strings.Split(raw, "diff --git ")
	for _, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		change := parseDiffSection(section)
		if change.NewPath == "" && change.OldPath == "" {
			continue
		}
		changes = append(changes, change)
	}
	return changes
}

func parseDiffSection(section string) Change {
	var change Change
	lines := strings.Split(section, "\n")
	if len(lines) == 0 {
		return change
	}
	// First line holds "a/old/path b/new/path".
	for _, field := range strings.Fields(lines[0]) {
		if strings.HasPrefix(field, "a/") {
			change.OldPath = strings.TrimPrefix(field, "a/")
		}
		if strings.HasPrefix(field, "b/") {
			change.NewPath = strings.TrimPrefix(field, "b/")
		}
	}
	body := make([]string, 0, len(lines))
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "deleted file mode"):
			change.Deleted = true
		case strings.HasPrefix(line, "rename from"), strings.HasPrefix(line, "rename to"):
			change.Renamed = true
		case strings.HasPrefix(line, "+++ b/"):
			change.NewPath = strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "--- a/"):
			change.OldPath = strings.TrimPrefix(line, "--- a/")
		}
		body = append(body, line)
	}
	change.Diff = strings.Join(body, "\n")
	change.Additions, change.Deletions = CountDiffLines(change.Diff)
	return change
}
