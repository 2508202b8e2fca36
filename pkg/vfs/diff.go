package vfs

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStats compares two versions of a file and returns the number of
// line fragments added and removed, used in tool result summaries.
func DiffStats(oldContent, newContent string) (added, removed int) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		}
	}
	return
}

// DiffText renders a patch-format diff between two versions of a file.
// Returns "" when the contents are identical.
func DiffText(oldContent, newContent string) string {
	if oldContent == newContent {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patches := dmp.PatchMake(oldContent, diffs)
	if len(patches) == 0 {
		return ""
	}
	return dmp.PatchToText(patches)
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 1
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
