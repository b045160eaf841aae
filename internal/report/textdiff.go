// Package report renders change-sets and incremental deltas as markdown.
// All output is deterministic: no timestamps beyond what the change data
// itself carries, stable ordering, \n newlines only.
package report

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

// textDiffOptions controls unified-patch generation for multiline text
// field changes.
type textDiffOptions struct {
	// maxBytes guards input size (old+new). When exceeded a placeholder
	// body is returned. 0 means no limit.
	maxBytes int
	// context is the number of context lines per hunk. 0 defaults to 3.
	context int
}

// unified produces a classic unified patch for the old and new bodies of a
// text field. Returns the patch body and whether it was omitted for size.
func unified(name string, old, new string, opt textDiffOptions) (string, bool) {
	if opt.maxBytes > 0 && len(old)+len(new) > opt.maxBytes {
		return omitted(name), true
	}
	ctx := opt.context
	if ctx <= 0 {
		ctx = 3
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(old),
		B:        splitLinesKeepNL(new),
		FromFile: name + " (before)",
		ToFile:   name + " (after)",
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return omitted(name), false
	}
	return s, false
}

// splitLinesKeepNL splits into lines keeping the trailing newline of each
// element, which produces stable unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

// omitted is the placeholder body when size limits are exceeded. No
// ellipses: consumers treat literal "..." as syntax, not truncation.
func omitted(name string) string {
	return fmt.Sprintf("--- %s (before)\n+++ %s (after)\n@@\n# diff omitted (oversize)\n", name, name)
}
