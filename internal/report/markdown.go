package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"notion-watch/internal/diff"
	"notion-watch/internal/normalize"
)

// Options configures rendering.
type Options struct {
	// Heading is the top-level report title. Empty uses a default.
	Heading string
	// DiffContext is the unified-diff context for multiline text changes.
	DiffContext int
	// MaxDiffBytes caps the input size of a rendered text diff.
	// 0 means no limit.
	MaxDiffBytes int
}

const headerTemplate = `# {{.Heading}}

{{.TotalLine}}

`

type headerCtx struct {
	Heading   string
	TotalLine string
}

// Render produces the full markdown report for one or more change-sets.
// Collections render in the given order; empty change-sets render as a
// single "no changes" line under their heading.
func Render(sets []diff.ChangeSet, opts Options) []byte {
	heading := opts.Heading
	if heading == "" {
		heading = "Database changes"
	}
	var totals diff.Summary
	for _, cs := range sets {
		totals.Add(cs.Summary)
	}

	var buf bytes.Buffer
	t := template.Must(template.New("header").Parse(headerTemplate))
	_ = t.Execute(&buf, headerCtx{
		Heading:   heading,
		TotalLine: summaryLine(totals),
	})

	for _, cs := range sets {
		writeCollection(&buf, cs, opts)
	}
	return normalizeOutput(buf.Bytes())
}

// RenderIncremental produces the markdown fragment appended to an open
// report when an incremental delta is found. Collections with no changes
// were already omitted by the comparator, so every delta here has content.
func RenderIncremental(bd diff.BatchDelta, opts Options) []byte {
	if !bd.HasChanges {
		return nil
	}
	var buf bytes.Buffer
	buf.WriteString("\n---\n\n## Update\n\n")
	buf.WriteString(summaryLine(bd.Totals))
	buf.WriteString("\n\n")
	for _, d := range bd.Deltas {
		writeCollection(&buf, d.ChangeSet, opts)
	}
	return normalizeOutput(buf.Bytes())
}

func writeCollection(buf *bytes.Buffer, cs diff.ChangeSet, opts Options) {
	label := cs.CollectionLabel
	if label == "" {
		label = cs.CollectionID
	}
	fmt.Fprintf(buf, "## %s\n\n", label)
	if len(cs.Changes) == 0 {
		buf.WriteString("No changes.\n\n")
		return
	}
	fmt.Fprintf(buf, "%s\n\n", summaryLine(cs.Summary))

	for _, c := range cs.Changes {
		switch c.Kind {
		case diff.KindAdded:
			writeAdded(buf, c)
		case diff.KindUpdated:
			writeUpdated(buf, c, opts)
		case diff.KindDeleted:
			fmt.Fprintf(buf, "### Deleted: %s\n\n", c.Title)
		}
	}
}

func writeAdded(buf *bytes.Buffer, c diff.ChangeRecord) {
	fmt.Fprintf(buf, "### Added: %s\n\n", c.Title)
	keys := sortedKeys(c.InitialFields)
	wrote := false
	for _, k := range keys {
		v := c.InitialFields[k]
		if v == nil {
			continue
		}
		fmt.Fprintf(buf, "- **%s**: %s\n", k, displayValue(v))
		wrote = true
	}
	if wrote {
		buf.WriteString("\n")
	}
}

func writeUpdated(buf *bytes.Buffer, c diff.ChangeRecord, opts Options) {
	fmt.Fprintf(buf, "### Updated: %s\n\n", c.Title)
	for _, fc := range c.FieldChanges {
		if multiline(fc.Previous) || multiline(fc.Current) {
			body, _ := unified(fc.Name,
				normalize.Display(fc.Previous),
				normalize.Display(fc.Current),
				textDiffOptions{maxBytes: opts.MaxDiffBytes, context: opts.DiffContext})
			fmt.Fprintf(buf, "- **%s**:\n\n```diff\n%s```\n", fc.Name, ensureTrailingLF(body))
			continue
		}
		fmt.Fprintf(buf, "- **%s**: %s → %s\n", fc.Name, sideValue(fc.Previous, fc.HasPrevious), sideValue(fc.Current, fc.HasCurrent))
	}
	buf.WriteString("\n")
}

// summaryLine renders tallied counts as a single stable line.
func summaryLine(s diff.Summary) string {
	if s.Total() == 0 {
		return "No changes."
	}
	return fmt.Sprintf("**%d change(s)** — added: %d, updated: %d, deleted: %d",
		s.Total(), s.Added, s.Updated, s.Deleted)
}

// sideValue renders one side of a field change. An absent side (field not
// present in that snapshot at all) renders distinctly from an explicit
// empty value.
func sideValue(v normalize.Value, has bool) string {
	if !has {
		return "_(not set)_"
	}
	return displayValue(v)
}

func displayValue(v normalize.Value) string {
	s := normalize.Display(v)
	if s == "" {
		return "_(empty)_"
	}
	return s
}

func multiline(v normalize.Value) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, "\n")
}

func sortedKeys(m map[string]normalize.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeOutput strips trailing spaces per line and guarantees a single
// trailing newline, mirroring the rest of the tool's deterministic-output
// policy.
func normalizeOutput(b []byte) []byte {
	lines := strings.Split(string(b), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	out := strings.Join(lines, "\n")
	out = strings.TrimRight(out, "\n") + "\n"
	return []byte(out)
}

func ensureTrailingLF(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
