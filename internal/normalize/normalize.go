package normalize

import (
	"strings"

	"notion-watch/internal/notion"
)

// PageFields flattens a page's raw tagged properties into a normalized
// field map. Total by construction: unknown property types and malformed
// or partially populated payloads degrade to nil (or an empty list for
// list-shaped types), never to an error. The source schema evolves
// independently of this tool, so unrecognized types are expected input,
// not a fault.
func PageFields(props map[string]notion.Property) map[string]Value {
	out := make(map[string]Value, len(props))
	for name, p := range props {
		out[name] = Property(p)
	}
	return out
}

// Property normalizes a single raw property value by its declared type.
func Property(p notion.Property) Value {
	switch p.Type {
	case "title":
		return joinRichText(p.Title)
	case "rich_text":
		return joinRichText(p.RichText)
	case "select":
		return optionName(p.Select)
	case "status":
		return optionName(p.Status)
	case "multi_select":
		out := make([]string, 0, len(p.MultiSelect))
		for _, o := range p.MultiSelect {
			out = append(out, o.Name)
		}
		return out
	case "number":
		return floatOrNil(p.Number)
	case "checkbox":
		if p.Checkbox == nil {
			return false
		}
		return *p.Checkbox
	case "url":
		return stringOrNil(p.URL)
	case "email":
		return stringOrNil(p.Email)
	case "phone_number":
		return stringOrNil(p.PhoneNumber)
	case "date":
		return dateStart(p.Date)
	case "people":
		out := make([]string, 0, len(p.People))
		for _, u := range p.People {
			out = append(out, u.ID)
		}
		return out
	case "relation":
		out := make([]string, 0, len(p.Relation))
		for _, r := range p.Relation {
			out = append(out, r.ID)
		}
		return out
	case "files":
		out := make([]string, 0, len(p.Files))
		for _, f := range p.Files {
			out = append(out, fileLabel(f))
		}
		return out
	case "formula":
		return formulaValue(p.Formula)
	case "rollup":
		return rollupValue(p.Rollup)
	case "created_time":
		return emptyAsNil(p.CreatedTime)
	case "last_edited_time":
		return emptyAsNil(p.LastEditedTime)
	case "created_by":
		return userID(p.CreatedBy)
	case "last_edited_by":
		return userID(p.LastEditedBy)
	case "unique_id":
		return uniqueID(p.UniqueID)
	default:
		return nil
	}
}

func joinRichText(runs []notion.RichText) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.PlainText)
	}
	return strings.TrimSpace(sb.String())
}

func optionName(o *notion.SelectOption) Value {
	if o == nil {
		return nil
	}
	return o.Name
}

func stringOrNil(s *string) Value {
	if s == nil {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) Value {
	if f == nil {
		return nil
	}
	return *f
}

func emptyAsNil(s string) Value {
	if s == "" {
		return nil
	}
	return s
}

func dateStart(d *notion.Date) Value {
	if d == nil || d.Start == "" {
		return nil
	}
	return d.Start
}

func userID(u *notion.UserRef) Value {
	if u == nil {
		return nil
	}
	return u.ID
}

// fileLabel prefers the human-facing filename, falling back to whichever
// URL the entry carries.
func fileLabel(f notion.FileRef) string {
	if f.Name != "" {
		return f.Name
	}
	if f.External != nil && f.External.URL != "" {
		return f.External.URL
	}
	if f.File != nil {
		return f.File.URL
	}
	return ""
}

// formulaValue unwraps a computed result by its computed type.
func formulaValue(f *notion.Formula) Value {
	if f == nil {
		return nil
	}
	switch f.Type {
	case "string":
		return stringOrNil(f.String)
	case "number":
		return floatOrNil(f.Number)
	case "boolean":
		if f.Boolean == nil {
			return nil
		}
		return *f.Boolean
	case "date":
		return dateStart(f.Date)
	default:
		return nil
	}
}

// rollupValue unwraps an aggregate. Array rollups map each element through
// Property and flatten to a list of display strings; scalar rollups unwrap
// like formulas.
func rollupValue(r *notion.Rollup) Value {
	if r == nil {
		return nil
	}
	switch r.Type {
	case "number":
		return floatOrNil(r.Number)
	case "date":
		return dateStart(r.Date)
	case "array":
		out := make([]string, 0, len(r.Array))
		for _, el := range r.Array {
			out = append(out, Display(Property(el)))
		}
		return out
	default:
		return nil
	}
}

func uniqueID(u *notion.UniqueID) Value {
	if u == nil || u.Number == nil {
		return nil
	}
	prefix := ""
	if u.Prefix != nil {
		prefix = *u.Prefix + "-"
	}
	return prefix + trimFloat(*u.Number)
}
