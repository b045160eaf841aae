// Package notion is a minimal client for the Notion REST API, covering
// exactly what the watcher needs: querying a database for its full page
// list. Pagination is handled internally; callers always receive a fully
// materialized slice.
package notion

// Page is one row of a Notion database, as returned by the query endpoint.
// Properties carry the raw tagged-union values; normalization into
// comparable scalars happens in internal/normalize.
type Page struct {
	ID             string              `json:"id"`
	LastEditedTime string              `json:"last_edited_time"`
	Properties     map[string]Property `json:"properties"`
}

// Property is Notion's tagged property value. Exactly one payload field is
// populated, selected by Type. Unknown types decode with all payload fields
// empty, which the normalizer maps to null.
type Property struct {
	Type string `json:"type"`

	Title          []RichText     `json:"title,omitempty"`
	RichText       []RichText     `json:"rich_text,omitempty"`
	Select         *SelectOption  `json:"select,omitempty"`
	Status         *SelectOption  `json:"status,omitempty"`
	MultiSelect    []SelectOption `json:"multi_select,omitempty"`
	Number         *float64       `json:"number,omitempty"`
	Checkbox       *bool          `json:"checkbox,omitempty"`
	URL            *string        `json:"url,omitempty"`
	Email          *string        `json:"email,omitempty"`
	PhoneNumber    *string        `json:"phone_number,omitempty"`
	Date           *Date          `json:"date,omitempty"`
	People         []UserRef      `json:"people,omitempty"`
	Relation       []PageRef      `json:"relation,omitempty"`
	Files          []FileRef      `json:"files,omitempty"`
	Formula        *Formula       `json:"formula,omitempty"`
	Rollup         *Rollup        `json:"rollup,omitempty"`
	CreatedTime    string         `json:"created_time,omitempty"`
	LastEditedTime string         `json:"last_edited_time,omitempty"`
	CreatedBy      *UserRef       `json:"created_by,omitempty"`
	LastEditedBy   *UserRef       `json:"last_edited_by,omitempty"`
	UniqueID       *UniqueID      `json:"unique_id,omitempty"`
}

// RichText is a single text run. Only the plain-text projection matters
// for change detection; annotations and links are ignored.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// SelectOption is a select/status/multi-select option.
type SelectOption struct {
	Name string `json:"name"`
}

// Date is a Notion date value. Only Start participates in normalization.
type Date struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// UserRef identifies a Notion user.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// PageRef identifies a related page.
type PageRef struct {
	ID string `json:"id"`
}

// FileRef is an attached file. External files carry a URL under External,
// uploaded ones under File; Name is the human-facing filename when present.
type FileRef struct {
	Name     string       `json:"name,omitempty"`
	File     *FileURL `json:"file,omitempty"`
	External *FileURL `json:"external,omitempty"`
}

// FileURL holds the URL of a hosted file, external or Notion-uploaded.
type FileURL struct {
	URL string `json:"url"`
}

// Formula is the computed result of a formula property, itself tagged.
type Formula struct {
	Type    string   `json:"type"`
	String  *string  `json:"string,omitempty"`
	Number  *float64 `json:"number,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`
	Date    *Date    `json:"date,omitempty"`
}

// Rollup is an aggregate over a relation. Array-shaped rollups carry the
// element properties verbatim; each element is normalized by its own type.
type Rollup struct {
	Type   string     `json:"type"`
	Number *float64   `json:"number,omitempty"`
	Date   *Date      `json:"date,omitempty"`
	Array  []Property `json:"array,omitempty"`
}

// UniqueID is Notion's auto-incrementing ID property.
type UniqueID struct {
	Prefix *string `json:"prefix,omitempty"`
	Number *float64 `json:"number,omitempty"`
}
