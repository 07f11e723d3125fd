// Package reports projects orders into the row-oriented tables shown and exported by the app.
package reports

// Column is one table column. Pseudo columns such as Actions are rendered
// but never exported.
type Column struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Pseudo bool   `json:"pseudo,omitempty"`
}

// Action is something the viewer can do with a row.
type Action string

const (
	ActionView              Action = "view"
	ActionEdit              Action = "edit"
	ActionDelete            Action = "delete"
	ActionVerify            Action = "verify"
	ActionSpreadingComplete Action = "spreading_complete"
)

const actionsKey = "actions"

var actionsColumn = Column{Key: actionsKey, Title: "Actions", Pseudo: true}

// Row holds the display values of one record keyed by column key.
type Row struct {
	Key     string            `json:"key"`
	Values  map[string]string `json:"values"`
	Actions []Action          `json:"actions,omitempty"`
}

// Table is a rendered projection.
type Table struct {
	Title   string   `json:"title"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// DataColumns returns the exportable columns in display order.
func (t *Table) DataColumns() []Column {
	out := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Pseudo {
			out = append(out, c)
		}
	}
	return out
}

// HasColumn reports whether a column with key is visible.
func (t *Table) HasColumn(key string) bool {
	for _, c := range t.Columns {
		if c.Key == key {
			return true
		}
	}
	return false
}

// Header is the title row of the exportable columns.
func (t *Table) Header() []string {
	cols := t.DataColumns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Title
	}
	return out
}

// Records returns the header followed by every row's exportable values.
func (t *Table) Records() [][]string {
	cols := t.DataColumns()
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, t.Header())
	for _, row := range t.Rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = row.Values[c.Key]
		}
		records = append(records, record)
	}
	return records
}
