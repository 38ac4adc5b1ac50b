package nl2sql

import "context"

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type ForeignKey struct {
	Name       string   `json:"name,omitempty"`
	Columns    []string `json:"columns"`
	RefTable   string   `json:"ref_table"`
	RefColumns []string `json:"ref_columns"`
}

// TableContext describes one table or view. Views carry columns only.
type TableContext struct {
	TableName   string       `json:"table_name"`
	View        bool         `json:"view,omitempty"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key,omitempty"`
	UniqueKeys  [][]string   `json:"unique_keys,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	SampleRows  [][]any      `json:"sample_rows"`
}

type Relationship struct {
	FromTable   string   `json:"from_table"`
	FromColumns []string `json:"from_columns"`
	ToTable     string   `json:"to_table"`
	ToColumns   []string `json:"to_columns"`
	Constraint  string   `json:"constraint_name,omitempty"`
}

// Relationships flattens the foreign keys of tables into join hints, in
// table order.
func Relationships(tables []TableContext) []Relationship {
	out := make([]Relationship, 0)
	for _, table := range tables {
		for _, fk := range table.ForeignKeys {
			out = append(out, Relationship{
				FromTable:   table.TableName,
				FromColumns: fk.Columns,
				ToTable:     fk.RefTable,
				ToColumns:   fk.RefColumns,
				Constraint:  fk.Name,
			})
		}
	}
	return out
}

// Request carries one question plus the schema it should be answered
// against. Dialect names the target SQL engine.
type Request struct {
	UserID          string         `json:"user_id"`
	Dialect         string         `json:"dialect"`
	Database        string         `json:"database"`
	NaturalLanguage string         `json:"natural_language"`
	Tables          []TableContext `json:"tables"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
