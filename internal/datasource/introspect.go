package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/sqlingo/sqlingo/internal/nl2sql"
)

// Querier is the read side of *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type dialect struct {
	tables  string
	columns string
	keys    string
	args    func(database string) []any
	quote   func(ident string) string
}

const (
	tableTypeView = "VIEW"

	constraintPrimary = "PRIMARY KEY"
	constraintUnique  = "UNIQUE"
	constraintForeign = "FOREIGN KEY"
)

// standardKeys resolves foreign key targets through referential_constraints,
// which postgres and duckdb both expose. filter is the table_constraints
// predicate selecting the schema.
func standardKeys(filter string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, tc.constraint_type, kcu.column_name,
COALESCE(ref.table_name, ''), COALESCE(ref.column_name, '')
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_schema = tc.constraint_schema
 AND kcu.constraint_name = tc.constraint_name
 AND kcu.table_name = tc.table_name
LEFT JOIN information_schema.referential_constraints rc
  ON rc.constraint_schema = tc.constraint_schema
 AND rc.constraint_name = tc.constraint_name
LEFT JOIN information_schema.key_column_usage ref
  ON ref.constraint_schema = rc.unique_constraint_schema
 AND ref.constraint_name = rc.unique_constraint_name
 AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE ` + filter + ` AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

var dialects = map[string]dialect{
	EngineMySQL: {
		tables: `SELECT table_name, table_type FROM information_schema.tables
WHERE table_schema = ? AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
		columns: `SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`,
		keys: `SELECT kcu.table_name, kcu.constraint_name, tc.constraint_type, kcu.column_name,
COALESCE(kcu.referenced_table_name, ''), COALESCE(kcu.referenced_column_name, '')
FROM information_schema.key_column_usage kcu
JOIN information_schema.table_constraints tc
  ON tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
 AND tc.constraint_name = kcu.constraint_name
WHERE kcu.table_schema = ? AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`,
		args:  func(database string) []any { return []any{database} },
		quote: func(ident string) string { return "`" + strings.ReplaceAll(ident, "`", "``") + "`" },
	},
	EnginePostgreSQL: {
		tables: `SELECT table_name, table_type FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
		columns: `SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns
WHERE table_schema = current_schema()
ORDER BY table_name, ordinal_position`,
		keys:  standardKeys("tc.table_schema = current_schema()"),
		args:  func(string) []any { return nil },
		quote: quoteIdent,
	},
	EngineSQLite: {
		tables: `SELECT table_name, table_type FROM information_schema.tables
WHERE table_catalog = ? AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
		columns: `SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns
WHERE table_catalog = ?
ORDER BY table_name, ordinal_position`,
		keys:  standardKeys("tc.table_catalog = ?"),
		args:  func(string) []any { return []any{sqliteCatalog} },
		quote: quoteIdent,
	},
}

// Introspect lists the tables and views of the source database with their
// columns, key constraints and up to sampleRows rows per table. Keys and
// samples are best effort: a failing query leaves them out.
func Introspect(ctx context.Context, db Querier, engine, database string, sampleRows int) ([]nl2sql.TableContext, error) {
	engine, err := NormalizeEngine(engine)
	if err != nil {
		return nil, err
	}
	d := dialects[engine]
	args := d.args(database)

	listed, err := listTables(ctx, db, d.tables, args)
	if err != nil {
		return nil, err
	}
	contexts := make([]nl2sql.TableContext, 0, len(listed))
	index := make(map[string]int, len(listed))
	for _, table := range listed {
		index[table.name] = len(contexts)
		contexts = append(contexts, nl2sql.TableContext{TableName: table.name, View: table.view})
	}

	rows, err := db.QueryContext(ctx, d.columns, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var table, column, dataType, nullable string
		if err := rows.Scan(&table, &column, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		i, ok := index[table]
		if !ok {
			continue
		}
		contexts[i].Columns = append(contexts[i].Columns, nl2sql.Column{
			Name:     column,
			Type:     dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	if keys, err := listKeys(ctx, db, d.keys, args); err == nil {
		applyKeys(contexts, index, keys)
	}

	if sampleRows <= 0 {
		return contexts, nil
	}
	for i := range contexts {
		if contexts[i].View {
			continue
		}
		samples, err := sample(ctx, db, "SELECT * FROM "+d.quote(contexts[i].TableName)+" LIMIT "+strconv.Itoa(sampleRows))
		if err != nil {
			continue
		}
		contexts[i].SampleRows = samples
	}
	return contexts, nil
}

type listedTable struct {
	name string
	view bool
}

type keyColumn struct {
	table      string
	constraint string
	kind       string
	column     string
	refTable   string
	refColumn  string
}

func listKeys(ctx context.Context, db Querier, query string, args []any) ([]keyColumn, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []keyColumn
	for rows.Next() {
		var key keyColumn
		if err := rows.Scan(&key.table, &key.constraint, &key.kind, &key.column, &key.refTable, &key.refColumn); err != nil {
			return nil, fmt.Errorf("scan key column: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// applyKeys folds key columns, ordered by table, constraint and position,
// into the matching table contexts.
func applyKeys(contexts []nl2sql.TableContext, index map[string]int, keys []keyColumn) {
	for start := 0; start < len(keys); {
		end := start + 1
		for end < len(keys) && keys[end].table == keys[start].table && keys[end].constraint == keys[start].constraint {
			end++
		}
		group := keys[start:end]
		start = end

		i, ok := index[group[0].table]
		if !ok || contexts[i].View {
			continue
		}
		columns := make([]string, 0, len(group))
		refColumns := make([]string, 0, len(group))
		for _, key := range group {
			columns = append(columns, key.column)
			refColumns = append(refColumns, key.refColumn)
		}
		switch strings.ToUpper(group[0].kind) {
		case constraintPrimary:
			contexts[i].PrimaryKey = columns
		case constraintUnique:
			contexts[i].UniqueKeys = append(contexts[i].UniqueKeys, columns)
		case constraintForeign:
			if group[0].refTable == "" {
				continue
			}
			contexts[i].ForeignKeys = append(contexts[i].ForeignKeys, nl2sql.ForeignKey{
				Name:       group[0].constraint,
				Columns:    columns,
				RefTable:   group[0].refTable,
				RefColumns: refColumns,
			})
		}
	}
}

func listTables(ctx context.Context, db Querier, query string, args []any) ([]listedTable, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []listedTable
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, listedTable{name: name, view: strings.EqualFold(tableType, tableTypeView)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func sample(ctx context.Context, db Querier, query string) ([][]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		result = append(result, normalizeValues(values))
	}
	return result, rows.Err()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
