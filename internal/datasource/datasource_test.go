package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlingo/sqlingo/internal/nl2sql"
)

func TestDSNPerEngine(t *testing.T) {
	driver, dsn, err := DSN(Target{Engine: "mysql", Host: "localhost:3308", Username: "root", Password: "p@ss", Database: "school"})
	if err != nil {
		t.Fatalf("DSN(mysql) error = %v", err)
	}
	if driver != "mysql" || !strings.HasPrefix(dsn, "root:p@ss@tcp(localhost:3308)/school") {
		t.Fatalf("mysql = %q %q", driver, dsn)
	}

	driver, dsn, err = DSN(Target{Engine: "postgres", Host: "db:5432", Username: "app", Password: "a b", Database: "school"})
	if err != nil {
		t.Fatalf("DSN(postgres) error = %v", err)
	}
	if driver != "pgx" || dsn != "postgres://app:a%20b@db:5432/school" {
		t.Fatalf("postgresql = %q %q", driver, dsn)
	}

	driver, dsn, err = DSN(Target{Engine: "SQLite", Database: "/data/school.db"})
	if err != nil {
		t.Fatalf("DSN(sqlite) error = %v", err)
	}
	if driver != "duckdb" || dsn != "" {
		t.Fatalf("sqlite = %q %q", driver, dsn)
	}

	if _, _, err := DSN(Target{Engine: "oracle"}); !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("DSN(oracle) error = %v", err)
	}
}

func TestOpenRejectsUnsupportedEngine(t *testing.T) {
	if _, err := Open(context.Background(), Target{Engine: "mssql"}, PoolConfig{}); !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("Open() error = %v", err)
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), Target{Engine: EngineSQLite}, PoolConfig{}); err == nil {
		t.Fatal("expected error for empty sqlite path")
	}
}

type recordingExecer struct {
	statements []string
	failOn     string
}

func (e *recordingExecer) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	e.statements = append(e.statements, query)
	if e.failOn != "" && strings.HasPrefix(query, e.failOn) {
		return nil, errors.New("no such file")
	}
	return driver.RowsAffected(0), nil
}

func TestAttachSQLiteRunsOnEveryConnection(t *testing.T) {
	connInit := attachSQLite("/data/o'neil.db")
	for conn := 0; conn < 2; conn++ {
		execer := &recordingExecer{}
		if err := connInit(execer); err != nil {
			t.Fatalf("connection %d init error = %v", conn, err)
		}
		want := []string{
			"ATTACH IF NOT EXISTS '/data/o''neil.db' AS src (TYPE sqlite, READ_ONLY)",
			"USE src",
		}
		if !reflect.DeepEqual(execer.statements, want) {
			t.Fatalf("connection %d statements = %#v", conn, execer.statements)
		}
	}

	failing := &recordingExecer{failOn: "ATTACH"}
	if err := connInit(failing); err == nil {
		t.Fatal("expected attach error")
	}
	if len(failing.statements) != 1 {
		t.Fatalf("statements after failure = %#v", failing.statements)
	}
}

func TestIntrospectMySQL(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT table_name, table_type FROM information_schema.tables
WHERE table_schema = ? AND table_type IN ('BASE TABLE', 'VIEW')`)).
		WithArgs("school").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_TYPE"}).
			AddRow("classes", "BASE TABLE").
			AddRow("honor_roll", "VIEW").
			AddRow("students", "BASE TABLE"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT table_name, column_name, data_type, is_nullable FROM information_schema.columns
WHERE table_schema = ?`)).
		WithArgs("school").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE"}).
			AddRow("classes", "id", "int", "NO").
			AddRow("honor_roll", "name", "varchar", "YES").
			AddRow("students", "id", "int", "NO").
			AddRow("students", "name", "varchar", "YES").
			AddRow("students", "class_id", "int", "YES").
			AddRow("dropped_table", "x", "int", "YES"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.key_column_usage kcu
JOIN information_schema.table_constraints tc`)).
		WithArgs("school").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "CONSTRAINT_NAME", "CONSTRAINT_TYPE", "COLUMN_NAME", "REF_TABLE", "REF_COLUMN"}).
			AddRow("classes", "PRIMARY", "PRIMARY KEY", "id", "", "").
			AddRow("students", "PRIMARY", "PRIMARY KEY", "id", "", "").
			AddRow("students", "students_class_fk", "FOREIGN KEY", "class_id", "classes", "id").
			AddRow("students", "students_name_uq", "UNIQUE", "name", "", ""))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `classes` LIMIT 2")).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `students` LIMIT 2")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "class_id"}).
			AddRow(int64(1), []byte("Ada"), int64(1)).
			AddRow(int64(2), []byte("Linus"), nil))

	tables, err := Introspect(context.Background(), db, "mysql", "school", 2)
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if len(tables) != 3 {
		t.Fatalf("tables = %#v", tables)
	}
	classes := tables[0]
	if classes.TableName != "classes" || len(classes.Columns) != 1 || classes.SampleRows != nil {
		t.Fatalf("classes = %#v", classes)
	}
	if !reflect.DeepEqual(classes.PrimaryKey, []string{"id"}) {
		t.Fatalf("classes primary key = %#v", classes.PrimaryKey)
	}

	view := tables[1]
	if !view.View || len(view.Columns) != 1 || view.PrimaryKey != nil || view.SampleRows != nil {
		t.Fatalf("honor_roll = %#v", view)
	}

	students := tables[2]
	if len(students.Columns) != 3 || students.Columns[1].Name != "name" || !students.Columns[1].Nullable {
		t.Fatalf("students columns = %#v", students.Columns)
	}
	if students.Columns[0].Nullable {
		t.Fatal("students.id should not be nullable")
	}
	if students.View || !reflect.DeepEqual(students.PrimaryKey, []string{"id"}) {
		t.Fatalf("students = %#v", students)
	}
	wantFK := []nl2sql.ForeignKey{{Name: "students_class_fk", Columns: []string{"class_id"}, RefTable: "classes", RefColumns: []string{"id"}}}
	if !reflect.DeepEqual(students.ForeignKeys, wantFK) {
		t.Fatalf("students foreign keys = %#v", students.ForeignKeys)
	}
	if !reflect.DeepEqual(students.UniqueKeys, [][]string{{"name"}}) {
		t.Fatalf("students unique keys = %#v", students.UniqueKeys)
	}
	if len(students.SampleRows) != 2 || students.SampleRows[0][1] != "Ada" {
		t.Fatalf("students samples = %#v", students.SampleRows)
	}

	relationships := nl2sql.Relationships(tables)
	if len(relationships) != 1 || relationships[0].FromTable != "students" || relationships[0].ToTable != "classes" {
		t.Fatalf("relationships = %#v", relationships)
	}
	assertSQLMock(t, mock)
}

func TestIntrospectPostgreSQLCompositeForeignKey(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')`)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("enrollments", "BASE TABLE").
			AddRow("sections", "BASE TABLE"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.columns
WHERE table_schema = current_schema()`)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("enrollments", "course", "text", "NO").
			AddRow("enrollments", "term", "text", "NO").
			AddRow("sections", "course", "text", "NO").
			AddRow("sections", "term", "text", "NO"))
	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN information_schema.referential_constraints rc`) +
		`.*` + regexp.QuoteMeta(`WHERE tc.table_schema = current_schema()`)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "constraint_name", "constraint_type", "column_name", "ref_table", "ref_column"}).
			AddRow("enrollments", "enrollments_section_fk", "FOREIGN KEY", "course", "sections", "course").
			AddRow("enrollments", "enrollments_section_fk", "FOREIGN KEY", "term", "sections", "term").
			AddRow("sections", "sections_pkey", "PRIMARY KEY", "course", "", "").
			AddRow("sections", "sections_pkey", "PRIMARY KEY", "term", "", ""))

	tables, err := Introspect(context.Background(), db, "postgresql", "school", 0)
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if len(tables) != 2 || tables[0].Columns[0].Type != "text" {
		t.Fatalf("tables = %#v", tables)
	}
	wantFK := []nl2sql.ForeignKey{{
		Name:       "enrollments_section_fk",
		Columns:    []string{"course", "term"},
		RefTable:   "sections",
		RefColumns: []string{"course", "term"},
	}}
	if !reflect.DeepEqual(tables[0].ForeignKeys, wantFK) {
		t.Fatalf("enrollments foreign keys = %#v", tables[0].ForeignKeys)
	}
	if !reflect.DeepEqual(tables[1].PrimaryKey, []string{"course", "term"}) {
		t.Fatalf("sections primary key = %#v", tables[1].PrimaryKey)
	}
	assertSQLMock(t, mock)
}

func TestIntrospectKeepsTablesWhenKeyQueryFails(t *testing.T) {
	db, mock := newSQLMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE table_catalog = ? AND table_type IN ('BASE TABLE', 'VIEW')`)).
		WithArgs("src").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).AddRow(`odd"name`, "BASE TABLE"))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.columns
WHERE table_catalog = ?`)).
		WithArgs("src").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE tc.table_catalog = ?`)).
		WithArgs("src").
		WillReturnError(errors.New("referential_constraints not available"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "odd""name" LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"a"}))

	tables, err := Introspect(context.Background(), db, "sqlite", "/data/school.db", 1)
	if err != nil {
		t.Fatalf("Introspect() error = %v", err)
	}
	if len(tables) != 1 || tables[0].TableName != `odd"name` || tables[0].PrimaryKey != nil {
		t.Fatalf("tables = %#v", tables)
	}
	assertSQLMock(t, mock)
}

func TestIntrospectPropagatesListErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	mock.ExpectQuery("information_schema.tables").WillReturnError(errors.New("access denied"))

	if _, err := Introspect(context.Background(), db, "mysql", "school", 3); err == nil {
		t.Fatal("expected error")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp)) error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
