package sqlitemigrate

import (
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

const sampleMigration = `-- +migrate Up
CREATE TABLE widgets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

-- +migrate Down
DROP TABLE widgets;
`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations_CreatesSchema(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"widgets/001_widgets.sql": &fstest.MapFile{Data: []byte(sampleMigration)},
	}

	if err := ApplyMigrations(db, migrations, "widgets"); err != nil {
		t.Fatalf("ApplyMigrations returned error: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO widgets (id, name) VALUES ('1', 'a')`); err != nil {
		t.Fatalf("migrated table not usable: %v", err)
	}

	var applied int
	row := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`)
	if err := row.Scan(&applied); err != nil {
		t.Fatalf("read migration table: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied migrations = %d, want 1", applied)
	}
}

func TestApplyMigrations_SkipsAppliedFiles(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"widgets/001_widgets.sql": &fstest.MapFile{Data: []byte(sampleMigration)},
	}

	if err := ApplyMigrations(db, migrations, "widgets"); err != nil {
		t.Fatalf("first ApplyMigrations returned error: %v", err)
	}
	if err := ApplyMigrations(db, migrations, "widgets"); err != nil {
		t.Fatalf("second ApplyMigrations returned error: %v", err)
	}
}

func TestApplyMigrations_RunsFilesInOrder(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"widgets/001_widgets.sql": &fstest.MapFile{Data: []byte(sampleMigration)},
		"widgets/002_color.sql": &fstest.MapFile{Data: []byte(`-- +migrate Up
ALTER TABLE widgets ADD COLUMN color TEXT;
`)},
	}

	if err := ApplyMigrations(db, migrations, "widgets"); err != nil {
		t.Fatalf("ApplyMigrations returned error: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO widgets (id, name, color) VALUES ('1', 'a', 'red')`); err != nil {
		t.Fatalf("second migration not applied: %v", err)
	}
}

func TestExtractUpMigration(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "up and down sections",
			content: sampleMigration,
			want:    "CREATE TABLE widgets",
		},
		{
			name:    "no markers",
			content: "CREATE TABLE bare (id TEXT);",
			want:    "CREATE TABLE bare",
		},
		{
			name:    "up only",
			content: "-- +migrate Up\nCREATE TABLE uponly (id TEXT);",
			want:    "CREATE TABLE uponly",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractUpMigration(tc.content)
			if !strings.Contains(got, tc.want) {
				t.Fatalf("ExtractUpMigration = %q, want fragment %q", got, tc.want)
			}
			if strings.Contains(got, "DROP TABLE") {
				t.Fatalf("ExtractUpMigration = %q, leaked down section", got)
			}
		})
	}
}
