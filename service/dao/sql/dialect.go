package sql

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect describes driver specific SQL.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite"}
	Postgres = Dialect{Name: "postgres", Driver: "postgres", Numbered: true}
)

// LookupDialect returns the dialect for name.
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported sql dialect: %v", name)
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	builder := strings.Builder{}
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			builder.WriteString("$" + strconv.Itoa(n))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS intake_submissions (
		identity TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		received_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS intake_instances (
		id TEXT PRIMARY KEY,
		identity TEXT NOT NULL UNIQUE,
		state TEXT NOT NULL,
		revision INTEGER NOT NULL,
		deadline_at TEXT,
		created_at TEXT NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS intake_instances_state ON intake_instances (state)`,
	`CREATE TABLE IF NOT EXISTS intake_tokens (
		token_hash TEXT PRIMARY KEY,
		instance_id TEXT NOT NULL
	)`,
}
