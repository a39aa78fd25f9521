package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:peerinst.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/peerinst?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  answer_style TEXT NOT NULL DEFAULT 'alphabetic',
  selection_algorithm TEXT NOT NULL DEFAULT 'simple',
  sequential_review INTEGER NOT NULL DEFAULT 0,
  grading_scheme TEXT NOT NULL DEFAULT 'standard',
  fake_attributions INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

-- No uniqueness over (question_id, assignment_id, user_token): seed and
-- expert rationales all share the empty user token.
CREATE TABLE IF NOT EXISTS answers (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  assignment_id TEXT NOT NULL DEFAULT '',
  user_token TEXT NOT NULL DEFAULT '',
  first_answer_choice INTEGER NOT NULL,
  rationale TEXT NOT NULL,
  second_answer_choice INTEGER,
  chosen_rationale_id TEXT,
  show_to_others INTEGER NOT NULL DEFAULT 1,
  expert INTEGER NOT NULL DEFAULT 0,
  upvotes INTEGER NOT NULL DEFAULT 0,
  downvotes INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_answers_lookup ON answers(question_id, assignment_id, user_token);
CREATE INDEX IF NOT EXISTS idx_answers_chosen ON answers(chosen_rationale_id);

CREATE TABLE IF NOT EXISTS answer_votes (
  id TEXT PRIMARY KEY,
  answer_id TEXT NOT NULL,
  assignment_id TEXT NOT NULL DEFAULT '',
  user_token TEXT NOT NULL,
  fake_username TEXT NOT NULL DEFAULT '',
  fake_country TEXT NOT NULL DEFAULT '',
  vote_type TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fake_usernames (
  name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS fake_countries (
  name TEXT PRIMARY KEY
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  text TEXT NOT NULL,
  choices_json TEXT NOT NULL,
  answer_style TEXT NOT NULL DEFAULT 'alphabetic',
  selection_algorithm TEXT NOT NULL DEFAULT 'simple',
  sequential_review BOOLEAN NOT NULL DEFAULT FALSE,
  grading_scheme TEXT NOT NULL DEFAULT 'standard',
  fake_attributions BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  assignment_id TEXT NOT NULL DEFAULT '',
  user_token TEXT NOT NULL DEFAULT '',
  first_answer_choice INTEGER NOT NULL,
  rationale TEXT NOT NULL,
  second_answer_choice INTEGER,
  chosen_rationale_id TEXT,
  show_to_others BOOLEAN NOT NULL DEFAULT TRUE,
  expert BOOLEAN NOT NULL DEFAULT FALSE,
  upvotes INTEGER NOT NULL DEFAULT 0,
  downvotes INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_answers_lookup ON answers(question_id, assignment_id, user_token);
CREATE INDEX IF NOT EXISTS idx_answers_chosen ON answers(chosen_rationale_id);

CREATE TABLE IF NOT EXISTS answer_votes (
  id TEXT PRIMARY KEY,
  answer_id TEXT NOT NULL,
  assignment_id TEXT NOT NULL DEFAULT '',
  user_token TEXT NOT NULL,
  fake_username TEXT NOT NULL DEFAULT '',
  fake_country TEXT NOT NULL DEFAULT '',
  vote_type TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS fake_usernames (
  name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS fake_countries (
  name TEXT PRIMARY KEY
);
`
