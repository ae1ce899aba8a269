package store

import (
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion tracks additive migrations the way codeNERD's
// migrations.go versions its knowledge-base schema.
const CurrentSchemaVersion = 1

var tables = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		repo_url        TEXT NOT NULL,
		owner           TEXT NOT NULL,
		name            TEXT NOT NULL,
		pr_number       INTEGER NOT NULL,
		priority        TEXT NOT NULL DEFAULT 'normal',
		status          TEXT NOT NULL DEFAULT 'pending',
		progress        INTEGER NOT NULL DEFAULT 0,
		queue_ticket_id TEXT UNIQUE,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		started_at      DATETIME,
		completed_at    DATETIME,
		retry_count     INTEGER NOT NULL DEFAULT 0,
		max_retries     INTEGER NOT NULL DEFAULT 3,
		config          TEXT NOT NULL DEFAULT '{}',
		error_message   TEXT NOT NULL DEFAULT '',
		error_details   TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,

	`CREATE TABLE IF NOT EXISTS pr_analyses (
		id                     TEXT PRIMARY KEY,
		task_id                TEXT NOT NULL UNIQUE REFERENCES tasks(id) ON DELETE CASCADE,
		pr_url                 TEXT NOT NULL DEFAULT '',
		base_branch            TEXT NOT NULL DEFAULT '',
		head_branch            TEXT NOT NULL DEFAULT '',
		base_sha               TEXT NOT NULL DEFAULT '',
		head_sha               TEXT NOT NULL DEFAULT '',
		status                 TEXT NOT NULL DEFAULT 'pending',
		analysis_started_at    DATETIME,
		analysis_completed_at  DATETIME,
		files_analyzed         INTEGER NOT NULL DEFAULT 0,
		lines_analyzed         INTEGER NOT NULL DEFAULT 0,
		issues_found           INTEGER NOT NULL DEFAULT 0,
		critical_count         INTEGER NOT NULL DEFAULT 0,
		high_count             INTEGER NOT NULL DEFAULT 0,
		medium_count           INTEGER NOT NULL DEFAULT 0,
		low_count              INTEGER NOT NULL DEFAULT 0,
		info_count             INTEGER NOT NULL DEFAULT 0,
		quality_score          REAL,
		maintainability_score  REAL,
		complexity_score       REAL,
		summary                TEXT NOT NULL DEFAULT '',
		recommendations        TEXT NOT NULL DEFAULT '[]',
		error_message          TEXT NOT NULL DEFAULT '',
		created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_pranalyses_task ON pr_analyses(task_id);`,

	`CREATE TABLE IF NOT EXISTS file_analyses (
		id                     TEXT PRIMARY KEY,
		pr_analysis_id         TEXT NOT NULL REFERENCES pr_analyses(id) ON DELETE CASCADE,
		file_path              TEXT NOT NULL,
		file_name              TEXT NOT NULL DEFAULT '',
		file_extension         TEXT NOT NULL DEFAULT '',
		language               TEXT NOT NULL DEFAULT '',
		lines_total            INTEGER NOT NULL DEFAULT 0,
		lines_analyzed         INTEGER NOT NULL DEFAULT 0,
		lines_added            INTEGER NOT NULL DEFAULT 0,
		lines_removed          INTEGER NOT NULL DEFAULT 0,
		analysis_status        TEXT NOT NULL DEFAULT 'pending',
		complexity             REAL NOT NULL DEFAULT 0,
		maintainability        REAL NOT NULL DEFAULT 0,
		issues_count           INTEGER NOT NULL DEFAULT 0,
		critical_issues_count  INTEGER NOT NULL DEFAULT 0,
		recommendations        TEXT NOT NULL DEFAULT '[]',
		raw_diff               TEXT NOT NULL DEFAULT '',
		tools_run              TEXT NOT NULL DEFAULT '[]',
		created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fileanalyses_pr ON file_analyses(pr_analysis_id);`,

	`CREATE TABLE IF NOT EXISTS issues (
		id                     TEXT PRIMARY KEY,
		pr_analysis_id         TEXT NOT NULL REFERENCES pr_analyses(id) ON DELETE CASCADE,
		file_analysis_id       TEXT REFERENCES file_analyses(id) ON DELETE CASCADE,
		issue_type             TEXT NOT NULL,
		severity               TEXT NOT NULL,
		file_path              TEXT NOT NULL DEFAULT '',
		line                   INTEGER,
		column                 INTEGER,
		title                  TEXT NOT NULL,
		description            TEXT NOT NULL,
		code_snippet           TEXT NOT NULL DEFAULT '',
		suggestion             TEXT NOT NULL DEFAULT '',
		suggested_replacement  TEXT NOT NULL DEFAULT '',
		rule_id                TEXT NOT NULL DEFAULT '',
		tool_name              TEXT NOT NULL DEFAULT '',
		confidence             REAL NOT NULL DEFAULT 0,
		tags                   TEXT NOT NULL DEFAULT '[]',
		reference_urls         TEXT NOT NULL DEFAULT '[]',
		created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(pr_analysis_id, file_path, line, rule_id, title)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_issues_pr ON issues(pr_analysis_id);`,
	`CREATE INDEX IF NOT EXISTS idx_issues_file ON issues(file_analysis_id);`,
	`CREATE INDEX IF NOT EXISTS idx_issues_type ON issues(issue_type);`,
	`CREATE INDEX IF NOT EXISTS idx_issues_severity ON issues(severity);`,
	// SQLite treats NULLs as distinct in UNIQUE, so a finding with no line
	// would escape the table constraint above; this index closes that gap.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_issues_dedup ON issues(pr_analysis_id, file_path, IFNULL(line, -1), rule_id, title);`,

	`CREATE TABLE IF NOT EXISTS embedding_cache (
		content_hash TEXT PRIMARY KEY,
		dims         INTEGER NOT NULL,
		vector       BLOB NOT NULL,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,

	`CREATE TABLE IF NOT EXISTS schema_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
}

func (s *Store) initSchema() error {
	for _, stmt := range tables {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: creating schema: %w", err)
		}
	}
	return runMigrations(s.db)
}

// columnMigration adds a column to an existing table if it is missing, the
// additive-migration idiom codeNERD's migrations.go uses for upgrading
// databases created by older binary versions.
type columnMigration struct {
	table  string
	column string
	def    string
}

var pendingMigrations = []columnMigration{}

func runMigrations(db *sql.DB) error {
	for _, m := range pendingMigrations {
		var count int
		row := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = '%s'", m.table, m.column))
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("store: checking column %s.%s: %w", m.table, m.column, err)
		}
		if count > 0 {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.def)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrating %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}
