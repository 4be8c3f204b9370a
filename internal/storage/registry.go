// Package storage keeps a SQLite registry of analyzed projects, so cache
// tooling can list and clean artifacts without scanning the filesystem.
package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/logging"
)

const registryFile = "registry.db"

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	project_root   TEXT PRIMARY KEY,
	artifact_path  TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	contracts      INTEGER NOT NULL,
	functions      INTEGER NOT NULL,
	analyzed_at    TIMESTAMP NOT NULL
);
`

// Entry is one registered artifact
type Entry struct {
	ProjectRoot   string    `json:"project_root"`
	ArtifactPath  string    `json:"artifact_path"`
	SchemaVersion string    `json:"schema_version"`
	Contracts     int       `json:"contracts"`
	Functions     int       `json:"functions"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
}

// Registry is the artifact registry database
type Registry struct {
	conn   *sql.DB
	logger *logging.Logger
}

// Open opens or creates the registry database under dir
func Open(dir string, logger *logging.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.IOError, "creating registry directory", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, registryFile))
	if err != nil {
		return nil, errors.Wrap(errors.IOError, "opening artifact registry", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, errors.Wrap(errors.IOError, "configuring artifact registry", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(errors.IOError, "initializing registry schema", err)
	}

	return &Registry{conn: conn, logger: logger}, nil
}

// Close closes the registry database
func (r *Registry) Close() error {
	return r.conn.Close()
}

// Record upserts the registry entry for a project
func (r *Registry) Record(e Entry) error {
	_, err := r.conn.Exec(`
		INSERT INTO artifacts (project_root, artifact_path, schema_version, contracts, functions, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_root) DO UPDATE SET
			artifact_path = excluded.artifact_path,
			schema_version = excluded.schema_version,
			contracts = excluded.contracts,
			functions = excluded.functions,
			analyzed_at = excluded.analyzed_at`,
		e.ProjectRoot, e.ArtifactPath, e.SchemaVersion, e.Contracts, e.Functions, e.AnalyzedAt.UTC())
	if err != nil {
		return errors.Wrap(errors.IOError, "recording artifact", err)
	}
	return nil
}

// List returns all registered artifacts ordered by project root
func (r *Registry) List() ([]Entry, error) {
	rows, err := r.conn.Query(`
		SELECT project_root, artifact_path, schema_version, contracts, functions, analyzed_at
		FROM artifacts ORDER BY project_root`)
	if err != nil {
		return nil, errors.Wrap(errors.IOError, "listing artifacts", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ProjectRoot, &e.ArtifactPath, &e.SchemaVersion,
			&e.Contracts, &e.Functions, &e.AnalyzedAt); err != nil {
			return nil, errors.Wrap(errors.IOError, "scanning registry row", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.IOError, "reading registry rows", err)
	}
	return entries, nil
}

// Get returns the entry for a project root
func (r *Registry) Get(projectRoot string) (Entry, bool, error) {
	var e Entry
	err := r.conn.QueryRow(`
		SELECT project_root, artifact_path, schema_version, contracts, functions, analyzed_at
		FROM artifacts WHERE project_root = ?`, projectRoot).
		Scan(&e.ProjectRoot, &e.ArtifactPath, &e.SchemaVersion, &e.Contracts, &e.Functions, &e.AnalyzedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(errors.IOError, "looking up artifact", err)
	}
	return e, true, nil
}

// Forget removes the entry for a project root. Removing an unknown project
// is not an error.
func (r *Registry) Forget(projectRoot string) error {
	if _, err := r.conn.Exec(`DELETE FROM artifacts WHERE project_root = ?`, projectRoot); err != nil {
		return errors.Wrap(errors.IOError, "removing registry entry", err)
	}
	return nil
}
