// Package artifacts persists the fact store as a schema-versioned,
// type-tagged artifact so repeated queries never re-run the analyzer.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/logging"
)

// SchemaVersion is the artifact schema version. Bump the minor on
// backward-compatible payload additions, the major on breaking changes.
// Artifacts from older minors load; anything else is rejected explicitly.
const SchemaVersion = "1.1.0"

// ArtifactFile is the artifact filename within the cache directory
const ArtifactFile = "project-facts.json.zst"

// ModelProjectFacts tags a serialized fact-store payload
const ModelProjectFacts = "ProjectFacts"

// TypeTag identifies what the payload decodes to. Several records in the
// data model are structurally similar (ancestor vs. descendant tree nodes),
// so decoding dispatches on the tag instead of guessing from shape.
type TypeTag struct {
	Model  string `json:"model"`
	IsList bool   `json:"is_list"`
}

// envelope is the on-disk artifact layout (before zstd compression)
type envelope struct {
	SchemaVersion string          `json:"schema_version"`
	Type          TypeTag         `json:"type"`
	Checksum      string          `json:"checksum"`
	Payload       json.RawMessage `json:"payload"`
}

// Cache is an explicit handle on one project's artifact location. It owns
// the on-disk directory and the schema version it writes; there is no
// process-wide cache state.
type Cache struct {
	dir    string
	logger *logging.Logger
}

// New creates a cache handle rooted at dir. The directory is created lazily
// on first save.
func New(dir string, logger *logging.Logger) *Cache {
	return &Cache{dir: dir, logger: logger}
}

// Path returns the artifact file path
func (c *Cache) Path() string {
	return filepath.Join(c.dir, ArtifactFile)
}

// Exists reports whether an artifact is present. Freshness is path-based:
// an existing artifact is trusted until the caller deletes it.
func (c *Cache) Exists() bool {
	_, err := os.Stat(c.Path())
	return err == nil
}

// Save serializes the store and atomically replaces any previous artifact.
// The write goes to a uniquely-named temp file first, so a crash mid-write
// never corrupts an existing artifact.
func (c *Cache) Save(ctx context.Context, store *facts.Store) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.IOError, "saving artifact", err)
	}

	payload, err := json.Marshal(store.Snapshot())
	if err != nil {
		return errors.Wrap(errors.IOError, "encoding fact store", err)
	}

	env := envelope{
		SchemaVersion: SchemaVersion,
		Type:          TypeTag{Model: ModelProjectFacts, IsList: false},
		Checksum:      checksum(payload),
		Payload:       payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.IOError, "encoding artifact envelope", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(errors.IOError, "creating artifact directory", err)
	}

	tmp := filepath.Join(c.dir, ".artifact-"+uuid.NewString()+".tmp")
	if err := writeCompressed(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.IOError, "writing artifact", err)
	}
	if err := os.Rename(tmp, c.Path()); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.IOError, "replacing artifact", err)
	}

	c.logger.Info("saved fact-store artifact", logging.Fields{
		"path":      c.Path(),
		"contracts": store.ContractCount(),
		"functions": store.FunctionCount(),
	})
	return nil
}

// Load reads the artifact back into a store with contents identical to the
// one that was saved. A missing type tag, checksum mismatch, or undecodable
// payload is CORRUPT_ARTIFACT; an incompatible schema version is
// VERSION_MISMATCH. On any failure no partial store is returned.
func (c *Cache) Load(ctx context.Context) (*facts.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.IOError, "loading artifact", err)
	}

	data, err := readCompressed(c.Path())
	if err != nil {
		return nil, errors.Wrap(errors.IOError, "reading artifact", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(errors.CorruptArtifact, "artifact is not valid JSON", err)
	}
	if env.SchemaVersion == "" {
		return nil, errors.New(errors.CorruptArtifact,
			"artifact has no schema version; re-run analysis to regenerate")
	}
	if err := checkSchemaVersion(env.SchemaVersion); err != nil {
		return nil, err
	}
	if env.Type.Model != ModelProjectFacts || env.Type.IsList {
		return nil, errors.Newf(errors.CorruptArtifact,
			"unexpected artifact type tag %q (list=%v)", env.Type.Model, env.Type.IsList)
	}
	if checksum(env.Payload) != env.Checksum {
		return nil, errors.New(errors.CorruptArtifact,
			"artifact checksum mismatch; re-run analysis to regenerate")
	}

	var snap facts.Snapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		return nil, errors.Wrap(errors.CorruptArtifact, "decoding fact store payload", err)
	}
	store, err := facts.FromSnapshot(&snap)
	if err != nil {
		return nil, errors.Wrap(errors.CorruptArtifact, "artifact payload violates fact-store invariants", err)
	}

	c.logger.Info("loaded fact-store artifact", logging.Fields{
		"path":      c.Path(),
		"contracts": store.ContractCount(),
	})
	return store, nil
}

// Remove deletes the artifact, forcing re-analysis on next use
func (c *Cache) Remove() error {
	if err := os.Remove(c.Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.IOError, "removing artifact", err)
	}
	return nil
}

// checkSchemaVersion accepts artifacts whose major matches and whose minor
// is not newer than ours (older minors are forward-readable).
func checkSchemaVersion(v string) error {
	major, minor, err := parseVersion(v)
	if err != nil {
		return errors.Wrap(errors.CorruptArtifact, "unparseable artifact schema version", err)
	}
	curMajor, curMinor, _ := parseVersion(SchemaVersion)
	if major != curMajor || minor > curMinor {
		return errors.Newf(errors.VersionMismatch,
			"artifact schema version %s is incompatible with %s; re-run analysis to regenerate",
			v, SchemaVersion)
	}
	return nil
}

func parseVersion(v string) (major, minor int, err error) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid version %q", v)
	}
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("invalid version %q", v)
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid version %q", v)
	}
	return major, minor, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func writeCompressed(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return err
	}
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
