package artifacts

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"reflect"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/trailofbits/slither-mcp/internal/errors"
	"github.com/trailofbits/slither-mcp/internal/logging"
	"github.com/trailofbits/slither-mcp/internal/testutil"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	return New(t.TempDir(), logging.Discard())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cache := newCache(t)
	store := testutil.SampleStore(t)
	ctx := context.Background()

	if cache.Exists() {
		t.Fatal("artifact should not exist before save")
	}
	if err := cache.Save(ctx, store); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !cache.Exists() {
		t.Fatal("artifact should exist after save")
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(loaded.Snapshot(), store.Snapshot()) {
		t.Error("loaded store differs from saved store")
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	if err := cache.Save(ctx, testutil.SampleStore(t)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Save(ctx, testutil.DiamondStore(t)); err != nil {
		t.Fatal(err)
	}

	loaded, err := cache.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loaded.Contract(testutil.Key("D", "src/D.sol")); !ok {
		t.Error("second save did not replace the artifact")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(cache.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != ArtifactFile {
		t.Errorf("unexpected files in cache dir: %v", entries)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	cache := newCache(t)

	_, err := cache.Load(context.Background())
	if !errors.IsCode(err, errors.IOError) {
		t.Errorf("missing artifact: got %v, want IO_ERROR", err)
	}
}

func TestLoadRejectsTamperedPayload(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()
	if err := cache.Save(ctx, testutil.SampleStore(t)); err != nil {
		t.Fatal(err)
	}

	rewriteEnvelope(t, cache, func(env *envelope) {
		var m map[string]any
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			t.Fatal(err)
		}
		m["project_root"] = "/tampered"
		env.Payload, _ = json.Marshal(m)
	})

	_, err := cache.Load(ctx)
	if !errors.IsCode(err, errors.CorruptArtifact) {
		t.Errorf("checksum mismatch: got %v, want CORRUPT_ARTIFACT", err)
	}
}

func TestLoadRejectsMissingTypeTag(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()
	if err := cache.Save(ctx, testutil.SampleStore(t)); err != nil {
		t.Fatal(err)
	}

	rewriteEnvelope(t, cache, func(env *envelope) {
		env.Type = TypeTag{}
	})

	_, err := cache.Load(ctx)
	if !errors.IsCode(err, errors.CorruptArtifact) {
		t.Errorf("missing type tag: got %v, want CORRUPT_ARTIFACT", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	cache := newCache(t)
	if err := os.MkdirAll(cache.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cache.Path(), []byte("not a zstd stream"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := cache.Load(context.Background())
	if err == nil {
		t.Fatal("expected error for non-artifact file")
	}
}

func TestVersionCompatibility(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		wantCode errors.ErrorCode
	}{
		{"same version", SchemaVersion, ""},
		{"older minor loads", "1.0.0", ""},
		{"newer minor rejected", "1.99.0", errors.VersionMismatch},
		{"different major rejected", "2.0.0", errors.VersionMismatch},
		{"unparseable rejected", "latest", errors.CorruptArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newCache(t)
			ctx := context.Background()
			if err := cache.Save(ctx, testutil.SampleStore(t)); err != nil {
				t.Fatal(err)
			}
			rewriteEnvelope(t, cache, func(env *envelope) {
				env.SchemaVersion = tt.version
			})

			_, err := cache.Load(ctx)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Load() error: %v", err)
				}
				return
			}
			if !errors.IsCode(err, tt.wantCode) {
				t.Errorf("got %v, want %s", err, tt.wantCode)
			}
		})
	}
}

// A version mismatch surfaces as an explicit error with no partial store,
// and the stale artifact stays on disk for the caller to regenerate.
func TestVersionMismatchLeavesNoPartialState(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()
	if err := cache.Save(ctx, testutil.SampleStore(t)); err != nil {
		t.Fatal(err)
	}
	rewriteEnvelope(t, cache, func(env *envelope) {
		env.SchemaVersion = "2.0.0"
	})

	store, err := cache.Load(ctx)
	if store != nil {
		t.Error("mismatched load must not return a store")
	}
	if !errors.IsCode(err, errors.VersionMismatch) {
		t.Errorf("got %v, want VERSION_MISMATCH", err)
	}
	if !cache.Exists() {
		t.Error("mismatched load must not delete the artifact")
	}
}

func TestRemove(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	// Removing a missing artifact is not an error.
	if err := cache.Remove(); err != nil {
		t.Fatalf("Remove() on empty cache: %v", err)
	}

	if err := cache.Save(ctx, testutil.SampleStore(t)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Remove(); err != nil {
		t.Fatal(err)
	}
	if cache.Exists() {
		t.Error("artifact should be gone after Remove")
	}
}

func TestSaveHonorsCancellation(t *testing.T) {
	cache := newCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.Save(ctx, testutil.SampleStore(t)); err == nil {
		t.Error("expected error from cancelled context")
	}
	if cache.Exists() {
		t.Error("cancelled save must not write an artifact")
	}
}

// rewriteEnvelope decodes the on-disk artifact, applies mutate, recomputes
// nothing, and writes it back. Used to forge stale or corrupt artifacts.
func rewriteEnvelope(t *testing.T, cache *Cache, mutate func(*envelope)) {
	t.Helper()

	f, err := os.Open(cache.Path())
	if err != nil {
		t.Fatal(err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(dec)
	dec.Close()
	_ = f.Close()
	if err != nil {
		t.Fatal(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	mutate(&env)
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}

	w, err := os.Create(cache.Path())
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(out); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
