package ops

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/chemfetch/internal/compound"
	"github.com/hpungsan/chemfetch/internal/config"
	"github.com/hpungsan/chemfetch/internal/db"
)

// fakeResolver answers from a fixed table; unknown identifiers are no-match.
type fakeResolver struct {
	mu      sync.Mutex
	records map[string]*compound.Record
	errs    map[string]error
	calls   []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		records: map[string]*compound.Record{
			"aspirin":  testRecord("2-acetyloxybenzoic acid", 2244),
			"ethanol":  testRecord("ethanol", 702),
			"caffeine": testRecord("1,3,7-trimethylpurine-2,6-dione", 2519),
		},
		errs: map[string]error{},
	}
}

func (f *fakeResolver) Resolve(_ context.Context, identifier string, _ compound.Kind) (*compound.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identifier)
	if err := f.errs[identifier]; err != nil {
		return nil, err
	}
	return f.records[identifier], nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testRecord(name string, cid int64) *compound.Record {
	formula := "C1H1"
	return &compound.Record{Name: name, CID: cid, Formula: &formula}
}

type testEnv struct {
	db  *sql.DB
	cfg *config.Config
	dir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Init(filepath.Join(dir, "home"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return &testEnv{db: database, cfg: config.DefaultConfig(), dir: dir}
}

// writeInput writes identifiers, one per line, and returns the file path.
func (e *testEnv) writeInput(t *testing.T, ids ...string) string {
	t.Helper()
	path := filepath.Join(e.dir, "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(ids, "\n")+"\n"), 0644))
	return path
}

func (e *testEnv) outputPath() string {
	return filepath.Join(e.dir, "out.txt")
}

func readOutput(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

func noInterval() *time.Duration {
	d := time.Duration(0)
	return &d
}
