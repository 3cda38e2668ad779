package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/store"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func memoryDeps(t *testing.T, repo *store.Memory) *deps {
	t.Helper()
	return &deps{
		openRepo: func(string) (store.Repository, io.Closer, error) {
			return repo, nopCloser{}, nil
		},
		openCatalog: func(string) (catalog.Catalog, error) {
			return catalog.Default()
		},
	}
}

func run(t *testing.T, d *deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(d, &out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seed(t *testing.T, repo *store.Memory) matrix.Decision {
	t.Helper()
	d, err := repo.Create(context.Background(), matrix.Decision{
		Title:        "Laptop",
		Criteria:     []matrix.Criterion{{ID: "perf", Name: "Performance", Weight: 3}, {ID: "price", Name: "Price", Weight: 2}},
		Alternatives: []matrix.Alternative{{ID: "mac", Name: "MacBook Air"}, {ID: "xps", Name: "Dell XPS"}},
		Scores: matrix.ScoreMatrix{
			"mac": {"perf": {Value: 5}, "price": {Value: 2}},
			"xps": {"perf": {Value: 4}, "price": {Value: 4}},
		},
	})
	require.NoError(t, err)
	return d
}

func TestListAndShow(t *testing.T) {
	repo := store.NewMemory()
	d := seed(t, repo)
	env := memoryDeps(t, repo)

	out, err := run(t, env, "list")
	require.NoError(t, err)
	assert.Contains(t, out, d.ID)
	assert.Contains(t, out, "100%")

	out, err = run(t, env, "list", "--search", "phone")
	require.NoError(t, err)
	assert.NotContains(t, out, d.ID)

	out, err = run(t, env, "show", d.ID)
	require.NoError(t, err)
	var shown matrix.Decision
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "Laptop", shown.Title)

	_, err = run(t, env, "show", "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResults(t *testing.T) {
	repo := store.NewMemory()
	d := seed(t, repo)

	out, err := run(t, memoryDeps(t, repo), "results", d.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Dell XPS")
	assert.Contains(t, lines[1], "20.00 / 25.00")

	out, err = run(t, memoryDeps(t, repo), "results", d.ID, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"alternative_id": "xps"`)
}

func TestExportImportRoundTrip(t *testing.T) {
	source := store.NewMemory()
	d := seed(t, source)
	path := filepath.Join(t.TempDir(), "export.json")

	out, err := run(t, memoryDeps(t, source), "export", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 decisions")

	target := store.NewMemory()
	out, err = run(t, memoryDeps(t, target), "import", path, "--mode", "replace")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 decisions (replace)")

	got, err := target.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Scores, got.Scores)

	_, err = run(t, memoryDeps(t, target), "import", path, "--mode", "sideways")
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"title": "no id"}]`), 0o600))
	_, err = run(t, memoryDeps(t, target), "import", bad)
	require.True(t, matrix.IsValidation(err))
}

func TestTemplatesAndCatalog(t *testing.T) {
	env := memoryDeps(t, store.NewMemory())

	out, err := run(t, env, "templates")
	require.NoError(t, err)
	assert.Contains(t, out, "laptop")

	out, err = run(t, env, "catalog", "category")
	require.NoError(t, err)
	assert.Contains(t, out, "headphones")

	out, err = run(t, env, "catalog", "category", "smartphones")
	require.NoError(t, err)
	assert.Contains(t, out, "ph-pixel-9")

	out, err = run(t, env, "catalog", "search", "macbook")
	require.NoError(t, err)
	assert.Contains(t, out, "lap-mba-m3")
}
