package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/session"
)

const initYAML = `
family: hu
k: 2
capacities: [2, 3]
labels:
  a: near
items:
  - {id: a, values: [0, 0]}
  - {id: b, values: [0.2, 0.1], label: near}
  - {id: c, values: [9, 9]}
`

const addJSON = `{
  "family": "hu",
  "items": [
    {"id": "d", "descriptors": [[10, 10], [8, 8]]}
  ]
}`

func TestDecodeBatch(t *testing.T) {
	b, err := DecodeBatch([]byte(initYAML))
	require.NoError(t, err)
	assert.Equal(t, "hu", b.Family)
	assert.Equal(t, OpInitialize, b.Op, "inferred from k")
	assert.Equal(t, []int{2, 3}, b.Capacities)
	assert.Len(t, b.Items, 3)
	assert.Equal(t, "near", b.Items[1].Label)
	assert.Equal(t, "near", b.Labels["a"])

	b, err = DecodeBatch([]byte(addJSON))
	require.NoError(t, err)
	assert.Equal(t, OpAdd, b.Op)
	require.Len(t, b.Items, 1)
	assert.True(t, b.Items[0].HasDescriptors())
}

func TestDecodeBatch_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "family: [unclosed"},
		{"bad op", "family: hu\nop: delete\nitems: [{id: a, values: [1]}]"},
		{"no items", "family: hu\nop: add"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBatch([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func writeBatch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIngester_ApplyFile(t *testing.T) {
	ctx := context.Background()
	m, err := session.NewManager()
	require.NoError(t, err)
	in := New(m)
	dir := t.TempDir()

	applied, err := in.ApplyFile(ctx, writeBatch(t, dir, "1-init.yaml", initYAML))
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = in.ApplyFile(ctx, writeBatch(t, dir, "2-add.json", addJSON))
	require.NoError(t, err)
	assert.True(t, applied)

	st, err := m.Status(ctx, "hu")
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalItems)

	// Same content under a new name is skipped.
	applied, err = in.ApplyFile(ctx, writeBatch(t, dir, "copy.json", addJSON))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 2, in.Applied())
}

func TestIngester_FamilyFromDirectory(t *testing.T) {
	ctx := context.Background()
	m, err := session.NewManager()
	require.NoError(t, err)
	in := New(m)

	path := writeBatch(t, t.TempDir(), filepath.Join("hog", "b.yaml"), "k: 1\nitems: [{id: x, values: [1, 2]}]")
	applied, err := in.ApplyFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, applied)

	st, err := m.Status(ctx, "hog")
	require.NoError(t, err)
	assert.True(t, st.Active)
}

func TestIngester_ReappliesAfterReset(t *testing.T) {
	ctx := context.Background()
	m, err := session.NewManager()
	require.NoError(t, err)
	in := New(m)
	dir := t.TempDir()
	initPath := writeBatch(t, dir, "init.yaml", initYAML)
	addPath := writeBatch(t, dir, "add.json", addJSON)

	for _, p := range []string{initPath, addPath} {
		applied, err := in.ApplyFile(ctx, p)
		require.NoError(t, err)
		require.True(t, applied)
	}
	require.NoError(t, m.Reset(ctx, "hu"))
	assert.Zero(t, in.Applied())

	for _, p := range []string{initPath, addPath} {
		applied, err := in.ApplyFile(ctx, p)
		require.NoError(t, err)
		assert.True(t, applied, p)
	}
	st, err := m.Status(ctx, "hu")
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, 4, st.TotalItems)
}

func TestIngester_ReinitializeForgetsEarlierBatches(t *testing.T) {
	ctx := context.Background()
	m, err := session.NewManager()
	require.NoError(t, err)
	in := New(m)
	dir := t.TempDir()
	addPath := writeBatch(t, dir, "add.json", addJSON)

	_, err = in.ApplyFile(ctx, writeBatch(t, dir, "init.yaml", initYAML))
	require.NoError(t, err)
	_, err = in.ApplyFile(ctx, addPath)
	require.NoError(t, err)

	_, err = m.Initialize(ctx, "hu", models.InitializeRequest{
		K:     2,
		Reset: true,
		Items: []models.ItemInput{{ID: "p", Values: []float64{1, 1}}, {ID: "q", Values: []float64{7, 7}}},
	})
	require.NoError(t, err)

	applied, err := in.ApplyFile(ctx, addPath)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestIngester_SameContentPerFamily(t *testing.T) {
	ctx := context.Background()
	m, err := session.NewManager()
	require.NoError(t, err)
	in := New(m)
	dir := t.TempDir()
	const body = "k: 1\nitems: [{id: x, values: [1, 2]}]"

	for _, family := range []string{"hog", "sift"} {
		applied, err := in.ApplyFile(ctx, writeBatch(t, dir, filepath.Join(family, "b.yaml"), body))
		require.NoError(t, err)
		assert.True(t, applied, family)
	}
	assert.Equal(t, 2, in.Applied())
}

func TestIngester_RejectedBatchCanBeRetried(t *testing.T) {
	ctx := context.Background()
	m, err := session.NewManager()
	require.NoError(t, err)
	in := New(m)
	dir := t.TempDir()

	add := writeBatch(t, dir, "add.json", addJSON)
	_, err = in.ApplyFile(ctx, add)
	require.Error(t, err, "no active model yet")
	in.HandleFile(ctx, add)

	_, err = in.ApplyFile(ctx, writeBatch(t, dir, "init.yaml", initYAML))
	require.NoError(t, err)
	applied, err := in.ApplyFile(ctx, add)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestIngester_MissingFile(t *testing.T) {
	m, err := session.NewManager()
	require.NoError(t, err)
	_, err = New(m).ApplyFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
