package loader

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad_AllPresentPreservesRegistryOrder(t *testing.T) {
	dir := t.TempDir()
	reg := DefaultRegistry()
	for _, ds := range reg {
		writeFile(t, dir, ds.Path, `{"id":"`+ds.ID+`"}`)
	}

	res, err := Load(context.Background(), dir, reg)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Empty(t, res.Missing())

	var ids []string
	for _, e := range res.Loaded() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, reg.IDs(), ids)
	assert.Equal(t, 5, res.Len())
}

func TestLoad_MissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.json", `{"name":"A"}`)

	res, err := Load(context.Background(), dir, DefaultRegistry())
	require.NoError(t, err)
	require.NoError(t, res.Err())

	loaded := res.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, "about", loaded[0].ID)
	assert.Equal(t, map[string]any{"name": "A"}, loaded[0].Value)

	missing := res.Missing()
	assert.Equal(t, []string{
		filepath.Join(dir, "experience.json"),
		filepath.Join(dir, "projects.json"),
		filepath.Join(dir, "skills.json"),
		filepath.Join(dir, "education.json"),
	}, missing)
}

func TestLoad_MalformedFileIsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.json", `{"name":"A"}`)
	writeFile(t, dir, "skills.json", `{"name": }`)

	res, err := Load(context.Background(), dir, DefaultRegistry())
	require.NoError(t, err)

	loadErr := res.Err()
	require.Error(t, loadErr)
	var perr *ParseError
	require.True(t, errors.As(loadErr, &perr))
	assert.Equal(t, "skills", perr.ID)
	assert.Contains(t, loadErr.Error(), filepath.Join(dir, "skills.json"))
	assert.Equal(t, 1, res.Len())
}

func TestLoad_InvalidUTF8IsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.json", "{\"name\":\"caf\xe9\"}")
	writeFile(t, dir, "skills.json", `["Go"]`)

	res, err := Load(context.Background(), dir, DefaultRegistry())
	require.NoError(t, err)

	assert.Equal(t, Invalid, res.Outcomes[0].Kind)
	var perr *ParseError
	require.True(t, errors.As(res.Err(), &perr))
	assert.Equal(t, "about", perr.ID)
	assert.Contains(t, res.Err().Error(), filepath.Join(dir, "about.json"))
	assert.Contains(t, res.Err().Error(), "invalid UTF-8")
	assert.Equal(t, 1, res.Len())
}

func TestLoad_MultipleInvalidFilesAreJoined(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "about.json", `[1,2`)
	writeFile(t, dir, "projects.json", ``)

	res, err := Load(context.Background(), dir, DefaultRegistry())
	require.NoError(t, err)

	loadErr := res.Err()
	require.Error(t, loadErr)
	assert.Contains(t, loadErr.Error(), "about.json")
	assert.Contains(t, loadErr.Error(), "projects.json")
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, t.TempDir(), DefaultRegistry())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_AbsolutePathIgnoresDataDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "custom.json", `"hello"`)
	reg := Registry{{ID: "custom", Path: filepath.Join(dir, "custom.json")}}

	res, err := Load(context.Background(), "does-not-matter", reg)
	require.NoError(t, err)
	require.Len(t, res.Loaded(), 1)
	assert.Equal(t, "hello", res.Loaded()[0].Value)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    any
		wantErr bool
	}{
		{name: "object", input: `{"a": 1}`, want: map[string]any{"a": json.Number("1")}},
		{name: "array", input: "[true, null]\n", want: []any{true, nil}},
		{name: "scalar", input: ` 12345678901234567890 `, want: json.Number("12345678901234567890")},
		{name: "empty", input: "   ", wantErr: true},
		{name: "trailing", input: `{} {}`, wantErr: true},
		{name: "truncated", input: `{"a":`, wantErr: true},
		{name: "invalid utf-8", input: "\"caf\xe9\"", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_SchemaValidation(t *testing.T) {
	dataDir := t.TempDir()
	schemaDir := t.TempDir()
	writeFile(t, schemaDir, "about.schema.json", `{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string"}}
	}`)
	reg := Registry{{ID: "about", Path: "about.json"}, {ID: "skills", Path: "skills.json"}}

	writeFile(t, dataDir, "about.json", `{"name": 42}`)
	writeFile(t, dataDir, "skills.json", `{"anything": "goes"}`)

	res, err := Load(context.Background(), dataDir, reg, WithSchemaDir(schemaDir))
	require.NoError(t, err)
	require.Error(t, res.Err())
	assert.Contains(t, res.Err().Error(), "schema validation failed")
	require.Len(t, res.Loaded(), 1)
	assert.Equal(t, "skills", res.Loaded()[0].ID)

	writeFile(t, dataDir, "about.json", `{"name": "A"}`)
	res, err = Load(context.Background(), dataDir, reg, WithSchemaDir(schemaDir))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 2, res.Len())
}

func TestRegistryValidate(t *testing.T) {
	assert.NoError(t, DefaultRegistry().Validate())
	assert.Error(t, Registry{}.Validate())
	assert.Error(t, Registry{{ID: "my-data", Path: "x.json"}}.Validate())
	assert.Error(t, Registry{{ID: "a", Path: "a.json"}, {ID: "a", Path: "b.json"}}.Validate())
	assert.Error(t, Registry{{ID: "a"}}.Validate())
	assert.NoError(t, Registry{{ID: "$data_2", Path: "d.json"}}.Validate())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "missing", Missing.String())
	assert.Equal(t, "invalid", Invalid.String())
}
