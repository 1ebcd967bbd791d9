package outputsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/collodi/pkg/render"
)

func TestLoadRegistryRoundTripsEncodedDocument(t *testing.T) {
	dir := t.TempDir()

	doc := testDocument("c-round", "Round Trip")
	content, err := EncodeDocument(doc, []render.Field{
		{Key: "tags", Value: []interface{}{"manual"}},
	})
	require.NoError(t, err)
	path := filepath.Join(dir, "Round Trip.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)

	rec := reg.Lookup("c-round")
	require.NotNil(t, rec)
	require.Equal(t, "Round Trip.md", rec.Name)

	var keys []string
	for _, f := range rec.Fields {
		keys = append(keys, f.Key)
	}
	require.Equal(t, []string{"title", "created", "updated", "conversation_id", "conversation_url", "models", "tags"}, keys)
	require.Equal(t, "Round Trip", rec.Fields[0].Value)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, hashBytes(data), rec.Hash)

	owner, ok := reg.Owner("Round Trip.md")
	require.True(t, ok)
	require.Equal(t, "c-round", owner)
}

func TestLoadRegistrySkipsDocumentsWithoutID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"),
		[]byte("---\ntitle: just notes\n---\nbody\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.md"),
		[]byte("no header at all\n"), 0644))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)
	require.Nil(t, reg.Lookup(""))
	_, ok := reg.Owner("notes.md")
	require.False(t, ok)
}

func TestRegistryRenameReleasesOldName(t *testing.T) {
	reg := &Registry{byID: map[string]*Record{}, byName: map[string]string{}}
	rec := &Record{Name: "old.md", ConversationID: "c1"}
	reg.Update(rec)

	reg.Rename(rec, "new.md")

	_, ok := reg.Owner("old.md")
	require.False(t, ok)
	owner, ok := reg.Owner("new.md")
	require.True(t, ok)
	require.Equal(t, "c1", owner)
	require.Equal(t, "new.md", reg.Lookup("c1").Name)
}
