package integrations

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/utils"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, content, 0644))
	}
}

func readTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		content, err := os.ReadFile(p)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = content
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestArchive_RoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Berserk - Vol.1 Ch.1 - The Black Swordsman")
	files := map[string][]byte{
		"Berserk - Ch.1 - 1.jpg": bytes.Repeat([]byte{0xFF, 0xD8}, 512),
		"Berserk - Ch.1 - 2.jpg": []byte("second page"),
		"_metadata":              []byte(`{"name":"Berserk","saver":false}`),
		"extras/notes.txt":       []byte("nested"),
	}
	writeTree(t, src, files)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))

	dest := src + ".cbz"
	require.NoError(t, Archive(src, dest))

	// the finalizer never removes its source
	_, err := os.Stat(src)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Extract(dest, out))
	assert.Equal(t, files, readTree(t, out))

	info, err := os.Stat(filepath.Join(out, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestArchive_StoredAndOrdered(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{
		"b.jpg":     []byte("b"),
		"a.jpg":     []byte("a"),
		"c/d.jpg":   []byte("d"),
		"_metadata": []byte("{}"),
	})
	dest := filepath.Join(t.TempDir(), "out.cbz")
	require.NoError(t, Archive(src, dest))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Store, f.Method, f.Name)
	}
	assert.Equal(t, []string{"_metadata", "a.jpg", "b.jpg", "c/d.jpg"}, names)
}

func TestArchive_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "page.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	err := Archive(file, file+".cbz")
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindArchive))

	err = Archive(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "x.cbz"))
	assert.Error(t, err)
}

func TestReadArchiveMetadata(t *testing.T) {
	src := t.TempDir()
	meta := data.ChapterMetadata{
		Name:       "Berserk",
		ID:         "c1",
		MangaID:    "m1",
		Saver:      true,
		Title:      "The Black Swordsman",
		Pages:      "2",
		Chapter:    "1",
		Volume:     "1",
		Scanlation: data.Scanlation{Name: "None", Website: "None"},
	}
	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	writeTree(t, src, map[string][]byte{MetadataFile: raw, "1.jpg": []byte("x")})

	dest := filepath.Join(t.TempDir(), "ch.cbz")
	require.NoError(t, Archive(src, dest))

	got, err := ReadArchiveMetadata(dest)
	require.NoError(t, err)
	assert.Equal(t, meta, *got)
}

func TestReadArchiveMetadata_Missing(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{"1.jpg": []byte("x")})
	dest := filepath.Join(t.TempDir(), "ch.cbz")
	require.NoError(t, Archive(src, dest))

	_, err := ReadArchiveMetadata(dest)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}
