package integrations

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/utils"
	"github.com/klauspost/compress/zip"
)

// MetadataFile is the name of the provenance sidecar inside a chapter folder
const MetadataFile = "_metadata"

// Archive packs sourceDir into destFile. Entries are stored uncompressed in
// lexical walk order with paths relative to sourceDir; empty directories get
// their own entry. The source is left in place.
func Archive(sourceDir, destFile string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return utils.ArchiveError(sourceDir, err)
	}
	if !info.IsDir() {
		return utils.ArchiveError(sourceDir, fmt.Errorf("not a directory"))
	}

	out, err := os.Create(destFile)
	if err != nil {
		return utils.IoError(destFile, err)
	}

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, err = zw.CreateHeader(&zip.FileHeader{Name: name + "/", Method: zip.Store})
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return addFile(zw, p, name)
	})

	if walkErr != nil {
		zw.Close()
		out.Close()
		os.Remove(destFile)
		return utils.ArchiveError(sourceDir, walkErr)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(destFile)
		return utils.ArchiveError(destFile, err)
	}
	if err := out.Close(); err != nil {
		return utils.IoError(destFile, err)
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Extract unpacks archive into dir
func Extract(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return utils.ArchiveError(archive, err)
	}
	defer zr.Close()

	root := filepath.Clean(dir)
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return utils.ArchiveError(archive, fmt.Errorf("entry %q escapes destination", f.Name))
		}
		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return utils.IoError(target, err)
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return utils.IoError(target, err)
	}
	rc, err := f.Open()
	if err != nil {
		return utils.ArchiveError(f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return utils.IoError(target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return utils.IoError(target, err)
	}
	return out.Close()
}

// ReadArchiveMetadata reads the chapter metadata sidecar stored in an archive
func ReadArchiveMetadata(archive string) (*data.ChapterMetadata, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, utils.ArchiveError(archive, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if path.Base(f.Name) != MetadataFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, utils.ArchiveError(archive, err)
		}
		defer rc.Close()

		var meta data.ChapterMetadata
		if err := json.NewDecoder(rc).Decode(&meta); err != nil {
			return nil, utils.JsonError(archive, err)
		}
		return &meta, nil
	}
	return nil, utils.NotFoundError(archive, MetadataFile)
}
