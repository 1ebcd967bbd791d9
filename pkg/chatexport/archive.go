package chatexport

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const conversationsFile = "conversations.json"

// Archive is an opened export: a directory holding conversations.json plus
// the attachment binaries, named "<attachment-id>-<original-name>".
type Archive struct {
	Dir string
}

// OpenArchive accepts either an already extracted export directory or the
// export .zip itself. Zip archives are extracted into a sibling directory
// named after the archive; extraction is idempotent, files already present
// with the expected size are left alone.
func OpenArchive(path string) (*Archive, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open archive %s", path)
	}

	dir := path
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(path), ".zip") {
			return nil, errors.Errorf("archive %s is neither a directory nor a zip file", path)
		}
		dir = strings.TrimSuffix(path, filepath.Ext(path))
		if err := extractZip(path, dir); err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(filepath.Join(dir, conversationsFile)); err != nil {
		return nil, errors.Wrapf(err, "archive %s does not contain %s", path, conversationsFile)
	}

	return &Archive{Dir: dir}, nil
}

// Conversations loads and parses the conversation trees, sorted by ascending
// creation time so runs process them in a stable order.
func (a *Archive) Conversations() ([]*Conversation, error) {
	data, err := os.ReadFile(filepath.Join(a.Dir, conversationsFile))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", conversationsFile)
	}

	conversations, err := ParseConversations(data)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreateTime.Before(conversations[j].CreateTime)
	})
	return conversations, nil
}

func extractZip(zipPath, dir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open zip archive %s", zipPath)
	}
	defer func() {
		_ = reader.Close()
	}()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create extraction directory %s", dir)
	}

	for _, file := range reader.File {
		if err := extractZipEntry(file, dir); err != nil {
			return err
		}
	}

	log.Debug().Str("zip", zipPath).Str("dir", dir).Msg("extracted export archive")
	return nil
}

func extractZipEntry(file *zip.File, dir string) error {
	// Reject entries that would escape the extraction directory.
	dest := filepath.Join(dir, filepath.FromSlash(file.Name))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return errors.Errorf("zip entry %s escapes the extraction directory", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}

	if info, err := os.Stat(dest); err == nil && info.Size() == int64(file.UncompressedSize64) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", file.Name)
	}

	src, err := file.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open zip entry %s", file.Name)
	}
	defer func() {
		_ = src.Close()
	}()

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dest)
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, src); err != nil {
		return errors.Wrapf(err, "failed to extract %s", file.Name)
	}
	return nil
}
