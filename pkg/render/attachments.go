package render

import (
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// AttachmentStore resolves attachment asset ids against the archive and
// copies the binaries into the output's attachments subdirectory. Copies are
// idempotent: a destination that is already byte-identical is left alone.
type AttachmentStore struct {
	ArchiveDir string
	OutputDir  string
	Subdir     string

	// archive-relative candidate paths, built lazily and kept sorted so
	// prefix matches resolve the same file on every run
	index []string
}

func NewAttachmentStore(archiveDir, outputDir, subdir string) *AttachmentStore {
	return &AttachmentStore{
		ArchiveDir: archiveDir,
		OutputDir:  outputDir,
		Subdir:     subdir,
	}
}

// Resolve copies the attachment with the given asset id into the output
// directory and returns its output-relative markdown path. A missing
// attachment returns os.ErrNotExist.
func (s *AttachmentStore) Resolve(assetID string) (string, error) {
	if err := s.buildIndex(); err != nil {
		return "", err
	}

	src := ""
	for _, candidate := range s.index {
		base := filepath.Base(candidate)
		if base == assetID || strings.HasPrefix(base, assetID+"-") || strings.HasPrefix(base, assetID+".") {
			src = candidate
			break
		}
	}
	if src == "" {
		return "", errors.Wrapf(os.ErrNotExist, "attachment %s not found in archive", assetID)
	}

	base := filepath.Base(src)
	dest := filepath.Join(s.OutputDir, s.Subdir, base)
	if err := copyIfDifferent(filepath.Join(s.ArchiveDir, src), dest); err != nil {
		return "", err
	}

	return path.Join(s.Subdir, base), nil
}

// buildIndex lists the archive root and one directory level below it, which
// covers exports that place generated images under subdirectories.
func (s *AttachmentStore) buildIndex() error {
	if s.index != nil {
		return nil
	}
	s.index = []string{}

	entries, err := os.ReadDir(s.ArchiveDir)
	if err != nil {
		return errors.Wrapf(err, "failed to list archive directory %s", s.ArchiveDir)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			s.index = append(s.index, entry.Name())
			continue
		}
		subEntries, err := os.ReadDir(filepath.Join(s.ArchiveDir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("dir", entry.Name()).Msg("skipping unreadable archive subdirectory")
			continue
		}
		for _, sub := range subEntries {
			if !sub.IsDir() {
				s.index = append(s.index, filepath.Join(entry.Name(), sub.Name()))
			}
		}
	}
	sort.Strings(s.index)
	return nil
}

func copyIfDifferent(src, dest string) error {
	srcData, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "failed to read attachment %s", src)
	}

	if destData, err := os.ReadFile(dest); err == nil && bytes.Equal(srcData, destData) {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "failed to create attachments directory")
	}

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dest)
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, bytes.NewReader(srcData)); err != nil {
		return errors.Wrapf(err, "failed to copy attachment to %s", dest)
	}
	return nil
}
