package outputsync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/collodi/pkg/render"
)

// Result describes what the synchronizer did with one document.
type Result struct {
	Name    string
	Written bool
	Renamed bool
}

// Synchronizer reconciles assembled documents against the output directory.
// It owns the existing-file registry for the duration of a run; processing is
// single-threaded so no locking is involved.
type Synchronizer struct {
	Dir string

	reg     *Registry
	claimed map[string]string // filename -> conversation id, this run only
}

func NewSynchronizer(dir string) *Synchronizer {
	return &Synchronizer{
		Dir:     dir,
		claimed: map[string]string{},
	}
}

// ensure lazily creates the output directory and loads the registry on first
// use.
func (s *Synchronizer) ensure() error {
	if s.reg != nil {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", s.Dir)
	}
	reg, err := LoadRegistry(s.Dir)
	if err != nil {
		return err
	}
	s.reg = reg
	return nil
}

// Sync runs the per-document state machine: resolve target name, reconcile
// any existing record (rename), merge preserved metadata, hash-compare, then
// write or skip, and finally update the registry so later conversations in
// the run see this one's final name.
func (s *Synchronizer) Sync(doc *render.Document) (*Result, error) {
	if err := s.ensure(); err != nil {
		return nil, err
	}

	name := s.resolveName(doc)
	res := &Result{Name: name}

	rec := s.reg.Lookup(doc.ConversationID)
	if rec != nil && rec.Name != name {
		oldPath := filepath.Join(s.Dir, rec.Name)
		newPath := filepath.Join(s.Dir, name)
		if err := os.Rename(oldPath, newPath); err != nil {
			return nil, errors.Wrapf(err, "failed to rename %s to %s", rec.Name, name)
		}
		res.Renamed = true
		// A difference that disappears under NFC normalization is invisible
		// on normalizing filesystems, so only report real renames.
		if norm.NFC.String(rec.Name) != norm.NFC.String(name) {
			log.Info().Str("from", rec.Name).Str("to", name).Str("conversation", doc.ConversationID).Msg("renamed existing document")
		}
		s.reg.Rename(rec, name)
	}

	extra := preservedFields(rec, doc.GeneratedKeys())
	content, err := EncodeDocument(doc, extra)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode document for %q", doc.Title)
	}

	stagedPath, hash, err := s.stage(content)
	if err != nil {
		return nil, err
	}

	if rec != nil && rec.Hash == hash {
		if err := os.Remove(stagedPath); err != nil {
			return nil, errors.Wrap(err, "failed to discard staging file")
		}
		log.Debug().Str("file", name).Msg("document unchanged, skipping write")
	} else {
		if err := os.Rename(stagedPath, filepath.Join(s.Dir, name)); err != nil {
			return nil, errors.Wrapf(err, "failed to promote staging file to %s", name)
		}
		res.Written = true
	}

	fields := make([]render.Field, 0, len(doc.Fields)+len(extra))
	fields = append(fields, doc.Fields...)
	fields = append(fields, extra...)
	s.reg.Update(&Record{
		Name:           name,
		ConversationID: doc.ConversationID,
		Fields:         fields,
		Hash:           hash,
	})
	s.claimed[name] = doc.ConversationID

	return res, nil
}

// resolveName derives the document filename from the title slug, falling
// back to the conversation id, and suffixes _1, _2, ... while the name is
// claimed by a different conversation — either earlier in this run or by a
// prior-run document still on disk.
func (s *Synchronizer) resolveName(doc *render.Document) string {
	base := Slug(doc.Title)
	if base == "" {
		base = doc.ConversationID
	}

	name := base + ".md"
	for i := 1; ; i++ {
		owner, taken := s.claimed[name]
		if !taken {
			owner, taken = s.reg.Owner(name)
		}
		if !taken || owner == doc.ConversationID {
			return name
		}
		name = fmt.Sprintf("%s_%d.md", base, i)
	}
}

// preservedFields returns the keys of a pre-existing document that this run
// did not generate, in their original order. Generated keys always win.
func preservedFields(rec *Record, generated map[string]bool) []render.Field {
	if rec == nil {
		return nil
	}
	var extra []render.Field
	for _, f := range rec.Fields {
		if !generated[f.Key] {
			extra = append(extra, f)
		}
	}
	return extra
}

// stage writes the document to a temporary file in the output directory,
// hashing it on the way. The caller promotes or discards the file once the
// hash comparison is decided.
func (s *Synchronizer) stage(content string) (string, string, error) {
	tmp, err := os.CreateTemp(s.Dir, ".collodi-staging-*")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create staging file")
	}

	h := sha256.New()
	if _, err := io.WriteString(io.MultiWriter(tmp, h), content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", "", errors.Wrap(err, "failed to write staging file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", "", errors.Wrap(err, "failed to close staging file")
	}

	return tmp.Name(), hex.EncodeToString(h.Sum(nil)), nil
}

// EncodeDocument serializes the frontmatter header (generated fields first,
// preserved fields after, in order) followed by the rendered body.
func EncodeDocument(doc *render.Document, extra []render.Field) (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}

	addField := func(f render.Field) error {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(f.Value); err != nil {
			return errors.Wrapf(err, "failed to encode frontmatter key %s", f.Key)
		}
		if valueNode.Kind == yaml.SequenceNode {
			valueNode.Style = yaml.FlowStyle
		}
		mapping.Content = append(mapping.Content, keyNode, valueNode)
		return nil
	}

	for _, f := range doc.Fields {
		if err := addField(f); err != nil {
			return "", err
		}
	}
	for _, f := range extra {
		if err := addField(f); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "", errors.Wrap(err, "failed to encode frontmatter")
	}
	if err := enc.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finalize frontmatter")
	}

	body := doc.Body
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return "---\n" + buf.String() + "---\n" + body, nil
}
