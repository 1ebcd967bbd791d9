package outputsync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/collodi/pkg/render"
)

// Record tracks one previously written document: its current filename, the
// frontmatter fields it declared (in file order) and the hash of its bytes.
type Record struct {
	Name           string
	ConversationID string
	Fields         []render.Field
	Hash           string
}

// Registry is the index of existing documents in the output directory,
// built once per run and mutated as conversations are written.
type Registry struct {
	Dir    string
	byID   map[string]*Record
	byName map[string]string
}

// LoadRegistry scans the output directory for markdown documents and indexes
// them by the conversation_id in their frontmatter. A document whose header
// cannot be parsed is logged and treated as carrying no conversation id; it
// will not match any conversation this run.
func LoadRegistry(dir string) (*Registry, error) {
	reg := &Registry{Dir: dir, byID: map[string]*Record{}, byName: map[string]string{}}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list output directory %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", entry.Name())
		}

		fields, err := parseFrontmatter(data)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("could not parse metadata header of existing document, ignoring it")
			continue
		}

		id := ""
		for _, f := range fields {
			if f.Key == "conversation_id" {
				id, _ = f.Value.(string)
			}
		}
		if id == "" {
			continue
		}

		reg.byID[id] = &Record{
			Name:           entry.Name(),
			ConversationID: id,
			Fields:         fields,
			Hash:           hashBytes(data),
		}
		reg.byName[entry.Name()] = id
	}

	return reg, nil
}

func (r *Registry) Lookup(conversationID string) *Record {
	return r.byID[conversationID]
}

// Owner reports which conversation a filename currently belongs to.
func (r *Registry) Owner(name string) (string, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Rename moves a record to a new filename, releasing the old name.
func (r *Registry) Rename(rec *Record, name string) {
	delete(r.byName, rec.Name)
	rec.Name = name
	r.byName[name] = rec.ConversationID
}

func (r *Registry) Update(rec *Record) {
	if old, ok := r.byID[rec.ConversationID]; ok && old.Name != rec.Name {
		delete(r.byName, old.Name)
	}
	r.byID[rec.ConversationID] = rec
	r.byName[rec.Name] = rec.ConversationID
}

// parseFrontmatter reads the header into ordered key/value fields; a plain
// map would lose the order manually added keys were declared in, so the
// matter bytes are decoded a second time into a yaml.Node.
func parseFrontmatter(data []byte) ([]render.Field, error) {
	var probe map[string]interface{}
	rest, err := frontmatter.Parse(bytes.NewReader(data), &probe)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		// no frontmatter at all
		return nil, nil
	}

	header := data[:len(data)-len(rest)]
	header = bytes.TrimSpace(header)
	header = bytes.TrimPrefix(header, []byte("---"))
	header = bytes.TrimSuffix(header, []byte("---"))

	var node yaml.Node
	if err := yaml.Unmarshal(header, &node); err != nil {
		return nil, err
	}

	mapping := &node
	if mapping.Kind == yaml.DocumentNode && len(mapping.Content) > 0 {
		mapping = mapping.Content[0]
	}
	if mapping.Kind == 0 {
		return nil, nil
	}
	if mapping.Kind != yaml.MappingNode {
		return nil, errors.New("metadata header is not a key/value mapping")
	}

	var fields []render.Field
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		var value interface{}
		if err := mapping.Content[i+1].Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "failed to decode value of key %s", mapping.Content[i].Value)
		}
		fields = append(fields, render.Field{Key: mapping.Content[i].Value, Value: value})
	}
	return fields, nil
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
