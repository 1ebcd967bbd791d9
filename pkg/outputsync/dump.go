package outputsync

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/go-go-golems/collodi/pkg/chatexport"
)

// DumpConversation writes the conversation's raw export JSON to the dump
// directory, one file per conversation, sharing the derived document
// basename. This is a debugging side-channel, nothing reads it back.
func DumpConversation(dir string, conv *chatexport.Conversation) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create dump directory %s", dir)
	}

	base := Slug(conv.Title)
	if base == "" {
		base = conv.ID
	}

	data := conv.Raw
	if len(data) == 0 {
		var err error
		data, err = json.Marshal(conv)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal conversation %s", conv.ID)
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(data)
	}

	path := filepath.Join(dir, base+".json")
	if err := os.WriteFile(path, pretty.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write dump %s", path)
	}
	return nil
}
