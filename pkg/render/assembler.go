package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/collodi/pkg/chatexport"
)

const conversationURLPrefix = "https://chatgpt.com/c/"

// Field is one ordered frontmatter entry.
type Field struct {
	Key   string
	Value interface{}
}

// Document is a fully assembled conversation: the ordered generated
// frontmatter fields and the rendered markdown body.
type Document struct {
	ConversationID string
	Title          string
	Fields         []Field
	Body           string
}

// GeneratedKeys returns the set of frontmatter keys this run produced, used
// by the output synchronizer to decide which pre-existing keys to preserve.
func (d *Document) GeneratedKeys() map[string]bool {
	keys := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		keys[f.Key] = true
	}
	return keys
}

// Assembler drives per-conversation rendering: it resolves the main path,
// renders each node, merges adjacent process blocks, inserts role headers
// and composes the metadata header.
type Assembler struct {
	Renderer   *Renderer
	CreatedKey string
	UpdatedKey string
}

func NewAssembler(renderer *Renderer, createdKey, updatedKey string) *Assembler {
	if createdKey == "" {
		createdKey = "created"
	}
	if updatedKey == "" {
		updatedKey = "updated"
	}
	return &Assembler{Renderer: renderer, CreatedKey: createdKey, UpdatedKey: updatedKey}
}

func (a *Assembler) Assemble(conv *chatexport.Conversation) (*Document, error) {
	path, err := chatexport.MainPath(conv)
	if err != nil {
		return nil, errors.Wrapf(err, "conversation %q", conv.Title)
	}

	blocks := []*Block{}
	models := []string{}
	seenModels := map[string]bool{}

	for _, id := range path {
		node := conv.Nodes[id]

		if node.Message != nil {
			if slug := node.Message.ModelSlug(); slug != "" && !seenModels[slug] {
				seenModels[slug] = true
				models = append(models, slug)
			}
		}

		block, err := a.Renderer.RenderNode(node)
		if err != nil {
			return nil, errors.Wrapf(err, "conversation %q", conv.Title)
		}
		if block == nil {
			continue
		}

		if last := lastBlock(blocks); last != nil && last.Type == BlockProcess && block.Type == BlockProcess {
			last.Text = mergeProcessBlocks(last.Text, block.Text)
			continue
		}
		blocks = append(blocks, block)
	}

	return &Document{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Fields: []Field{
			{Key: "title", Value: conv.Title},
			{Key: a.CreatedKey, Value: conv.CreateTime.Format(time.RFC3339)},
			{Key: a.UpdatedKey, Value: conv.UpdateTime.Format(time.RFC3339)},
			{Key: "conversation_id", Value: conv.ID},
			{Key: "conversation_url", Value: conversationURLPrefix + conv.ID},
			{Key: "models", Value: models},
		},
		Body: composeBody(blocks),
	}, nil
}

func lastBlock(blocks []*Block) *Block {
	if len(blocks) == 0 {
		return nil
	}
	return blocks[len(blocks)-1]
}

var thoughtsHeaderPattern = regexp.MustCompile(`^> \[![a-z]+\]- Thoughts$`)

// mergeProcessBlocks nests a continuation process block inside the previous
// one instead of emitting a sibling: the continuation loses its leading
// "Thoughts" callout header if it has one, is re-quoted one level deeper and
// appended after a lone quote separator line.
func mergeProcessBlocks(prev, continuation string) string {
	lines := strings.Split(continuation, "\n")
	if len(lines) > 0 && thoughtsHeaderPattern.MatchString(lines[0]) {
		lines = lines[1:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimRight("> "+line, " ")
	}
	return prev + "\n>\n" + strings.Join(lines, "\n")
}

// composeBody emits the blocks in order, inserting a "# User" or "# ChatGPT"
// heading exactly when the side of the dialogue changes.
func composeBody(blocks []*Block) string {
	var sb strings.Builder
	side := ""

	for _, block := range blocks {
		blockSide := "ChatGPT"
		if block.Type == BlockUser || block.Type == BlockContext {
			blockSide = "User"
		}

		if blockSide != side {
			side = blockSide
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "# %s\n\n", side)
		} else if sb.Len() > 0 {
			sb.WriteString("\n")
		}

		sb.WriteString(block.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}
