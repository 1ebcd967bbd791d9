package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/collodi/pkg/chatexport"
)

// BlockType classifies rendered output. User and context blocks group under
// the "# User" heading, process and response blocks under "# ChatGPT".
type BlockType string

const (
	BlockUser     BlockType = "user"
	BlockContext  BlockType = "context"
	BlockProcess  BlockType = "process"
	BlockResponse BlockType = "response"
)

type Block struct {
	Type BlockType
	Text string
}

// UnsupportedContentError aborts the run when a (role, content-kind)
// combination has no rendering rule. It carries the raw node so the
// offending structure can be inspected.
type UnsupportedContentError struct {
	Role chatexport.Role
	Kind chatexport.ContentKind
	Node *chatexport.Node
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("no rendering rule for role %q with content kind %q (node %s)", e.Role, e.Kind, e.Node.ID)
}

// Renderer maps one message node into zero or one rendered block.
type Renderer struct {
	Attachments *AttachmentStore
	ShowModel   bool
}

// internal bookkeeping agents whose messages never appear in the document
func isBookkeepingAuthor(name string) bool {
	return name == "bio" || strings.HasPrefix(name, "canmore.")
}

// RenderNode dispatches on (role, content kind). A nil block with a nil
// error means the node is intentionally invisible.
func (r *Renderer) RenderNode(node *chatexport.Node) (*Block, error) {
	msg := node.Message
	if msg == nil {
		return nil, nil
	}
	if msg.Hidden() {
		return nil, nil
	}
	if isBookkeepingAuthor(msg.Author.Name) || msg.Recipient == "bio" {
		return nil, nil
	}

	switch msg.Author.Role {
	case chatexport.RoleUser:
		return r.renderUser(node, msg)
	case chatexport.RoleAssistant:
		return r.renderAssistant(node, msg)
	case chatexport.RoleTool:
		return r.renderTool(node, msg)
	case chatexport.RoleSystem:
		// hidden system messages were skipped above; a visible one means
		// the archive holds structure we do not understand
		return nil, &UnsupportedContentError{Role: msg.Author.Role, Kind: msg.Content.Kind(), Node: node}
	default:
		return nil, &UnsupportedContentError{Role: msg.Author.Role, Kind: msg.Content.Kind(), Node: node}
	}
}

func (r *Renderer) renderUser(node *chatexport.Node, msg *chatexport.Message) (*Block, error) {
	switch c := msg.Content.(type) {
	case *chatexport.TextContent:
		text := c.Text()
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return &Block{Type: BlockUser, Text: text}, nil
	case *chatexport.MultimodalContent:
		text := r.renderMultimodalParts(msg, c)
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return &Block{Type: BlockUser, Text: text}, nil
	case *chatexport.UserEditableContextContent:
		// custom-instructions placeholder injected by the app
		return nil, nil
	case *chatexport.AppPairingContent:
		return r.renderAppPairing(c)
	default:
		return nil, &UnsupportedContentError{Role: msg.Author.Role, Kind: msg.Content.Kind(), Node: node}
	}
}

func (r *Renderer) renderAssistant(node *chatexport.Node, msg *chatexport.Message) (*Block, error) {
	switch c := msg.Content.(type) {
	case *chatexport.TextContent:
		if msg.SearchSourced() {
			return r.renderSearchGroups(msg.SearchResultGroups())
		}
		return r.renderResponse(msg, c)
	case *chatexport.MultimodalContent:
		resolver := NewCitationResolver(msg.ContentReferences())
		lines := []string{}
		for _, line := range strings.Split(r.renderMultimodalParts(msg, c), "\n") {
			lines = append(lines, resolver.Substitute(line))
		}
		text := strings.Join(lines, "\n")
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return &Block{Type: BlockResponse, Text: text}, nil
	case *chatexport.ThoughtsContent:
		return r.renderThoughts(c)
	case *chatexport.ReasoningRecapContent:
		if strings.TrimSpace(c.Content) == "" {
			return nil, nil
		}
		a := NewAccumulator()
		_ = a.Quoted("> ", func() error {
			a.Linef("[!note]- %s", strings.TrimSpace(c.Content))
			return nil
		})
		return &Block{Type: BlockProcess, Text: a.String()}, nil
	case *chatexport.CodeContent:
		if strings.HasPrefix(msg.Recipient, "web") {
			return r.renderSearchQueries(c)
		}
		return r.renderCode(msg, c)
	default:
		return nil, &UnsupportedContentError{Role: msg.Author.Role, Kind: msg.Content.Kind(), Node: node}
	}
}

func (r *Renderer) renderTool(node *chatexport.Node, msg *chatexport.Message) (*Block, error) {
	switch c := msg.Content.(type) {
	case *chatexport.TextContent:
		if groups := msg.SearchResultGroups(); len(groups) > 0 {
			return r.renderSearchGroups(groups)
		}
		return nil, &UnsupportedContentError{Role: msg.Author.Role, Kind: msg.Content.Kind(), Node: node}
	case *chatexport.WebPageContent:
		return r.renderWebPage(c)
	case *chatexport.ExecutionOutputContent:
		if strings.TrimSpace(c.Text) == "" {
			return nil, nil
		}
		a := NewAccumulator()
		_ = a.Quoted("> ", func() error {
			a.Line("[!info]- Execution output")
			a.Line("```")
			a.Line(strings.TrimRight(c.Text, "\n"))
			a.Line("```")
			return nil
		})
		return &Block{Type: BlockProcess, Text: a.String()}, nil
	case *chatexport.MultimodalContent:
		// generated images (dalle and friends) are part of the answer
		text := r.renderMultimodalParts(msg, c)
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return &Block{Type: BlockResponse, Text: text}, nil
	default:
		return nil, &UnsupportedContentError{Role: msg.Author.Role, Kind: msg.Content.Kind(), Node: node}
	}
}

// renderResponse emits the assistant's final text with citations substituted
// and an optional model annotation line.
func (r *Renderer) renderResponse(msg *chatexport.Message, c *chatexport.TextContent) (*Block, error) {
	resolver := NewCitationResolver(msg.ContentReferences())

	parts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		parts = append(parts, resolver.Substitute(part))
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return nil, nil
	}

	if r.ShowModel {
		if slug := msg.ModelSlug(); slug != "" {
			text = fmt.Sprintf("*model: %s*\n\n%s", slug, text)
		}
	}
	return &Block{Type: BlockResponse, Text: text}, nil
}

func (r *Renderer) renderThoughts(c *chatexport.ThoughtsContent) (*Block, error) {
	if len(c.Thoughts) == 0 {
		return nil, nil
	}

	a := NewAccumulator()
	err := a.Quoted("> ", func() error {
		a.Line("[!note]- Thoughts")
		for i, thought := range c.Thoughts {
			if i > 0 {
				a.Blank()
			}
			if summary := strings.TrimSpace(thought.Summary); summary != "" {
				a.Linef("**%s**", summary)
			}
			if content := strings.TrimSpace(thought.Content); content != "" {
				a.Line(content)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Block{Type: BlockProcess, Text: a.String()}, nil
}

func (r *Renderer) renderWebPage(c *chatexport.WebPageContent) (*Block, error) {
	label := c.Domain
	if label == "" {
		label = "Web page"
	}

	a := NewAccumulator()
	_ = a.Quoted("> ", func() error {
		a.Linef("[!info]- %s", label)
		if c.Title != "" {
			a.Linef("**%s**", c.Title)
		}
		if c.URL != "" {
			a.Linef("<%s>", c.URL)
		}
		if text := strings.TrimSpace(c.Text); text != "" {
			a.Blank()
			a.Line(text)
		}
		return nil
	})
	return &Block{Type: BlockProcess, Text: a.String()}, nil
}

func (r *Renderer) renderSearchGroups(groups []chatexport.SearchGroup) (*Block, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	domains := make([]string, 0, len(groups))
	for _, group := range groups {
		domains = append(domains, group.Domain)
	}

	a := NewAccumulator()
	err := a.Quoted("> ", func() error {
		a.Linef("[!info]- Web search: %s", strings.Join(domains, ", "))
		for _, group := range groups {
			err := a.Quoted("> ", func() error {
				a.Linef("**%s**", group.Domain)
				for _, entry := range group.Entries {
					line := fmt.Sprintf("- [%s](%s)", entry.Title, entry.URL)
					if snippet := strings.TrimSpace(entry.Snippet); snippet != "" {
						line += ": " + strings.ReplaceAll(snippet, "\n", " ")
					}
					a.Line(line)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Block{Type: BlockProcess, Text: a.String()}, nil
}

// renderSearchQueries turns the JSON search payload the assistant sends to
// the web tool into a bracket-joined summary line.
func (r *Renderer) renderSearchQueries(c *chatexport.CodeContent) (*Block, error) {
	var payload struct {
		SearchQuery []struct {
			Q string `json:"q"`
		} `json:"search_query"`
		Queries []string `json:"queries"`
	}
	_ = json.Unmarshal([]byte(c.Text), &payload)

	queries := payload.Queries
	for _, sq := range payload.SearchQuery {
		queries = append(queries, sq.Q)
	}
	if len(queries) == 0 {
		return nil, nil
	}

	for i, q := range queries {
		queries[i] = "[" + q + "]"
	}

	a := NewAccumulator()
	_ = a.Quoted("> ", func() error {
		a.Line("[!info]- Searching the web")
		a.Line(strings.Join(queries, " "))
		return nil
	})
	return &Block{Type: BlockProcess, Text: a.String()}, nil
}

func (r *Renderer) renderCode(msg *chatexport.Message, c *chatexport.CodeContent) (*Block, error) {
	if strings.TrimSpace(c.Text) == "" {
		return nil, nil
	}

	language := c.Language
	if language == "" || language == "unknown" {
		language = strings.TrimSuffix(msg.Recipient, ".exec")
	}

	a := NewAccumulator()
	_ = a.Quoted("> ", func() error {
		a.Line("[!note]- Code")
		a.Line("```" + language)
		a.Line(strings.TrimRight(c.Text, "\n"))
		a.Line("```")
		return nil
	})
	return &Block{Type: BlockProcess, Text: a.String()}, nil
}

func (r *Renderer) renderAppPairing(c *chatexport.AppPairingContent) (*Block, error) {
	if len(c.Workspaces) == 0 {
		return nil, nil
	}

	a := NewAccumulator()
	for _, ws := range c.Workspaces {
		a.Separate()
		err := a.Quoted("> ", func() error {
			title := ws.Title
			if title == "" {
				title = "Workspace"
			}
			a.Linef("[!quote]- %s", title)
			if instructions := strings.TrimSpace(ws.Instructions); instructions != "" {
				a.Line(instructions)
			}
			if context := strings.TrimSpace(ws.Context); context != "" {
				a.Separate()
				a.Line(context)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if a.Empty() {
		return nil, nil
	}
	return &Block{Type: BlockContext, Text: a.String()}, nil
}

// renderMultimodalParts emits text parts as-is and image parts as markdown
// image references into the attachments directory. A missing attachment is
// logged and its reference omitted.
func (r *Renderer) renderMultimodalParts(msg *chatexport.Message, c *chatexport.MultimodalContent) string {
	names := map[string]string{}
	for _, ref := range msg.Attachments() {
		names[ref.ID] = ref.Name
	}

	lines := []string{}
	for _, part := range c.Parts {
		if part.Image == nil {
			if strings.TrimSpace(part.Text) != "" {
				lines = append(lines, part.Text)
			}
			continue
		}

		if r.Attachments == nil {
			continue
		}
		ref, err := r.Attachments.Resolve(part.Image.AssetID)
		if err != nil {
			log.Warn().Err(err).Str("asset", part.Image.AssetID).Msg("attachment missing from archive, omitting image reference")
			continue
		}

		alt := names[part.Image.AssetID]
		if alt == "" {
			alt = part.Image.AssetID
		}
		lines = append(lines, fmt.Sprintf("![%s](%s)", alt, ref))
	}
	return strings.Join(lines, "\n")
}
