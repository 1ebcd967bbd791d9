package chatexport

import (
	"encoding/json"
	"time"
)

type NodeID string

// Conversation is one exported conversation: a tree of message nodes keyed
// by id, rooted at the single node without a parent.
//
// Node relationships are stored both ways: each node carries its parent id
// and the ordered list of its children ids. The order of Children is the
// order the export declared them in, which matters for fork tie-breaking.
type Conversation struct {
	ID         string
	Title      string
	CreateTime time.Time
	UpdateTime time.Time
	Nodes      map[NodeID]*Node

	// Raw holds the conversation's original JSON, kept around for the
	// debug dump side-channel.
	Raw json.RawMessage
}

type Node struct {
	ID       NodeID
	ParentID NodeID // empty for the root
	Children []NodeID
	Message  *Message // nil on the root and on placeholder nodes
}

// Root returns the id of the single parentless node.
func (c *Conversation) Root() (NodeID, error) {
	found := false
	var root NodeID
	for id, node := range c.Nodes {
		if node.ParentID != "" {
			continue
		}
		if found {
			return "", &StructuralError{ConversationID: c.ID, Reason: "multiple root nodes"}
		}
		found = true
		root = id
	}
	if !found {
		return "", &StructuralError{ConversationID: c.ID, Reason: "no root node"}
	}
	return root, nil
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

type Author struct {
	Role     Role
	Name     string
	Metadata map[string]interface{}
}

type Message struct {
	ID         string
	Author     Author
	CreateTime time.Time
	UpdateTime time.Time
	Content    Content
	Metadata   map[string]interface{}
	Recipient  string
}

// Hidden reports whether the export flagged this message as not part of the
// visible conversation.
func (m *Message) Hidden() bool {
	v, ok := m.Metadata["is_visually_hidden_from_conversation"].(bool)
	return ok && v
}

// ModelSlug returns the model identifier recorded on the message, if any.
func (m *Message) ModelSlug() string {
	s, _ := m.Metadata["model_slug"].(string)
	return s
}

// SearchSourced reports whether an assistant text message was produced by the
// live web-search surface rather than the model's final answer channel.
func (m *Message) SearchSourced() bool {
	_, ok := m.Metadata["search_source"]
	return ok
}

// AttachmentRef is one entry of a message's attachment list, linking an image
// part's asset id to its original filename.
type AttachmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (m *Message) Attachments() []AttachmentRef {
	var refs []AttachmentRef
	decodeMetadata(m.Metadata["attachments"], &refs)
	return refs
}

// ReferenceItem is a single cited web page.
type ReferenceItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ContentReference binds an inline citation placeholder to a group of web
// pages. Only "grouped_webpages" references carry items; other reference
// types decode with empty Items and are ignored by the citation resolver.
type ContentReference struct {
	Type        string          `json:"type"`
	MatchedText string          `json:"matched_text"`
	Items       []ReferenceItem `json:"items"`
}

func (m *Message) ContentReferences() []ContentReference {
	var refs []ContentReference
	decodeMetadata(m.Metadata["content_references"], &refs)
	return refs
}

// SearchEntry is one hit inside a search result group.
type SearchEntry struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchGroup is a domain-grouped set of web search results attached to a
// tool message.
type SearchGroup struct {
	Domain  string        `json:"domain"`
	Entries []SearchEntry `json:"entries"`
}

func (m *Message) SearchResultGroups() []SearchGroup {
	var groups []SearchGroup
	decodeMetadata(m.Metadata["search_result_groups"], &groups)
	return groups
}

// decodeMetadata converts a free-form metadata value into a typed structure
// by round-tripping through JSON. Malformed values decode to the zero value.
func decodeMetadata(v interface{}, out interface{}) {
	if v == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, out)
}
