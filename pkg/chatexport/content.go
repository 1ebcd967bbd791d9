package chatexport

import (
	"encoding/json"
	"strings"
)

type ContentKind string

const (
	KindText                ContentKind = "text"
	KindMultimodalText      ContentKind = "multimodal_text"
	KindThoughts            ContentKind = "thoughts"
	KindWebPage             ContentKind = "tether_quote"
	KindCode                ContentKind = "code"
	KindReasoningRecap      ContentKind = "reasoning_recap"
	KindAppPairingContext   ContentKind = "app_pairing_content"
	KindUserEditableContext ContentKind = "user_editable_context"
	KindExecutionOutput     ContentKind = "execution_output"
)

// Content is the tagged union of message payload variants. The loader decodes
// every known content_type into one of the concrete structs below; anything
// else becomes a RawContent so the renderer stays the single place deciding
// supported vs unsupported.
type Content interface {
	Kind() ContentKind
}

type TextContent struct {
	Parts []string `json:"parts"`
}

func (c *TextContent) Kind() ContentKind { return KindText }

// Text joins the non-empty parts with newlines.
func (c *TextContent) Text() string {
	parts := make([]string, 0, len(c.Parts))
	for _, p := range c.Parts {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// ImagePart references an uploaded or generated image by asset id. The
// original filename is looked up through the message's attachment list.
type ImagePart struct {
	AssetID string
	Width   int
	Height  int
}

// MultimodalPart is either a text fragment or an image reference, never both.
type MultimodalPart struct {
	Text  string
	Image *ImagePart
}

type MultimodalContent struct {
	Parts []MultimodalPart
}

func (c *MultimodalContent) Kind() ContentKind { return KindMultimodalText }

type Thought struct {
	Summary string `json:"summary"`
	Content string `json:"content"`
}

type ThoughtsContent struct {
	Thoughts []Thought `json:"thoughts"`
}

func (c *ThoughtsContent) Kind() ContentKind { return KindThoughts }

type WebPageContent struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Domain string `json:"domain"`
	Text   string `json:"text"`
}

func (c *WebPageContent) Kind() ContentKind { return KindWebPage }

type CodeContent struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

func (c *CodeContent) Kind() ContentKind { return KindCode }

type ReasoningRecapContent struct {
	Content string `json:"content"`
}

func (c *ReasoningRecapContent) Kind() ContentKind { return KindReasoningRecap }

// PairedWorkspace is one workspace referenced by an app-pairing context
// message, carrying the instructions and context text the paired app
// injected into the conversation.
type PairedWorkspace struct {
	Title        string `json:"title"`
	Instructions string `json:"instructions"`
	Context      string `json:"context"`
}

type AppPairingContent struct {
	Workspaces []PairedWorkspace `json:"workspaces"`
}

func (c *AppPairingContent) Kind() ContentKind { return KindAppPairingContext }

type UserEditableContextContent struct {
	UserProfile      string `json:"user_profile"`
	UserInstructions string `json:"user_instructions"`
}

func (c *UserEditableContextContent) Kind() ContentKind { return KindUserEditableContext }

type ExecutionOutputContent struct {
	Text string `json:"text"`
}

func (c *ExecutionOutputContent) Kind() ContentKind { return KindExecutionOutput }

// RawContent carries a content_type the loader does not know. Rendering one
// is an UnsupportedContentError.
type RawContent struct {
	ContentType string
	Data        json.RawMessage
}

func (c *RawContent) Kind() ContentKind { return ContentKind(c.ContentType) }
