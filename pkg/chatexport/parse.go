package chatexport

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Intermediate representations for unmarshaling the export JSON.

type conversationAlias struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversation_id"`
	Title          string               `json:"title"`
	CreateTime     float64              `json:"create_time"`
	UpdateTime     float64              `json:"update_time"`
	Mapping        map[string]nodeAlias `json:"mapping"`
}

type nodeAlias struct {
	ID       string        `json:"id"`
	Message  *messageAlias `json:"message"`
	Parent   *string       `json:"parent"`
	Children []string      `json:"children"`
}

type messageAlias struct {
	ID         string                 `json:"id"`
	Author     authorAlias            `json:"author"`
	CreateTime *float64               `json:"create_time"`
	UpdateTime *float64               `json:"update_time"`
	Content    json.RawMessage        `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	Recipient  string                 `json:"recipient"`
}

type authorAlias struct {
	Role     string                 `json:"role"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ParseConversations decodes the conversations.json payload of an export
// archive into conversation trees. The raw JSON of each conversation is
// retained for the debug dump side-channel.
func ParseConversations(data []byte) ([]*Conversation, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.Wrap(err, "conversations.json is not a JSON array")
	}

	conversations := make([]*Conversation, 0, len(raws))
	for i, raw := range raws {
		conv, err := ParseConversation(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "conversation %d", i)
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// ParseConversation decodes a single conversation object.
func ParseConversation(raw json.RawMessage) (*Conversation, error) {
	var alias conversationAlias
	if err := json.Unmarshal(raw, &alias); err != nil {
		return nil, errors.Wrap(err, "failed to decode conversation")
	}

	id := alias.ID
	if id == "" {
		id = alias.ConversationID
	}

	conv := &Conversation{
		ID:         id,
		Title:      alias.Title,
		CreateTime: unixTime(alias.CreateTime),
		UpdateTime: unixTime(alias.UpdateTime),
		Nodes:      make(map[NodeID]*Node, len(alias.Mapping)),
		Raw:        append(json.RawMessage(nil), raw...),
	}

	for nodeID, na := range alias.Mapping {
		node := &Node{ID: NodeID(nodeID)}
		if na.Parent != nil {
			node.ParentID = NodeID(*na.Parent)
		}
		for _, child := range na.Children {
			node.Children = append(node.Children, NodeID(child))
		}
		if na.Message != nil {
			msg, err := parseMessage(na.Message)
			if err != nil {
				return nil, errors.Wrapf(err, "node %s", nodeID)
			}
			node.Message = msg
		}
		conv.Nodes[NodeID(nodeID)] = node
	}

	return conv, nil
}

func parseMessage(ma *messageAlias) (*Message, error) {
	content, err := parseContent(ma.Content)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID: ma.ID,
		Author: Author{
			Role:     Role(ma.Author.Role),
			Name:     ma.Author.Name,
			Metadata: ma.Author.Metadata,
		},
		Content:   content,
		Metadata:  ma.Metadata,
		Recipient: ma.Recipient,
	}
	if ma.CreateTime != nil {
		msg.CreateTime = unixTime(*ma.CreateTime)
	}
	if ma.UpdateTime != nil {
		msg.UpdateTime = unixTime(*ma.UpdateTime)
	}
	return msg, nil
}

func parseContent(raw json.RawMessage) (Content, error) {
	if len(raw) == 0 {
		return &TextContent{}, nil
	}

	var probe struct {
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrap(err, "failed to decode content envelope")
	}

	switch ContentKind(probe.ContentType) {
	case KindText:
		var c TextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindMultimodalText:
		return parseMultimodal(raw)
	case KindThoughts:
		var c ThoughtsContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindWebPage:
		var c WebPageContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindCode:
		var c CodeContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindReasoningRecap:
		var c ReasoningRecapContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindAppPairingContext:
		var c AppPairingContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindUserEditableContext:
		var c UserEditableContextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case KindExecutionOutput:
		var c ExecutionOutputContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return &c, nil
	default:
		return &RawContent{
			ContentType: probe.ContentType,
			Data:        append(json.RawMessage(nil), raw...),
		}, nil
	}
}

// Multimodal parts are heterogeneous: plain strings interleaved with image
// asset pointer objects.
func parseMultimodal(raw json.RawMessage) (Content, error) {
	var envelope struct {
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to decode multimodal content")
	}

	c := &MultimodalContent{}
	for i, part := range envelope.Parts {
		var text string
		if err := json.Unmarshal(part, &text); err == nil {
			c.Parts = append(c.Parts, MultimodalPart{Text: text})
			continue
		}

		var ptr struct {
			ContentType  string `json:"content_type"`
			AssetPointer string `json:"asset_pointer"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
		}
		if err := json.Unmarshal(part, &ptr); err != nil {
			return nil, errors.Wrapf(err, "multimodal part %d", i)
		}
		if ptr.AssetPointer == "" {
			// Unknown structured part without an asset, ignore it.
			continue
		}
		c.Parts = append(c.Parts, MultimodalPart{
			Image: &ImagePart{
				AssetID: assetID(ptr.AssetPointer),
				Width:   ptr.Width,
				Height:  ptr.Height,
			},
		})
	}
	return c, nil
}

// assetID strips the scheme from pointers like "file-service://file-AbC123".
func assetID(pointer string) string {
	if idx := strings.Index(pointer, "://"); idx >= 0 {
		return pointer[idx+len("://"):]
	}
	return pointer
}

func unixTime(secs float64) time.Time {
	if secs == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(secs)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
