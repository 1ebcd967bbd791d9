package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/collodi/pkg/chatexport"
)

func messageNode(role chatexport.Role, content chatexport.Content, metadata map[string]interface{}) *chatexport.Node {
	return &chatexport.Node{
		ID: "n1",
		Message: &chatexport.Message{
			ID:       "m1",
			Author:   chatexport.Author{Role: role},
			Content:  content,
			Metadata: metadata,
		},
	}
}

func TestRenderUserText(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleUser, &chatexport.TextContent{Parts: []string{"hi"}}, nil))
	require.NoError(t, err)
	require.NotNil(t, block)
	require.Equal(t, BlockUser, block.Type)
	require.Equal(t, "hi", block.Text)
}

func TestRenderSkipsHiddenMessage(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleSystem, &chatexport.TextContent{Parts: []string{"internal"}},
		map[string]interface{}{"is_visually_hidden_from_conversation": true}))
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestRenderVisibleSystemMessageFails(t *testing.T) {
	r := &Renderer{}
	_, err := r.RenderNode(messageNode(chatexport.RoleSystem, &chatexport.TextContent{Parts: []string{"surprise"}}, nil))
	var unsupported *UnsupportedContentError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, chatexport.RoleSystem, unsupported.Role)
}

func TestRenderSkipsBookkeepingAuthor(t *testing.T) {
	r := &Renderer{}
	node := messageNode(chatexport.RoleTool, &chatexport.TextContent{Parts: []string{"remembered"}}, nil)
	node.Message.Author.Name = "bio"

	block, err := r.RenderNode(node)
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestRenderUnknownContentKindFails(t *testing.T) {
	r := &Renderer{}
	_, err := r.RenderNode(messageNode(chatexport.RoleAssistant, &chatexport.RawContent{ContentType: "mystery"}, nil))
	var unsupported *UnsupportedContentError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, chatexport.ContentKind("mystery"), unsupported.Kind)
}

func TestRenderThoughts(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleAssistant, &chatexport.ThoughtsContent{
		Thoughts: []chatexport.Thought{
			{Summary: "First", Content: "thinking about it"},
			{Summary: "Second", Content: "more thinking"},
		},
	}, nil))
	require.NoError(t, err)
	require.Equal(t, BlockProcess, block.Type)
	require.Equal(t,
		"> [!note]- Thoughts\n> **First**\n> thinking about it\n>\n> **Second**\n> more thinking",
		block.Text)
}

func TestRenderEmptyExecutionOutputSkipped(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleTool, &chatexport.ExecutionOutputContent{Text: "  \n"}, nil))
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestRenderExecutionOutput(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleTool, &chatexport.ExecutionOutputContent{Text: "42\n"}, nil))
	require.NoError(t, err)
	require.Equal(t, BlockProcess, block.Type)
	require.Equal(t, "> [!info]- Execution output\n> ```\n> 42\n> ```", block.Text)
}

func TestRenderSearchResultGroups(t *testing.T) {
	r := &Renderer{}
	node := messageNode(chatexport.RoleTool, &chatexport.TextContent{Parts: []string{""}}, map[string]interface{}{
		"search_result_groups": []interface{}{
			map[string]interface{}{
				"domain": "example.com",
				"entries": []interface{}{
					map[string]interface{}{"title": "Hit", "url": "https://example.com/a", "snippet": "a snippet"},
				},
			},
		},
	})

	block, err := r.RenderNode(node)
	require.NoError(t, err)
	require.Equal(t, BlockProcess, block.Type)
	require.Equal(t,
		"> [!info]- Web search: example.com\n> > **example.com**\n> > - [Hit](https://example.com/a): a snippet",
		block.Text)
}

func TestRenderSearchQueries(t *testing.T) {
	r := &Renderer{}
	node := messageNode(chatexport.RoleAssistant, &chatexport.CodeContent{
		Text: `{"search_query": [{"q": "go generics"}, {"q": "yaml nodes"}]}`,
	}, nil)
	node.Message.Recipient = "web"

	block, err := r.RenderNode(node)
	require.NoError(t, err)
	require.Equal(t, BlockProcess, block.Type)
	require.Equal(t, "> [!info]- Searching the web\n> [go generics] [yaml nodes]", block.Text)
}

func TestRenderWebPage(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleTool, &chatexport.WebPageContent{
		Title:  "Some Page",
		URL:    "https://example.com/page",
		Domain: "example.com",
		Text:   "quoted text",
	}, nil))
	require.NoError(t, err)
	require.Equal(t, BlockProcess, block.Type)
	require.Equal(t,
		"> [!info]- example.com\n> **Some Page**\n> <https://example.com/page>\n>\n> quoted text",
		block.Text)
}

func TestRenderReasoningRecap(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleAssistant, &chatexport.ReasoningRecapContent{Content: "Thought for 12 seconds"}, nil))
	require.NoError(t, err)
	require.Equal(t, BlockProcess, block.Type)
	require.Equal(t, "> [!note]- Thought for 12 seconds", block.Text)
}

func TestRenderAppPairingContext(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleUser, &chatexport.AppPairingContent{
		Workspaces: []chatexport.PairedWorkspace{
			{Title: "Project X", Instructions: "always answer in French", Context: "repo layout"},
		},
	}, nil))
	require.NoError(t, err)
	require.Equal(t, BlockContext, block.Type)
	require.Equal(t,
		"> [!quote]- Project X\n> always answer in French\n>\n> repo layout",
		block.Text)
}

func TestRenderAssistantEmptyAfterSubstitutionSkipped(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleAssistant, &chatexport.TextContent{Parts: []string{"  "}}, nil))
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestRenderResponseWithModelAnnotation(t *testing.T) {
	r := &Renderer{ShowModel: true}
	block, err := r.RenderNode(messageNode(chatexport.RoleAssistant, &chatexport.TextContent{Parts: []string{"done"}},
		map[string]interface{}{"model_slug": "gpt-4o"}))
	require.NoError(t, err)
	require.Equal(t, BlockResponse, block.Type)
	require.Equal(t, "*model: gpt-4o*\n\ndone", block.Text)
}

func TestRenderUserEditableContextSkipped(t *testing.T) {
	r := &Renderer{}
	block, err := r.RenderNode(messageNode(chatexport.RoleUser, &chatexport.UserEditableContextContent{
		UserProfile: "likes short answers",
	}, nil))
	require.NoError(t, err)
	require.Nil(t, block)
}

func TestRenderMultimodalWithAttachment(t *testing.T) {
	archiveDir := t.TempDir()
	outputDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(archiveDir, "file-abc-cat.png"), []byte("pngbytes"), 0644))

	r := &Renderer{Attachments: NewAttachmentStore(archiveDir, outputDir, "attachments")}
	node := messageNode(chatexport.RoleUser, &chatexport.MultimodalContent{
		Parts: []chatexport.MultimodalPart{
			{Image: &chatexport.ImagePart{AssetID: "file-abc"}},
			{Text: "look at this"},
		},
	}, map[string]interface{}{
		"attachments": []interface{}{
			map[string]interface{}{"id": "file-abc", "name": "cat.png"},
		},
	})

	block, err := r.RenderNode(node)
	require.NoError(t, err)
	require.Equal(t, "![cat.png](attachments/file-abc-cat.png)\nlook at this", block.Text)

	copied, err := os.ReadFile(filepath.Join(outputDir, "attachments", "file-abc-cat.png"))
	require.NoError(t, err)
	require.Equal(t, []byte("pngbytes"), copied)
}

func TestRenderMultimodalMissingAttachmentOmitsReference(t *testing.T) {
	r := &Renderer{Attachments: NewAttachmentStore(t.TempDir(), t.TempDir(), "attachments")}
	node := messageNode(chatexport.RoleUser, &chatexport.MultimodalContent{
		Parts: []chatexport.MultimodalPart{
			{Image: &chatexport.ImagePart{AssetID: "file-gone"}},
			{Text: "caption"},
		},
	}, nil)

	block, err := r.RenderNode(node)
	require.NoError(t, err)
	require.Equal(t, "caption", block.Text)
}
