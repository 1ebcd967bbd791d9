package render

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/collodi/pkg/chatexport"
)

func TestCitationSubstitution(t *testing.T) {
	resolver := NewCitationResolver([]chatexport.ContentReference{
		{
			Type:        "grouped_webpages",
			MatchedText: "cite0",
			Items:       []chatexport.ReferenceItem{{Title: "A", URL: "u1"}},
		},
	})

	require.Equal(t, "see [A](u1).", resolver.Substitute("see cite0."))
}

func TestCitationMultipleItemsJoined(t *testing.T) {
	resolver := NewCitationResolver([]chatexport.ContentReference{
		{
			MatchedText: "#cite#",
			Items: []chatexport.ReferenceItem{
				{Title: "A", URL: "u1"},
				{Title: "B", URL: "u2"},
			},
		},
	})

	require.Equal(t, "[A](u1), [B](u2)", resolver.Substitute("#cite#"))
}

func TestCitationFragmentWithoutPlaceholderUnchanged(t *testing.T) {
	resolver := NewCitationResolver([]chatexport.ContentReference{
		{MatchedText: "#cite#", Items: []chatexport.ReferenceItem{{Title: "A", URL: "u1"}}},
	})

	require.Equal(t, "no placeholders here", resolver.Substitute("no placeholders here"))
}

func TestCitationLongestPlaceholderWinsOverlap(t *testing.T) {
	// "#c#x" contains "#c#" as a prefix; the combined pattern must try the
	// longer code first so the short one never claims a partial match
	resolver := NewCitationResolver([]chatexport.ContentReference{
		{MatchedText: "#c#", Items: []chatexport.ReferenceItem{{Title: "short", URL: "s"}}},
		{MatchedText: "#c#x", Items: []chatexport.ReferenceItem{{Title: "long", URL: "l"}}},
	})

	require.Equal(t, "[long](l)", resolver.Substitute("#c#x"))
	require.Equal(t, "[short](s)", resolver.Substitute("#c#"))
}

func TestCitationIgnoresReferencesWithoutItems(t *testing.T) {
	resolver := NewCitationResolver([]chatexport.ContentReference{
		{MatchedText: "#empty#"},
	})

	require.Equal(t, "#empty# stays", resolver.Substitute("#empty# stays"))
}
