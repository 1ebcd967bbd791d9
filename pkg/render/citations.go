package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-go-golems/collodi/pkg/chatexport"
)

// CitationResolver substitutes the inline citation placeholder codes found
// in assistant text with markdown link groups, using the message's
// grouped-webpages content references.
type CitationResolver struct {
	replacements map[string]string
	pattern      *regexp.Regexp
}

func NewCitationResolver(refs []chatexport.ContentReference) *CitationResolver {
	r := &CitationResolver{replacements: map[string]string{}}

	for _, ref := range refs {
		if ref.MatchedText == "" || len(ref.Items) == 0 {
			continue
		}
		links := make([]string, 0, len(ref.Items))
		for _, item := range ref.Items {
			links = append(links, fmt.Sprintf("[%s](%s)", item.Title, item.URL))
		}
		r.replacements[ref.MatchedText] = strings.Join(links, ", ")
	}

	if len(r.replacements) == 0 {
		return r
	}

	// A single combined alternation, longest placeholder first, so shorter
	// codes never partially match inside longer ones.
	codes := make([]string, 0, len(r.replacements))
	for code := range r.replacements {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if len(codes[i]) != len(codes[j]) {
			return len(codes[i]) > len(codes[j])
		}
		return codes[i] < codes[j]
	})
	for i, code := range codes {
		codes[i] = regexp.QuoteMeta(code)
	}
	r.pattern = regexp.MustCompile(strings.Join(codes, "|"))

	return r
}

// Substitute applies all placeholder replacements to a text fragment.
// Fragments without a placeholder come back unchanged.
func (r *CitationResolver) Substitute(text string) string {
	if r == nil || r.pattern == nil {
		return text
	}
	return r.pattern.ReplaceAllStringFunc(text, func(code string) string {
		return r.replacements[code]
	})
}
