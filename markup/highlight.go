package markup

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Highlighter renders code as a flat run of class-tagged <span> elements,
// one per token. Tokens without a CSS class are emitted as bare text.
type Highlighter struct {
	tabs int
}

// NewHighlighter returns a Highlighter. tabs > 0 expands tab characters.
func NewHighlighter(tabs int) *Highlighter {
	return &Highlighter{tabs: tabs}
}

// NormalizeHint upper-cases the first letter of a language hint and leaves
// the rest unchanged, matching how lexer names are spelled ("Rust", "Go").
func NormalizeHint(hint string) string {
	hint = strings.TrimPrefix(strings.TrimSpace(hint), ".")
	r, size := utf8.DecodeRuneInString(hint)
	if r == utf8.RuneError {
		return hint
	}
	return string(unicode.ToUpper(r)) + hint[size:]
}

// Lexer resolves a hint to a chroma lexer: first by name or alias, then by
// treating the hint as a file extension.
func Lexer(hint string) (chroma.Lexer, error) {
	name := NormalizeHint(hint)
	if name == "" {
		return nil, fmt.Errorf("%w: empty language hint", ErrUnsupportedFormat)
	}
	if l := lexers.Get(name); l != nil {
		return l, nil
	}
	if l := lexers.Match("file." + strings.ToLower(name)); l != nil {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, hint)
}

// Highlight tokenises text with the lexer for hint.
func (h *Highlighter) Highlight(text, hint string) (string, error) {
	lexer, err := Lexer(hint)
	if err != nil {
		return "", err
	}
	if h.tabs > 0 {
		text = strings.ReplaceAll(text, "\t", strings.Repeat(" ", h.tabs))
	}

	it, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return "", fmt.Errorf("markup: tokenise %s: %w", lexer.Config().Name, err)
	}

	var sb strings.Builder
	for _, tok := range it.Tokens() {
		writeToken(&sb, tok)
	}
	return sb.String(), nil
}

func writeToken(sb *strings.Builder, tok chroma.Token) {
	if tok.Value == "" {
		return
	}
	class := tokenClass(tok.Type)
	if class == "" {
		sb.WriteString(html.EscapeString(tok.Value))
		return
	}
	sb.WriteString(`<span class="`)
	sb.WriteString(class)
	sb.WriteString(`">`)
	sb.WriteString(html.EscapeString(tok.Value))
	sb.WriteString(`</span>`)
}

// tokenClass returns the short CSS class chroma's own HTML formatter uses,
// falling back to the sub-category and category for unlisted types.
func tokenClass(tt chroma.TokenType) string {
	for _, t := range []chroma.TokenType{tt, tt.SubCategory(), tt.Category()} {
		if class, ok := chroma.StandardTypes[t]; ok && class != "" {
			return class
		}
	}
	return ""
}
