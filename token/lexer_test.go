package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := New(src, "test.ark").Tokenize()
	require.NoError(t, err)
	return toks
}

func TestLexerBasicForm(t *testing.T) {
	toks := tokenize(t, "(let x 40)")
	kinds := make([]Kind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{Grouping, Keyword, Identifier, Number, Grouping, EOF}, kinds)
	assert.Equal(t, "let", toks[1].Text)
	assert.Equal(t, "x", toks[2].Text)
	assert.Equal(t, "40", toks[3].Text)
}

func TestLexerNegativeNumberVsOperator(t *testing.T) {
	toks := tokenize(t, "(- 1 2) (- -1 2)")
	// "-" alone is an Operator, "-1" is a Number.
	assert.Equal(t, Operator, toks[1].Kind)
	assert.Equal(t, Operator, toks[6].Kind)
	assert.Equal(t, Number, toks[7].Kind)
	assert.Equal(t, "-1", toks[7].Text)
}

func TestLexerStringEscapes(t *testing.T) {
	toks := tokenize(t, `"a\nb\x41B"`)
	require.Len(t, toks, 2)
	assert.Equal(t, "a\nbAB", toks[0].Text)
}

func TestLexerCaptureGetFieldSpread(t *testing.T) {
	toks := tokenize(t, "&x .y ...z")
	assert.Equal(t, Capture, toks[0].Kind)
	assert.Equal(t, "x", toks[0].Text)
	assert.Equal(t, GetField, toks[1].Kind)
	assert.Equal(t, "y", toks[1].Text)
	assert.Equal(t, Spread, toks[2].Kind)
	assert.Equal(t, "z", toks[2].Text)
}

func TestLexerShorthands(t *testing.T) {
	toks := tokenize(t, "'x !{}")
	assert.Equal(t, Shorthand, toks[0].Kind)
	assert.Equal(t, "'", toks[0].Text)
	assert.Equal(t, Shorthand, toks[2].Kind)
	assert.Equal(t, "!", toks[2].Text)
}

func TestLexerMismatch(t *testing.T) {
	toks, err := New("`", "test.ark").Tokenize()
	require.NoError(t, err)
	require.Equal(t, Mismatch, toks[0].Kind)
}

func TestLexerMacroSigil(t *testing.T) {
	toks := tokenize(t, "($ name value)")
	require.Equal(t, Identifier, toks[1].Kind)
	assert.Equal(t, "$", toks[1].Text)
}

func TestLexerPositions(t *testing.T) {
	toks := tokenize(t, "(let x\n  1)")
	// "1" is on line 2.
	for _, tok := range toks {
		if tok.Text == "1" {
			assert.Equal(t, 2, tok.Pos.Line)
		}
	}
}

func TestLexerLeadingCommentAttachesBefore(t *testing.T) {
	toks := tokenize(t, "# hello\n(let x 1)")
	require.Equal(t, Grouping, toks[0].Kind)
	assert.Equal(t, "hello", toks[0].CommentBefore)
}

func TestLexerTrailingCommentAttachesAfter(t *testing.T) {
	toks := tokenize(t, "x # note\ny")
	require.Len(t, toks, 3)
	assert.Equal(t, "note", toks[0].CommentAfter)
	assert.Empty(t, toks[1].CommentBefore)
}
