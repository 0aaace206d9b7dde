package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexAll_Operators(t *testing.T) {
	toks, err := lexAll("A | B & C - D")
	require.NoError(t, err)
	kinds := make([]tokenKind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	assert.Equal(t, []tokenKind{tokIdent, tokUnion, tokIdent, tokIntersect, tokIdent, tokDifference, tokIdent, tokEOF}, kinds)
}

func TestLexAll_RejectsUnknownCharacter(t *testing.T) {
	_, err := lexAll("A $ B")
	assert.Error(t, err)
}

func TestLexAll_Parens(t *testing.T) {
	toks, err := lexAll("(A)")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, tokLParen, toks[0].kind)
	assert.Equal(t, tokIdent, toks[1].kind)
	assert.Equal(t, tokRParen, toks[2].kind)
	assert.Equal(t, tokEOF, toks[3].kind)
}
