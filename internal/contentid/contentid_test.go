package contentid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bib/pkg/types"
)

func TestSum(t *testing.T) {
	t.Run("same bytes give same id", func(t *testing.T) {
		a, err := Sum(types.ContentPDF, []byte("%PDF-1.7 body"))
		require.NoError(t, err)
		b, err := Sum(types.ContentPDF, []byte("%PDF-1.7 body"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 2*Size)
		assert.True(t, Valid(a))
	})

	t.Run("text ignores cosmetic whitespace", func(t *testing.T) {
		a, err := Sum(types.ContentText, []byte("@article{v17,\n  title = {Attention}\n}\n"))
		require.NoError(t, err)
		b, err := Sum(types.ContentText, []byte("@article{v17,\r\n\ttitle  =  {Attention}\r\n\r\n}"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("pdf bytes are not normalized", func(t *testing.T) {
		a, err := Sum(types.ContentPDF, []byte("a  b"))
		require.NoError(t, err)
		b, err := Sum(types.ContentPDF, []byte("a b"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("kinds do not collide", func(t *testing.T) {
		a, err := Sum(types.ContentPDF, []byte("same"))
		require.NoError(t, err)
		b, err := Sum(types.ContentText, []byte("same"))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		_, err := Sum(types.ContentPDF, nil)
		assert.True(t, errors.Is(err, types.ErrInvalidContent))

		_, err = Sum(types.ContentText, []byte(" \n\t\n"))
		assert.True(t, errors.Is(err, types.ErrInvalidContent))
	})
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  title =   {A}  \r\n\r\n\tauthor = {B}\n")
	assert.Equal(t, "title = {A}\nauthor = {B}", got)
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("abc"))
	assert.False(t, Valid("zz0123456789abcdef0123456789abcd"))
	assert.True(t, Valid("000102030405060708090a0b0c0d0e0f"))
}
