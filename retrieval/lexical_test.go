package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/vitalsim/dialograg/textnorm"
)

func newTestLexical() *Lexical {
	return NewLexical(DefaultLexicalConfig(), textnorm.RuneSegmenter{}, textnorm.NewTableConverter())
}

func TestLexicalScoreIdenticalStrings(t *testing.T) {
	t.Parallel()

	lex := newTestLexical()
	assert.InDelta(t, 1.0, lex.Score("小孩发烧", "小孩发烧"), 1e-9)
}

func TestLexicalScoreCrossScript(t *testing.T) {
	t.Parallel()

	// 简繁同句在简体归一后词面完全一致。
	lex := newTestLexical()
	assert.InDelta(t, 1.0, lex.Score("小孩發燒", "小孩发烧"), 1e-9)
}

func TestLexicalScoreDisjointStrings(t *testing.T) {
	t.Parallel()

	lex := newTestLexical()
	assert.InDelta(t, 0.0, lex.Score("天气", "吃饭"), 1e-9)
}

func TestLexicalScoreBothEmpty(t *testing.T) {
	t.Parallel()

	lex := newTestLexical()
	assert.InDelta(t, 1.0, lex.Score("", ""), 1e-9)
}

func TestLexicalScorePartialOverlap(t *testing.T) {
	t.Parallel()

	lex := newTestLexical()

	// "小孩发烧" vs "小孩发烧怎么办"：
	// jaccard = 4/7，edit = 1 − 3/7 = 4/7，混合分 = 4/7。
	got := lex.Score("小孩發燒", "小孩發燒怎麼辦")
	assert.InDelta(t, 4.0/7.0, got, 1e-9)
}

func TestLexicalScoreAlwaysInUnitRange(t *testing.T) {
	t.Parallel()

	lex := newTestLexical()
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.String().Draw(t, "a")
		b := rapid.String().Draw(t, "b")
		score := lex.Score(a, b)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	})
}

func TestTokenJaccardOneEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, tokenJaccard([]string{"a"}, nil))
	assert.Equal(t, 0.0, tokenJaccard(nil, []string{"a"}))
}
