package variants

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/textnorm"
)

func newTestGenerator() *Generator {
	return NewGenerator(
		DefaultConfig(),
		textnorm.RuneSegmenter{},
		textnorm.NewTableConverter(),
		zap.NewNop(),
	)
}

func TestExpandExcludesOriginalAndDeduplicates(t *testing.T) {
	t.Parallel()

	g := newTestGenerator()
	variants := g.Expand("小孩發燒怎麼辦")

	require.NotEmpty(t, variants)
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		assert.NotEqual(t, "小孩發燒怎麼辦", v)
		assert.False(t, seen[v], "duplicate variant %q", v)
		seen[v] = true
	}
}

func TestExpandIsDeterministic(t *testing.T) {
	t.Parallel()

	g1 := newTestGenerator()
	g2 := newTestGenerator()

	q := "小孩拉肚子該怎麼處理才好"
	assert.Equal(t, g1.Expand(q), g2.Expand(q))
	// 同一生成器重复调用结果一致。
	assert.Equal(t, g1.Expand(q), g1.Expand(q))
}

func TestExpandSynonymVariants(t *testing.T) {
	t.Parallel()

	g := newTestGenerator()
	variants := g.Expand("小孩發燒怎麼辦")

	assert.Contains(t, variants, "孩子發燒怎麼辦")
	assert.Contains(t, variants, "小孩發熱怎麼辦")
	// 同义变体的简体对应形。
	assert.Contains(t, variants, "孩子发烧怎么办")
}

func TestExpandScriptVariant(t *testing.T) {
	t.Parallel()

	g := newTestGenerator()
	variants := g.Expand("小孩發燒怎麼辦")

	assert.Contains(t, variants, "小孩发烧怎么办")
}

func TestExpandPolitenessPrefixes(t *testing.T) {
	t.Parallel()

	g := newTestGenerator()

	// 无前缀：逐个补上。
	variants := g.Expand("多喝水")
	assert.Contains(t, variants, "請問，多喝水")
	assert.Contains(t, variants, "勞駕，多喝水")

	// 已有前缀：只生成剥离版本。
	variants = g.Expand("請問，多喝水")
	assert.Contains(t, variants, "多喝水")
	assert.NotContains(t, variants, "麻煩問一下，請問，多喝水")
}

func TestWordOrderVariantsKeepEndpoints(t *testing.T) {
	t.Parallel()

	g := newTestGenerator()

	// 逐字分词下 token 数 > 3，应产生语序变体，且首尾字符不变。
	variants := g.Expand("小威吃過早飯了")
	found := false
	for _, v := range variants {
		runes := []rune(v)
		// 语序变体保留繁体字符（区别于整句简体变体）。
		if len(runes) == len([]rune("小威吃過早飯了")) && v != "小威吃過早飯了" &&
			runes[0] == '小' && runes[len(runes)-1] == '了' && strings.ContainsRune(v, '過') {
			found = true
		}
	}
	assert.True(t, found, "expected at least one interior word-order variant")

	// token 数 <= 3 不产生语序变体（仍可能有其他类别变体）。
	short := g.Expand("好的")
	for _, v := range short {
		assert.NotEqual(t, len([]rune(v)), 2, "unexpected shuffle of short question: %q", v)
	}
}
