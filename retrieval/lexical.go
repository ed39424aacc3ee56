package retrieval

import (
	"github.com/agnivade/levenshtein"

	"github.com/vitalsim/dialograg/textnorm"
)

// LexicalConfig 词面相似度的混合权重。
type LexicalConfig struct {
	JaccardWeight float64 `yaml:"jaccard_weight"`
	EditWeight    float64 `yaml:"edit_weight"`
}

// DefaultLexicalConfig 返回默认词面权重。
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		JaccardWeight: 0.7,
		EditWeight:    0.3,
	}
}

// Lexical 在简体化分词结果上计算词面相似度。
// 向量召回覆盖语义，词面分数补偿字面重合度高但语义模型低估的候选。
type Lexical struct {
	config    LexicalConfig
	segmenter textnorm.Segmenter
	converter textnorm.ScriptConverter
}

// NewLexical 创建词面相似度计算器。
func NewLexical(config LexicalConfig, segmenter textnorm.Segmenter, converter textnorm.ScriptConverter) *Lexical {
	return &Lexical{
		config:    config,
		segmenter: segmenter,
		converter: converter,
	}
}

// Score 计算两个字符串的词面相似度，结果在 [0,1]。
func (l *Lexical) Score(a, b string) float64 {
	sa := l.converter.ToSimplified(a)
	sb := l.converter.ToSimplified(b)

	jaccard := tokenJaccard(l.segmenter.Segment(sa), l.segmenter.Segment(sb))
	edit := editSimilarity(sa, sb)

	return l.config.JaccardWeight*jaccard + l.config.EditWeight*edit
}

// tokenJaccard 计算两个 token 序列的集合 Jaccard 相似度。
func tokenJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// editSimilarity 计算 1 − 编辑距离/最大长度，按字计。两串皆空时为 1。
func editSimilarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}

	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
