package textnorm

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-ego/gse"
)

// Segmenter 分词器接口。实现必须是纯函数式的：
// 相同输入总是产生相同的有序 token 序列。
type Segmenter interface {
	Segment(text string) []string
}

// GseSegmenter 基于 gse 词典的中文分词器。
type GseSegmenter struct {
	seg gse.Segmenter
}

// NewGseSegmenter 加载内置中文词典并创建分词器。
func NewGseSegmenter() (*GseSegmenter, error) {
	var seg gse.Segmenter
	if err := seg.LoadDict(); err != nil {
		return nil, fmt.Errorf("load gse dictionary: %w", err)
	}
	return &GseSegmenter{seg: seg}, nil
}

// Segment 切分文本为有序 token。
func (s *GseSegmenter) Segment(text string) []string {
	tokens := s.seg.Cut(text, true)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// RuneSegmenter 退化分词器：CJK 字符逐字切分，连续的拉丁字母/数字
// 聚合为一个 token。无词典依赖，输出完全确定，供测试与离线场景使用。
type RuneSegmenter struct{}

// Segment 切分文本为有序 token。
func (RuneSegmenter) Segment(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			word.WriteRune(r)
		default:
			flush()
			tokens = append(tokens, string(r))
		}
	}
	flush()
	return tokens
}
