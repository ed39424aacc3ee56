package textnorm

import (
	"fmt"
	"strings"

	"github.com/longbridgeapp/opencc"
)

// ScriptConverter 繁简转换接口。实现必须是纯函数：无状态、同输入同输出。
type ScriptConverter interface {
	ToSimplified(text string) string
	ToTraditional(text string) string
}

// OpenCCConverter 基于 OpenCC 词表的繁简转换器。
type OpenCCConverter struct {
	t2s *opencc.OpenCC
	s2t *opencc.OpenCC
}

// NewOpenCCConverter 创建 OpenCC 转换器（t2s 与 s2t 两个方向）。
func NewOpenCCConverter() (*OpenCCConverter, error) {
	t2s, err := opencc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("init opencc t2s: %w", err)
	}
	s2t, err := opencc.New("s2t")
	if err != nil {
		return nil, fmt.Errorf("init opencc s2t: %w", err)
	}
	return &OpenCCConverter{t2s: t2s, s2t: s2t}, nil
}

// ToSimplified 繁体转简体。转换失败时原样返回。
func (c *OpenCCConverter) ToSimplified(text string) string {
	out, err := c.t2s.Convert(text)
	if err != nil {
		return text
	}
	return out
}

// ToTraditional 简体转繁体。转换失败时原样返回。
func (c *OpenCCConverter) ToTraditional(text string) string {
	out, err := c.s2t.Convert(text)
	if err != nil {
		return text
	}
	return out
}

// TableConverter 固定对照表实现的繁简转换器，覆盖本语料域的常用字。
// 确定性强、零外部数据依赖，供测试与离线构建使用。
type TableConverter struct {
	t2s map[rune]rune
	s2t map[rune]rune
}

// t2sPairs 繁→简单字对照（简繁同形的字不出现在表中）。
var t2sPairs = map[rune]rune{
	'媽': '妈', '親': '亲', '醫': '医', '師': '师', '發': '发',
	'燒': '烧', '熱': '热', '嘔': '呕', '瀉': '泻', '兒': '儿',
	'適': '适', '體': '体', '溫': '温', '藥': '药', '請': '请',
	'問': '问', '煩': '烦', '勞': '劳', '駕': '驾', '歲': '岁',
	'處': '处', '辦': '办', '麼': '么', '樣': '样', '對': '对',
	'勁': '劲', '難': '难', '腸': '肠', '噁': '恶', '還': '还',
	'這': '这', '為': '为', '覺': '觉', '嚴': '严', '經': '经',
	'個': '个', '們': '们', '來': '来', '後': '后', '時': '时',
	'間': '间', '題': '题', '長': '长', '點': '点', '嗎': '吗',
	'應': '应', '該': '该', '護': '护', '診': '诊', '檢': '检',
	'燙': '烫', '誒': '诶', '與': '与', '飯': '饭', '寶': '宝',
	'頭': '头', '藍': '蓝', '願': '愿', '過': '过',
}

// NewTableConverter 创建对照表转换器。
func NewTableConverter() *TableConverter {
	s2t := make(map[rune]rune, len(t2sPairs))
	for t, s := range t2sPairs {
		s2t[s] = t
	}
	return &TableConverter{t2s: t2sPairs, s2t: s2t}
}

// ToSimplified 繁体转简体。
func (c *TableConverter) ToSimplified(text string) string {
	return mapRunes(text, c.t2s)
}

// ToTraditional 简体转繁体。
func (c *TableConverter) ToTraditional(text string) string {
	return mapRunes(text, c.s2t)
}

func mapRunes(text string, table map[rune]rune) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := table[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
