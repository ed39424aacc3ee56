package textnorm

import (
	"regexp"
	"strings"
)

// punctTable 全角中文标点到 ASCII 标点的固定替换表。
var punctTable = map[rune]rune{
	'，': ',',
	'。': '.',
	'！': '!',
	'？': '?',
	'；': ';',
	'：': ':',
	'“': '"',
	'”': '"',
	'‘': '\'',
	'’': '\'',
	'【': '[',
	'】': ']',
	'（': '(',
	'）': ')',
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// CleanText 清洗文本：连续空白折叠为单个空格、去除首尾空白、
// 全角标点映射为 ASCII 标点。幂等：CleanText(CleanText(x)) == CleanText(x)。
func CleanText(s string) string {
	s = strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if mapped, ok := punctTable[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeQuery 剥离末尾的疑问语气词（嗎/嘛，可后跟一个问号），最多一次。
// 句中出现的语气词不受影响。
func NormalizeQuery(s string) string {
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if n := len(runes); n > 0 {
		if last := runes[n-1]; last == '？' || last == '?' {
			runes = runes[:n-1]
		}
	}
	if n := len(runes); n > 0 {
		if last := runes[n-1]; last == '嗎' || last == '嘛' {
			runes = runes[:n-1]
		}
	}
	return string(runes)
}

// SameScriptFamily 判断 a 经繁简转换后是否等于 b，
// 用于跳过无效的重复变体（转换前后同形）。
func SameScriptFamily(conv ScriptConverter, a, b string) bool {
	return conv.ToSimplified(a) == b || conv.ToTraditional(a) == b
}
