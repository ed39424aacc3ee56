package index

import (
	"github.com/vitalsim/dialograg/corpus"
)

// answerPrefixRunes 合成槽位中回答文本的截断长度（按字计）。
const answerPrefixRunes = 100

// EnumerateSlots 枚举语料的全部槽位文本并记录槽位映射。
// 每个文档依次产生：规范问题、每条变体、合成“Q: 问题 A: 回答前缀”。
// 缺失回答的文档不产生合成槽位。
func EnumerateSlots(docs []corpus.Document) (texts []string, slotMap []int) {
	for _, doc := range docs {
		texts = append(texts, doc.Question)
		slotMap = append(slotMap, doc.ID)

		for _, v := range doc.Variants {
			texts = append(texts, v)
			slotMap = append(slotMap, doc.ID)
		}

		if doc.HasAnswer() {
			texts = append(texts, compositeSlot(doc.Question, doc.Answer))
			slotMap = append(slotMap, doc.ID)
		}
	}
	return texts, slotMap
}

// compositeSlot 合成“问题+回答前缀”文本，捕获问题单独无法表达的语义。
func compositeSlot(question, answer string) string {
	runes := []rune(answer)
	if len(runes) > answerPrefixRunes {
		runes = runes[:answerPrefixRunes]
	}
	return "Q: " + question + " A: " + string(runes)
}
