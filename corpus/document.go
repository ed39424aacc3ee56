package corpus

// DefaultAnswerType 未显式指定时的回答类型。
const DefaultAnswerType = "dialogue"

// Document 一条问答语料记录。
// ID 在加载时按语料数组下标分配，一经分配不再改变。
type Document struct {
	ID          int      `json:"id"`
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Tags        []string `json:"tags,omitempty"`
	Variants    []string `json:"variants,omitempty"`
	Code        string   `json:"code,omitempty"`
	AnswerType  string   `json:"answerType,omitempty"`
	ImageToShow string   `json:"imageToShow,omitempty"`
	AudioURL    string   `json:"audioUrl,omitempty"`
}

// HasAnswer 报告该记录是否携带回答文本。
// 缺失回答的记录仍可被索引，但不参与变体扩增（见 Loader）。
func (d *Document) HasAnswer() bool {
	return d.Answer != ""
}

// PrimaryTag 返回首个分支标签，供对话连续性加权使用；无标签时返回空串。
func (d *Document) PrimaryTag() string {
	if len(d.Tags) == 0 {
		return ""
	}
	return d.Tags[0]
}
