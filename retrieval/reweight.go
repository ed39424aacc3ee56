package retrieval

import "sort"

// ReweightConfig 对话连续性加权常量。数值经对话数据调参得到，
// 整体效果是偏好沿分支树前进或停留的候选。
type ReweightConfig struct {
	// 会话开场（无上一轮标签）时的固定分数。
	SessionStartOpening float64 `yaml:"session_start_opening"`
	SessionStartOther   float64 `yaml:"session_start_other"`
	// 有上一轮标签时：weighted = original×Decay + 对应加成。
	Decay         float64 `yaml:"decay"`
	SameBonus     float64 `yaml:"same_bonus"`
	ForwardBonus  float64 `yaml:"forward_bonus"`
	BackwardBonus float64 `yaml:"backward_bonus"`
}

// DefaultReweightConfig 返回与线上行为一致的加权常量。
func DefaultReweightConfig() ReweightConfig {
	return ReweightConfig{
		SessionStartOpening: 1.0,
		SessionStartOther:   0.95,
		Decay:               0.8,
		SameBonus:           0.05,
		ForwardBonus:        0.0495,
		BackwardBonus:       0.04,
	}
}

// Weighted 一条加权后的候选。原始分数保留以便观测。
type Weighted struct {
	Candidate
	Tag           string
	WeightedScore float64
}

// ValidPreviousTag 判断上一轮标签是否可用于加权：空或单个大写字母。
func ValidPreviousTag(tag string) bool {
	if tag == "" {
		return true
	}
	return len(tag) == 1 && tag[0] >= 'A' && tag[0] <= 'Z'
}

// Reweighter 按上一轮对话分支标签调整候选分数。
type Reweighter struct {
	config ReweightConfig
}

// NewReweighter 创建连续性加权器。
func NewReweighter(config ReweightConfig) *Reweighter {
	return &Reweighter{config: config}
}

// Apply 对候选施加连续性加权并稳定地按加权分降序重排。
// previousTag 必须已通过 ValidPreviousTag 校验；tags[i] 是第 i 条候选的分支标签。
func (rw *Reweighter) Apply(candidates []Candidate, tags []string, previousTag string, topK int) []Weighted {
	weighted := make([]Weighted, len(candidates))
	for i, c := range candidates {
		tag := ""
		if i < len(tags) {
			tag = tags[i]
		}
		weighted[i] = Weighted{
			Candidate:     c,
			Tag:           tag,
			WeightedScore: rw.weight(c.CombinedScore, tag, previousTag),
		}
	}

	sort.SliceStable(weighted, func(i, j int) bool {
		return weighted[i].WeightedScore > weighted[j].WeightedScore
	})

	if len(weighted) > topK {
		weighted = weighted[:topK]
	}
	return weighted
}

// weight 计算单条候选的加权分。
// 开场时原始分数被丢弃，固定偏好 A/B 开局分支。
func (rw *Reweighter) weight(original float64, tag, previousTag string) float64 {
	if previousTag == "" {
		if tag == "A" || tag == "B" {
			return rw.config.SessionStartOpening
		}
		return rw.config.SessionStartOther
	}

	switch {
	case tag == previousTag:
		return original*rw.config.Decay + rw.config.SameBonus
	case tag > previousTag && isUpperLetter(tag):
		return original*rw.config.Decay + rw.config.ForwardBonus
	default:
		return original*rw.config.Decay + rw.config.BackwardBonus
	}
}

func isUpperLetter(tag string) bool {
	return len(tag) == 1 && tag[0] >= 'A' && tag[0] <= 'Z'
}
