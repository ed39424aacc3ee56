package variants

import (
	"hash/fnv"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/textnorm"
)

// synonyms 固定领域同义词典（繁体规范词 → 替换词表）。
var synonyms = map[string][]string{
	"小孩":  {"孩子", "小朋友", "小孩子", "兒童"},
	"媽媽":  {"母親", "媽", "娘親"},
	"爸爸":  {"父親", "爹地", "爸", "爹"},
	"醫生":  {"醫師", "大夫", "醫者"},
	"生病":  {"患病", "不舒服", "身體不適", "有病"},
	"肚子":  {"腹部", "肚腹", "腹"},
	"拉肚子": {"腹瀉", "拉稀", "肚子不舒服", "腸胃炎"},
	"發燒":  {"發熱", "體溫升高", "溫度高", "燒"},
	"嘔吐":  {"吐", "嘔", "噁心吐", "反胃"},
	"不舒服": {"難受", "不適", "不好受", "不對勁"},
}

// synonymOrder 同义词典的固定遍历顺序。
var synonymOrder = []string{
	"小孩", "媽媽", "爸爸", "醫生", "生病",
	"肚子", "拉肚子", "發燒", "嘔吐", "不舒服",
}

// politePrefixes 固定礼貌用语前缀表。
var politePrefixes = []string{"請問", "麻煩問一下", "不好意思", "想請教", "勞駕", "冒昧請問"}

// Config 变体生成配置。
type Config struct {
	// Seed 语序变换的随机种子。同一种子下生成完全可复现。
	Seed int64 `yaml:"seed" json:"seed"`
	// MaxWordOrder 语序变换变体的上限。
	MaxWordOrder int `yaml:"max_word_order" json:"max_word_order"`
}

// DefaultConfig 返回默认变体生成配置。
func DefaultConfig() Config {
	return Config{Seed: 1, MaxWordOrder: 3}
}

// Generator 问题变体生成器。
type Generator struct {
	config    Config
	segmenter textnorm.Segmenter
	converter textnorm.ScriptConverter
	logger    *zap.Logger
}

// NewGenerator 创建变体生成器。
func NewGenerator(
	config Config,
	segmenter textnorm.Segmenter,
	converter textnorm.ScriptConverter,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		config:    config,
		segmenter: segmenter,
		converter: converter,
		logger:    logger,
	}
}

// Expand 为规范问题生成去重后的变体集合（不含原句）。
func (g *Generator) Expand(question string) []string {
	var out []string
	seen := map[string]bool{question: true}

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	g.wordOrderVariants(question, add)

	// 整句简体变体。简繁同形（转换无操作）时跳过，避免无效重复。
	if simplified := g.converter.ToSimplified(question); simplified != question {
		add(simplified)
	}

	g.synonymVariants(question, add)
	g.politenessVariants(question, add)

	return out
}

// wordOrderVariants 语序变换：token 数 > 3 时，固定首尾、打乱中间，
// 至多生成 MaxWordOrder 个变体。洗牌用按问题内容取种子的发生器，
// 构建顺序不影响结果。
func (g *Generator) wordOrderVariants(question string, add func(string)) {
	tokens := g.segmenter.Segment(question)
	if len(tokens) <= 3 {
		return
	}

	rng := rand.New(rand.NewSource(g.config.Seed ^ hashSeed(question)))

	for i := 0; i < g.config.MaxWordOrder; i++ {
		shuffled := make([]string, len(tokens))
		copy(shuffled, tokens)

		interior := shuffled[1 : len(shuffled)-1]
		rng.Shuffle(len(interior), func(a, b int) {
			interior[a], interior[b] = interior[b], interior[a]
		})

		if v := strings.Join(shuffled, ""); v != question {
			add(v)
		}
	}
}

// synonymVariants 同义词替换：规范词在问题中逐词替换，
// 每个变体同时补上其简体对应形。按固定词序遍历保证输出顺序稳定。
func (g *Generator) synonymVariants(question string, add func(string)) {
	for _, canonical := range synonymOrder {
		if !strings.Contains(question, canonical) {
			continue
		}
		for _, replacement := range synonyms[canonical] {
			variant := strings.ReplaceAll(question, canonical, replacement)
			if variant == question {
				continue
			}
			add(variant)
			if simplified := g.converter.ToSimplified(variant); simplified != variant {
				add(simplified)
			}
		}
	}
}

// politenessVariants 礼貌用语增删：已带前缀则剥离，否则逐个前缀补上。
func (g *Generator) politenessVariants(question string, add func(string)) {
	for _, prefix := range politePrefixes {
		if strings.HasPrefix(question, prefix) {
			stripped := strings.TrimPrefix(question, prefix)
			stripped = strings.TrimLeft(stripped, "，, ")
			add(stripped)
			return
		}
	}
	for _, prefix := range politePrefixes {
		add(prefix + "，" + question)
	}
}

func hashSeed(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
