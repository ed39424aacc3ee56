package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/vitalsim/dialograg/textnorm"
)

// Augmenter 为规范问题生成额外变体（原句除外，已去重）。
type Augmenter interface {
	Expand(question string) []string
}

// LoaderConfig 语料加载配置。
type LoaderConfig struct {
	// MinAuthoredVariants 人工变体少于该数量时触发自动扩增。
	MinAuthoredVariants int `yaml:"min_authored_variants" json:"min_authored_variants"`
}

// DefaultLoaderConfig 返回默认加载配置。
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{MinAuthoredVariants: 3}
}

// Loader 按行读取 JSONL 语料：空行与 // 注释行跳过，
// 坏行记录日志后继续，不中断整体加载。
type Loader struct {
	config    LoaderConfig
	augmenter Augmenter
	logger    *zap.Logger
}

// NewLoader 创建语料加载器。augmenter 可为 nil（不做变体扩增）。
func NewLoader(config LoaderConfig, augmenter Augmenter, logger *zap.Logger) *Loader {
	return &Loader{
		config:    config,
		augmenter: augmenter,
		logger:    logger,
	}
}

// LoadFile 从文件加载语料。
func (l *Loader) LoadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	docs, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	return docs, nil
}

// Load 从 reader 加载语料，返回按加载顺序编号的文档数组。
func (l *Loader) Load(r io.Reader) ([]Document, error) {
	var docs []Document

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			l.logger.Warn("skipping malformed corpus line",
				zap.Int("line", lineNo),
				zap.Error(err))
			skipped++
			continue
		}

		doc.Question = textnorm.CleanText(doc.Question)
		if doc.Question == "" {
			l.logger.Warn("skipping corpus record without question",
				zap.Int("line", lineNo))
			skipped++
			continue
		}

		for i, v := range doc.Variants {
			doc.Variants[i] = textnorm.CleanText(v)
		}
		if doc.AnswerType == "" {
			doc.AnswerType = DefaultAnswerType
		}

		doc.ID = len(docs)
		l.augment(&doc)
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	l.logger.Info("corpus loaded",
		zap.Int("documents", len(docs)),
		zap.Int("skipped", skipped))

	return docs, nil
}

// augment 在人工变体不足时自动扩增。缺失回答的记录不扩增。
func (l *Loader) augment(doc *Document) {
	if l.augmenter == nil || !doc.HasAnswer() {
		return
	}
	if len(doc.Variants) >= l.config.MinAuthoredVariants {
		return
	}

	existing := make(map[string]bool, len(doc.Variants)+1)
	existing[doc.Question] = true
	for _, v := range doc.Variants {
		existing[v] = true
	}

	for _, v := range l.augmenter.Expand(doc.Question) {
		if !existing[v] {
			existing[v] = true
			doc.Variants = append(doc.Variants, v)
		}
	}
}
