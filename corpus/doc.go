// Package corpus 定义问答语料的文档模型与 JSONL 语料加载器。
package corpus
