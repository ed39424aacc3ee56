// Package textnorm 提供语料和查询文本的归一化工具：
// 标点/空白清洗、疑问语尾剥离、繁简转换与分词的外部接口封装。
package textnorm
