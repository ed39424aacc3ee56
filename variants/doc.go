// Package variants 将规范问题扩展为替代问法（语序变换、同义词替换、
// 礼貌用语增删），提升向量检索的召回率。生成过程完全确定，
// 同一问题在任何构建中产生相同的变体集合。
package variants
