package openai

import (
	"fmt"
	"strings"

	"github.com/mhxia/finsight/internal/core/domain"
)

const answerSystemPrompt = `你是一名财务报告分析助手。只依据提供的上下文回答问题，不要编造数据。`

func buildAnswerPrompt(question string, candidates []domain.ScoredCandidate) string {
	var contextBuilder strings.Builder
	for idx, candidate := range candidates {
		meta := candidate.Document.Metadata
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] 来源=%s 类型=%s 年份=%s 评分=%.3f\n%s\n\n",
			idx+1,
			meta.String(domain.MetaSourceFile),
			meta.String(domain.MetaDocType),
			meta.String(domain.MetaYear),
			candidate.Score,
			candidate.Document.Text,
		))
	}

	return fmt.Sprintf(`仅依据下方上下文回答用户问题。
如果上下文不足以回答，请直接说明。引用财务数字时标注来源编号。

问题：
%s

上下文：
%s
`, question, contextBuilder.String())
}
