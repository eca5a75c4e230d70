package solver

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

const (
	recognizePrompt = "请仔细识别图片中的题目内容，提取所有文字、数字、公式。保持题目的原始格式，如果是数学题保留公式表达式。只输出识别到的文本内容，不要添加任何解释。"

	parseSystemPrompt  = "你是一位专业的教育分析师，擅长分析各类学科题目。你必须只输出纯 JSON 格式，不要添加任何 markdown 标记或其他文字。"
	solveSystemPrompt  = "你是一位优秀的 AI 教师。你必须只输出纯 JSON，禁止输出 markdown 代码块和额外说明。JSON 字段内容允许 Markdown 与 LaTeX。"
	streamSystemPrompt = "你是一位优秀的 AI 教师，擅长用清晰、易懂的方式讲解题目。"
)

// Sampling settings per task.
const (
	recognizeMaxTokens = 2000

	parseTemperature = 0.1
	parseMaxTokens   = 1600

	solveTemperature = 0.2
	solveMaxTokens   = 1024

	streamTemperature = 0.7
	streamMaxTokens   = 2000
)

const parseTemplate = `你是一位经验丰富的教师，请分析以下题目：

题目：%s

请按以下 JSON 格式输出分析结果（只输出 JSON，不要添加 markdown 代码块标记或其他内容）：

{
    "type": "题目类型（选择/填空/解答/判断）",
    "subject": "所属学科",
    "knowledgePoints": ["知识点1", "知识点2"],
    "difficulty": "难度等级（简单/中等/困难）",
    "prerequisites": ["前置知识1", "前置知识2"]
}`

const solveTemplate = `你是一位耐心的 AI 教师，请为学生提供详细解答。

题目：%s

题目类型：%s
所属学科：%s
知识点：%s
难度等级：%s

请严格输出 JSON（不要 markdown 代码块、不要额外说明），字段必须齐全：

{
    "thinking": "解题思路（1-3段）",
    "steps": ["步骤1", "步骤2", "步骤3"],
    "answer": "最终答案（简洁明确）",
    "summary": "知识总结（可迁移的方法与易错点）"
}

要求：
1. steps 必须是字符串数组，至少 2 步；
2. answer 只保留最终结论，不要重复完整推导；
3. summary 必须总结方法与易错点，不要留空；
4. thinking / steps / summary 请使用清晰的 Markdown 结构（如标题、列表、加粗）；
5. 涉及数学表达式时，使用 LaTeX：行内用 $...$，独立公式用 $$...$$；
6. 仅输出合法 JSON，字段值中的换行必须按 JSON 字符串格式正确转义。`

const streamTemplate = `你是一位耐心的 AI 教师，请为学生提供详细的解答。

题目：%s
题目类型：%s
所属学科：%s
知识点：%s

请提供详细的解题思路、步骤、答案和知识总结。

格式要求：
1. 使用 Markdown 组织内容；
2. 数学公式使用 LaTeX（行内 $...$，块级 $$...$$）；
3. 不要输出与答案无关的自我反思。`

func buildParsePrompt(text string) string {
	return fmt.Sprintf(parseTemplate, text)
}

func buildSolvePrompt(text string, cls extract.ClassificationRecord) string {
	return fmt.Sprintf(solveTemplate,
		text,
		cls.Type,
		cls.Subject,
		strings.Join(cls.KnowledgePoints, "、"),
		cls.Difficulty,
	)
}

func buildStreamPrompt(text string, cls extract.ClassificationRecord) string {
	return fmt.Sprintf(streamTemplate,
		text,
		cls.Type,
		cls.Subject,
		strings.Join(cls.KnowledgePoints, "、"),
	)
}
