package extract_test

import (
	"slices"
	"testing"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

func TestExtractSections(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  extract.SolutionRecord
	}{
		{
			name:  "bracket headings",
			input: "【解题思路】\n先列方程\n\n【详细步骤】\n1. 设x\n2. 解方程\n\n【最终答案】\nx=2",
			want: extract.SolutionRecord{
				Thinking: "先列方程",
				Steps:    []string{"设x", "解方程"},
				Answer:   "x=2",
			},
		},
		{
			name:  "markdown headings",
			input: "## 解题思路\n利用公式\n## 解题步骤\n1. 代入\n2. 计算\n## 答案：12\n## 知识总结\n勾股定理",
			want: extract.SolutionRecord{
				Thinking: "利用公式",
				Steps:    []string{"代入", "计算"},
				Answer:   "12",
				Summary:  "勾股定理",
			},
		},
		{
			name:  "bold labels",
			input: "**思路**：先观察\n**答案**：7",
			want:  extract.SolutionRecord{Thinking: "先观察", Answer: "7"},
		},
		{
			name:  "case-insensitive alias",
			input: "Analysis: compare both sides\n答案: 4",
			want:  extract.SolutionRecord{Thinking: "compare both sides", Answer: "4"},
		},
		{
			name:  "paragraph fallback",
			input: "先观察题目。\n\n第一步化简。\n\n第二步求解。\n\n所以答案为5。",
			want: extract.SolutionRecord{
				Thinking: "先观察题目。",
				Steps:    []string{"第一步化简。", "第二步求解。"},
				Answer:   "第二步求解。",
				Summary:  "所以答案为5。",
			},
		},
		{
			name:  "bullet lines",
			input: "解题如下：\n- 移项\n- 合并",
			want: extract.SolutionRecord{
				Thinking: "解题如下：\n- 移项\n- 合并",
				Steps:    []string{"移项", "合并"},
				Answer:   "合并",
			},
		},
		{
			name:  "alias inside a sentence is not a heading",
			input: "步骤很简单，答案显然",
			want:  extract.SolutionRecord{Thinking: "步骤很简单，答案显然"},
		},
		{
			name:  "leftover data is not prose",
			input: `{"foo": "bar"`,
			want:  extract.SolutionRecord{},
		},
		{
			name:  "labelled line opens a section",
			input: "【答案】\n6\n总结：乘法分配律",
			want:  extract.SolutionRecord{Answer: "6", Summary: "乘法分配律"},
		},
		{
			name:  "inline summary inside a section",
			input: "【答案】6，本题总结：乘法分配律",
			want:  extract.SolutionRecord{Answer: "6，本题总结：乘法分配律", Summary: "乘法分配律"},
		},
		{
			name:  "bold step labels under a steps heading",
			input: "## 详细步骤\n**步骤1**：设x\n**步骤2**：解方程得x=2\n\n## 答案\nx=2",
			want: extract.SolutionRecord{
				Steps:  []string{"设x", "解方程得x=2"},
				Answer: "x=2",
			},
		},
		{
			name:  "step sub-headings",
			input: "## 解题思路\n先移项\n\n## 解题步骤\n### 步骤1：移项\n2x=6\n### 步骤2：求解\nx=3\n\n## 最终答案\nx=3",
			want: extract.SolutionRecord{
				Thinking: "先移项",
				Steps:    []string{"移项", "2x=6", "求解", "x=3"},
				Answer:   "x=3",
			},
		},
		{
			name:  "repeated steps heading continues the section",
			input: "【步骤】\n1. 设x\n【步骤】\n2. 求解\n【答案】\n5",
			want: extract.SolutionRecord{
				Steps:  []string{"设x", "求解"},
				Answer: "5",
			},
		},
		{
			name:  "alias followed by text is not a heading",
			input: "# 答案略\n【答案】\n9",
			want:  extract.SolutionRecord{Answer: "9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extract.ExtractSections(tt.input)
			assertSolution(t, got, tt.want)
		})
	}
}

func TestExtractSections_DuplicateHeadingKeepsFirst(t *testing.T) {
	got := extract.ExtractSections("【答案】\n1\n【总结】\n小结\n【答案】\n2")
	if got.Answer != "1" {
		t.Errorf("Answer = %q, want %q", got.Answer, "1")
	}
	if got.Summary != "小结" {
		t.Errorf("Summary = %q, want %q", got.Summary, "小结")
	}
}

func assertSolution(t *testing.T, got, want extract.SolutionRecord) {
	t.Helper()
	if got.Thinking != want.Thinking {
		t.Errorf("Thinking = %q, want %q", got.Thinking, want.Thinking)
	}
	if !slices.Equal(got.Steps, want.Steps) {
		t.Errorf("Steps = %q, want %q", got.Steps, want.Steps)
	}
	if got.Answer != want.Answer {
		t.Errorf("Answer = %q, want %q", got.Answer, want.Answer)
	}
	if got.Summary != want.Summary {
		t.Errorf("Summary = %q, want %q", got.Summary, want.Summary)
	}
}
