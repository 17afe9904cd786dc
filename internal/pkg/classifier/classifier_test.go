package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		confidence float64
		want       TextType
	}{
		{name: "integer", text: "12345", confidence: 0.5, want: Number},
		{name: "decimal", text: "3.14", confidence: 0.99, want: Number},
		{name: "full width digits", text: "１２３", confidence: 0.5, want: Number},
		{name: "two decimal points is not a number", text: "1.2.3", confidence: 0.5, want: Default},
		{name: "lone decimal point", text: ".", confidence: 0.5, want: Default},
		{name: "empty text", text: "", confidence: 0.5, want: Default},
		{name: "iso date", text: "2024-01-01", confidence: 0.5, want: Date},
		{name: "chinese date", text: "2024年1月1日", confidence: 0.5, want: Date},
		{name: "slash with few digits is not a date", text: "and/or something", confidence: 0.5, want: Paragraph},
		{name: "table keyword", text: "合计", confidence: 0.5, want: Table},
		{name: "table keyword wins over title", text: "项目名称", confidence: 0.99, want: Table},
		{name: "date wins over table", text: "2024-01-01 合计", confidence: 0.5, want: Date},
		{name: "short confident text is a title", text: "年度报告", confidence: 0.9, want: Title},
		{name: "confidence must exceed threshold", text: "年度报告", confidence: 0.85, want: Default},
		{name: "long text is a paragraph", text: strings.Repeat("文", 30), confidence: 0.99, want: Paragraph},
		{name: "medium text with low confidence", text: strings.Repeat("文", 16), confidence: 0.5, want: Paragraph},
		{name: "short text with low confidence", text: "你好", confidence: 0.3, want: Default},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, tt.confidence))
		})
	}
}

func TestTitleLengthCountsRunes(t *testing.T) {
	// 19 CJK characters are 57 bytes but still a title
	text := strings.Repeat("标", 19)

	assert.Equal(t, Title, Classify(text, 0.95))
	assert.Equal(t, Paragraph, Classify(text+"题", 0.95))
}
