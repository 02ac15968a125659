package postprocess

import (
	"strings"
	"testing"
)

var cjkTerms = []string{"。", "！", "？"}

func TestNormalizeSentence(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		anchor string
		want   string
	}{
		{"keeps single sentence", "格式化是把数据转成文本的过程。", "", "格式化是把数据转成文本的过程。"},
		{"cuts after first terminator", "你好。多余内容", "", "你好。"},
		{"earliest terminator wins", "先问？再说。", "", "先问？"},
		{"cuts at newline before terminator", "第一行\n第二行。", "", "第一行"},
		{"strips carriage returns", "带\r回车。", "", "带回车。"},
		{"trims surrounding space", "   答案。  ", "", "答案。"},
		{"collapses interior runs", "a \t b   c", "", "a b c"},
		{"empty stays empty", "", "", ""},
		{"whitespace only", " \t \r ", "", ""},
		{"no terminator passes through", "没有句号的回答", "", "没有句号的回答"},
		{"anchor repair drops filler", "好的，我来回答：格式化是排版。", "格式化", "格式化是排版。"},
		{"anchor after first terminator still repairs", "嗯，好的。LR(0)项目集：一种状态集合。", "LR(0)", "LR(0)项目集：一种状态集合。"},
		{"anchor at offset zero is noop", "格式化是排版。", "格式化", "格式化是排版。"},
		{"anchor absent is noop", "别的内容。", "格式化", "别的内容。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSentence(tt.in, cjkTerms, tt.anchor)
			if got != tt.want {
				t.Errorf("NormalizeSentence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSentenceIdempotent(t *testing.T) {
	inputs := []string{
		"你好。多余内容",
		"好的，我来回答：格式化是排版。",
		"a \t b \n c",
		"   边界  情况。 ",
	}
	for _, in := range inputs {
		once := NormalizeSentence(in, cjkTerms, "格式化")
		twice := NormalizeSentence(once, cjkTerms, "格式化")
		if once != twice {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeSentenceNeverExpands(t *testing.T) {
	inputs := []string{
		"嗯，好的。格式化是排版。",
		strings.Repeat("空  格\t", 50) + "。",
		"\n\n\n正文。",
	}
	for _, in := range inputs {
		out := NormalizeSentence(in, cjkTerms, "格式化")
		if len(out) > len(in) {
			t.Errorf("output grew: %d > %d for %q", len(out), len(in), in)
		}
	}
}

func TestNormalizeSentenceAnchorFiresOnce(t *testing.T) {
	// Two anchor occurrences: only the prefix before the first is dropped.
	in := "前缀词 格式化A 格式化B。"
	got := NormalizeSentence(in, cjkTerms, "格式化")
	if want := "格式化A 格式化B。"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCutFirstSentenceAsciiTerminators(t *testing.T) {
	got := cutFirstSentence("First. Second.", []string{"."})
	if got != "First." {
		t.Errorf("got %q", got)
	}
}
