package index

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"Hello WORLD", []string{"hello", "world"}},
		{"std::format", []string{"std", "format"}},
		{"BM25Okapi", []string{"bm25okapi"}},
		{"向量检索", []string{"向", "量", "检", "索"}},
		{"用faiss做向量检索", []string{"用", "faiss", "做", "向", "量", "检", "索"}},
		{"snake_case_name", []string{"snake_case_name"}},
		{"a,b;c", []string{"a", "b", "c"}},
		{"", nil},
		{"，。！", nil},
	}
	for _, tt := range tests {
		got := Tokenize(tt.input)
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
