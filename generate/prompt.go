package generate

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"text/template"

	defaults "github.com/pck00223-oss/ai-rag-engine/default"
	"github.com/pck00223-oss/ai-rag-engine/store"
)

// CitationTag formats the reference tag an answer must carry for a chunk.
func CitationTag(c store.Chunk) string {
	return fmt.Sprintf("[%s#chunk%d#L%d-L%d]", c.DocID, c.ChunkIndex, c.LineStart, c.LineEnd)
}

// BuildEvidence renders chunks as citation-tagged blocks separated by blank
// lines, in the given order.
func BuildEvidence(chunks []store.Chunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(CitationTag(c))
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(c.Text))
	}
	return sb.String()
}

// promptData holds the fields exposed to the prompt template.
type promptData struct {
	Evidence string
	Question string
}

// buildPrompt renders the answer prompt. A broken custom template falls back
// to the built-in default rather than failing the request.
func buildPrompt(custom, evidence, question string) string {
	tmplSrc := custom
	if tmplSrc == "" {
		tmplSrc = defaults.DefaultPrompt
	}

	data := promptData{Evidence: evidence, Question: question}

	t, err := template.New("prompt").Parse(tmplSrc)
	if err != nil {
		slog.Warn("failed to parse prompt template, falling back to default", "error", err)
		t, _ = template.New("prompt").Parse(defaults.DefaultPrompt)
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Warn("failed to execute prompt template, falling back to default", "error", err)
		t, _ = template.New("prompt").Parse(defaults.DefaultPrompt)
		buf.Reset()
		t.Execute(&buf, data)
	}

	return strings.TrimRight(buf.String(), " \t\n")
}

// Models sometimes emit the short [chunk:N] form instead of the full tag.
var (
	reFullCitation  = regexp.MustCompile(`\[[^\[\]]+#chunk\d+#L\d+-L\d+\]`)
	reShortCitation = regexp.MustCompile(`\[chunk:\d+\]`)
)

// HasCitation reports whether the answer carries at least one evidence
// reference, in either the full or the short form.
func HasCitation(answer string) bool {
	return reFullCitation.MatchString(answer) || reShortCitation.MatchString(answer)
}
