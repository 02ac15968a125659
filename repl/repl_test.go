package repl

import (
	"context"
	"errors"
	"strings"
	"testing"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
)

type fakeEngine struct {
	questions []string
	err       error
}

func (f *fakeEngine) AnswerVerbose(ctx context.Context, question string) (ragengine.Answer, []ragengine.Hit, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return ragengine.Answer{}, nil, f.err
	}
	return ragengine.Answer{
			Text:   "答案。[a.md#chunk0#L1-L2]",
			Reason: ragengine.ReasonOK,
		}, []ragengine.Hit{
			{DocID: "a.md", ChunkIndex: 0, LineStart: 1, LineEnd: 2, BM25: 1.5, Coverage: 0.8, Final: 0.9},
		}, nil
}

func TestRunAnswersAndQuits(t *testing.T) {
	engine := &fakeEngine{}
	var out strings.Builder
	in := strings.NewReader("什么是词法分析\nexit\n")

	if err := Run(context.Background(), engine, in, &out); err != nil {
		t.Fatal(err)
	}

	if len(engine.questions) != 1 || engine.questions[0] != "什么是词法分析" {
		t.Errorf("questions asked: %v", engine.questions)
	}
	got := out.String()
	if !strings.Contains(got, "=== HITS ===") {
		t.Error("hits table missing")
	}
	if !strings.Contains(got, "a.md#chunk0 L1-L2") {
		t.Errorf("hit line missing:\n%s", got)
	}
	if !strings.Contains(got, "[ok] 答案。[a.md#chunk0#L1-L2]") {
		t.Errorf("answer line missing:\n%s", got)
	}
}

func TestRunExitWords(t *testing.T) {
	for _, word := range []string{"exit", "quit", ":quit", ":q"} {
		engine := &fakeEngine{}
		var out strings.Builder
		if err := Run(context.Background(), engine, strings.NewReader(word+"\n后面的问题\n"), &out); err != nil {
			t.Fatal(err)
		}
		if len(engine.questions) != 0 {
			t.Errorf("%q did not exit before asking: %v", word, engine.questions)
		}
	}
}

func TestRunSkipsBlankLinesAndStopsAtEOF(t *testing.T) {
	engine := &fakeEngine{}
	var out strings.Builder
	in := strings.NewReader("\n   \n")

	if err := Run(context.Background(), engine, in, &out); err != nil {
		t.Fatal(err)
	}
	if len(engine.questions) != 0 {
		t.Errorf("blank lines reached the engine: %v", engine.questions)
	}
}

func TestRunReportsEngineError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("backend down")}
	var out strings.Builder
	in := strings.NewReader("问题\n")

	if err := Run(context.Background(), engine, in, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "error: backend down") {
		t.Errorf("error not reported:\n%s", out.String())
	}
}
