// Package repl provides an interactive question loop over the answer engine.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	ragengine "github.com/pck00223-oss/ai-rag-engine"
)

const prompt = "Query> "

// Engine is the answering surface the REPL drives.
type Engine interface {
	AnswerVerbose(ctx context.Context, question string) (ragengine.Answer, []ragengine.Hit, error)
}

// Run reads questions line by line until EOF or an exit word, printing the
// retrieval hits and the answer for each.
func Run(ctx context.Context, engine Engine, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "rag-engine repl")
	fmt.Fprintln(out, "commands:")
	fmt.Fprintln(out, "  exit | quit | :q  leave the loop")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit" || line == ":quit" || line == ":q":
			return nil
		}

		answer, hits, err := engine.AnswerVerbose(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n\n", err)
			continue
		}

		printHits(out, hits)
		fmt.Fprintf(out, "[%s] %s\n\n", answer.Reason, answer.Text)
	}
}

func printHits(out io.Writer, hits []ragengine.Hit) {
	if len(hits) == 0 {
		return
	}
	fmt.Fprintln(out, "=== HITS ===")
	for i, h := range hits {
		fmt.Fprintf(out, "%2d. %s#chunk%d L%d-L%d  bm25=%.3f cov=%.2f title=%v final=%.3f\n",
			i+1, h.DocID, h.ChunkIndex, h.LineStart, h.LineEnd, h.BM25, h.Coverage, h.TitleHit, h.Final)
	}
}
