// Package postprocess implements the streaming stop-and-normalize stage that
// sits between token sampling and the final output sink. It consumes decoded
// text fragments one at a time, decides online when generation must halt, and
// collapses the accumulated text into a single clean sentence.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State tracks the lifecycle of one generation request. Transitions are
// monotonic: Streaming -> StoppedByMatch | StoppedByBudget -> Normalized.
type State int

const (
	// Streaming means fragments are still being appended.
	Streaming State = iota
	// StoppedByMatch means a stop literal matched or the sampler signalled
	// end of sequence.
	StoppedByMatch
	// StoppedByBudget means the fragment budget was exhausted first.
	StoppedByBudget
	// Normalized is the terminal state; the output is final.
	Normalized
)

func (s State) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case StoppedByMatch:
		return "stopped_by_match"
	case StoppedByBudget:
		return "stopped_by_budget"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrConfig reports an invalid processor configuration. It is detected before
// streaming begins; no processor state is created.
var ErrConfig = errors.New("invalid processor config")

// Fragment is one decoded piece of text produced by the sampler, usually
// corresponding to a single sampled token.
type Fragment struct {
	Text string
	// EOS reports that the sampler reached end of sequence. Text may still
	// carry a final piece of output.
	EOS bool
}

// Sampler produces decoded fragments one blocking call at a time. It is the
// boundary to the external inference engine; the processor never looks past
// it.
type Sampler interface {
	Next(ctx context.Context) (Fragment, error)
}

// Config carries the per-request processor settings.
type Config struct {
	// StopLiterals halt generation when the accumulated text ends with one
	// of them. Empty literals are ignored. Order is irrelevant for
	// correctness; only byte offsets matter when trimming.
	StopLiterals []string
	// SentenceTerminators mark sentence ends for the normalizer. These are
	// matched as opaque byte sequences, never decoded.
	SentenceTerminators []string
	// MaxTokens bounds the number of fragments consumed. Must be > 0.
	MaxTokens int
	// AnchorPhrase, when non-empty, enables the leading-filler repair: text
	// before the first occurrence of the phrase is discarded once.
	AnchorPhrase string
}

// Processor is the incremental text-state machine for one generation request.
// It owns its buffer exclusively and is not safe for concurrent use; each
// request gets its own Processor.
type Processor struct {
	cfg   Config
	buf   strings.Builder
	count int
	state State
}

// New validates cfg and returns a fresh processor in the Streaming state.
func New(cfg Config) (*Processor, error) {
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be > 0, got %d", ErrConfig, cfg.MaxTokens)
	}
	return &Processor{cfg: cfg}, nil
}

// State returns the current lifecycle state.
func (p *Processor) State() State { return p.state }

// Buffered returns the raw accumulated text. After Run returns it reflects
// the buffer at the moment streaming stopped, before trim and normalize.
func (p *Processor) Buffered() string { return p.buf.String() }

// Run drives the generation loop: it pulls fragments from the sampler until a
// stop literal matches, the sampler signals end of sequence, or the fragment
// budget is exhausted, then trims at the earliest stop occurrence and
// normalizes the result to a single sentence.
//
// A sampler error is fatal: Run returns it without trimming or normalizing,
// and the processor stays in its pre-error state. When a stop literal and the
// budget are hit in the same step, the stop match wins.
func (p *Processor) Run(ctx context.Context, s Sampler) (string, error) {
	if p.state != Streaming {
		return "", fmt.Errorf("%w: processor already ran (state %s)", ErrConfig, p.state)
	}

	for p.state == Streaming {
		frag, err := s.Next(ctx)
		if err != nil {
			return "", fmt.Errorf("decode fragment: %w", err)
		}

		p.buf.WriteString(frag.Text)
		p.count++

		switch {
		case MatchesStop(p.buf.String(), p.cfg.StopLiterals):
			p.state = StoppedByMatch
		case frag.EOS:
			p.state = StoppedByMatch
		case p.count >= p.cfg.MaxTokens:
			p.state = StoppedByBudget
		}
	}

	out := TrimAtStop(p.buf.String(), p.cfg.StopLiterals)
	out = NormalizeSentence(out, p.cfg.SentenceTerminators, p.cfg.AnchorPhrase)
	p.state = Normalized
	return out, nil
}

// MatchesStop reports whether text ends with any non-empty stop literal.
// Comparison is byte-exact; no case folding, no Unicode normalization.
func MatchesStop(text string, stops []string) bool {
	for _, t := range stops {
		if t == "" {
			continue
		}
		if strings.HasSuffix(text, t) {
			return true
		}
	}
	return false
}

// TrimAtStop truncates text at the earliest starting offset of any non-empty
// stop literal found anywhere in it. This also cleans up text retroactively
// when the halt came from the budget rather than a suffix match. The function
// is idempotent.
func TrimAtStop(text string, stops []string) string {
	cut := -1
	for _, t := range stops {
		if t == "" {
			continue
		}
		if p := strings.Index(text, t); p >= 0 && (cut < 0 || p < cut) {
			cut = p
		}
	}
	if cut >= 0 {
		return text[:cut]
	}
	return text
}
