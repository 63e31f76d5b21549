package moderation

import "context"

// Prefixes stamped onto filtered content so readers can tell how much the
// pipeline managed to do before the message reached them.
const (
	UnavailablePrefix = "[AI moderation unavailable] "
	FlaggedPrefix     = "[Flagged by AI] "
)

// Client is the slice of the language-model surface the filter needs.
type Client interface {
	// Rewrite returns the message rephrased into neutral, professional language.
	Rewrite(ctx context.Context, content string) (string, error)
	// Check reports whether the content trips the moderation model.
	Check(ctx context.Context, content string) (bool, error)
	// Explain produces a plain-language explanation of a conveyancing stage
	// tailored to the reader's role.
	Explain(ctx context.Context, stage, role string) (string, error)
}

// Result is the outcome of filtering one outbound message.
type Result struct {
	Filtered string
	Flagged  bool
}

// Filter runs the rewrite-then-check pipeline with graceful degradation.
// A failed rewrite falls back to the original text behind the unavailable
// prefix and skips the check. A failed check lets the rewrite through
// unmarked rather than blocking the conversation.
func Filter(ctx context.Context, client Client, content string) Result {
	if client == nil {
		return Result{Filtered: UnavailablePrefix + content}
	}
	rewritten, err := client.Rewrite(ctx, content)
	if err != nil {
		return Result{Filtered: UnavailablePrefix + content}
	}
	flagged, err := client.Check(ctx, rewritten)
	if err != nil {
		return Result{Filtered: rewritten}
	}
	if flagged {
		return Result{Filtered: FlaggedPrefix + rewritten, Flagged: true}
	}
	return Result{Filtered: rewritten}
}
