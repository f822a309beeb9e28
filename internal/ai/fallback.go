package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// fallbackNarrator calls primary first and, if that fails, secondary.
// Which provider is which is decided in main.
type fallbackNarrator struct {
	primary   Narrator
	secondary Narrator
	logger    *slog.Logger
}

// NewFallbackNarrator returns a Narrator that calls primary and falls back to
// secondary on error. A nil primary goes straight to secondary; a nil
// secondary surfaces the primary error.
func NewFallbackNarrator(primary, secondary Narrator, logger *slog.Logger) Narrator {
	return &fallbackNarrator{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *fallbackNarrator) Narrate(ctx context.Context, in NarrativeInput) (Narrative, error) {
	if f.primary != nil {
		n, err := f.primary.Narrate(ctx, in)
		if err == nil {
			return n, nil
		}
		f.logger.Warn("ai: primary narrator failed, trying secondary",
			"error", err,
			"offer_id", in.Offer.ID,
		)
		if f.secondary == nil {
			return Narrative{}, fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}
	if f.secondary == nil {
		return Narrative{}, fmt.Errorf("ai: no narrator configured")
	}
	return f.secondary.Narrate(ctx, in)
}
