package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Title generation constants.
const (
	titleMaxLength         = 255
	titleGenerationTimeout = 5 * time.Second
	titleInputMaxRunes     = 500
	titleFallbackRunes     = 50
)

var titlePrompt = fmt.Sprintf(`Generate a concise title (max %d characters) for a chat conversation based on this first message.`, titleMaxLength) + `
The title should capture the main topic or intent.
Return ONLY the title text, no quotes, no explanations, no punctuation at the end.

Message: %s

Title:`

// GenerateTitle produces a conversation title from the user's first
// message. Returns empty string on failure (best-effort).
func (a *Agent) GenerateTitle(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleGenerationTimeout)
	defer cancel()

	inputRunes := []rune(userMessage)
	if len(inputRunes) > titleInputMaxRunes {
		userMessage = string(inputRunes[:titleInputMaxRunes]) + "..."
	}

	opts := []ai.GenerateOption{
		ai.WithPrompt(titlePrompt, userMessage),
	}
	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}

	response, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		a.logger.Debug("title generation failed", "error", err)
		return ""
	}

	title := strings.TrimSpace(response.Text())
	if title == "" {
		return ""
	}

	titleRunes := []rune(title)
	if len(titleRunes) > titleMaxLength {
		title = string(titleRunes[:titleMaxLength-3]) + "..."
	}
	return title
}

// setTitle stores a title for a fresh conversation, falling back to a
// truncated copy of the first message when generation fails.
func (a *Agent) setTitle(ctx context.Context, conversationID uuid.UUID, firstMessage string) {
	title := a.GenerateTitle(ctx, firstMessage)
	if title == "" {
		title = truncateTitle(firstMessage)
	}
	if title == "" {
		return
	}
	if err := a.conversations.SetTitle(ctx, conversationID, title); err != nil {
		a.logger.Warn("storing conversation title", "error", err, "conversation_id", conversationID)
	}
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > titleFallbackRunes {
		return string(runes[:titleFallbackRunes]) + "..."
	}
	return s
}
