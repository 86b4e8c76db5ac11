package answer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/junyuhe/scholarbot/backend/internal/config"
	"github.com/junyuhe/scholarbot/backend/internal/model/conversation"
	"github.com/junyuhe/scholarbot/backend/internal/model/evidence"
	"github.com/junyuhe/scholarbot/backend/internal/quota"
	"github.com/junyuhe/scholarbot/backend/internal/retry"
)

var (
	// ErrPromptTooLarge means the current user message alone exceeds the
	// provider's input limit; history and evidence are already gone by then.
	ErrPromptTooLarge = errors.New("prompt exceeds provider input limit")

	// ErrEmptyResponse marks a provider response with no extractable text.
	ErrEmptyResponse = errors.New("provider returned no answer text")
)

const groundedPreamble = `You are a research assistant. Answer the user's question using ONLY the evidence snippets below. Cite the snippet numbers you rely on. If the evidence does not cover the question, say so instead of guessing.`

const ungroundedPreamble = `You are a research assistant. No search evidence is available for this question, so answer from general knowledge and open with a brief caveat that the answer is not grounded in retrieved sources.`

// PromptContext is the request-scoped input to one generation call. It is
// assembled by the orchestrator and never persisted.
type PromptContext struct {
	History  []conversation.Turn
	Evidence evidence.Digest
	Query    string
}

// Generator wraps the LLM provider behind a prompt chain with quota, retry
// and input-size policy.
type Generator struct {
	cfg    config.AIConfig
	guard  *quota.Guard
	policy retry.Policy
	chain  compose.Runnable[map[string]any, *schema.Message]
}

// NewGenerator builds the prompt chain on top of the configured chat model.
func NewGenerator(ctx context.Context, cfg config.AIConfig, guard *quota.Guard) (*Generator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newGenerator(ctx, cfg, guard, chatModel)
}

// newGenerator is split out so tests can inject a fake chat model.
func newGenerator(ctx context.Context, cfg config.AIConfig, guard *quota.Guard, chatModel model.ChatModel) (*Generator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	return &Generator{
		cfg:    cfg,
		guard:  guard,
		policy: retry.Default,
		chain:  runnable,
	}, nil
}

// Result carries the generated text together with the evidence items that
// were actually part of the prompt after input-size trimming.
type Result struct {
	Text     string
	Evidence []evidence.Item
}

// Generate produces the assistant's answer for the given context. A denied
// quota reservation fails with quota.ErrExhausted before any provider call.
func (g *Generator) Generate(ctx context.Context, pctx PromptContext) (Result, error) {
	trimmed, err := g.fitToLimit(pctx)
	if err != nil {
		return Result{}, err
	}

	if !g.guard.TryReserve(quota.ProviderLLM) {
		return Result{}, fmt.Errorf("answer: %w", quota.ErrExhausted)
	}

	input := map[string]any{
		"system":  buildSystemPrompt(trimmed.Evidence),
		"history": buildHistoryMessages(trimmed.History),
		"query":   trimmed.Query,
	}

	var text string
	err = g.policy.Do(ctx, generationRetryable, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()

		response, err := g.chain.Invoke(attemptCtx, input)
		if err != nil {
			return err
		}
		if response == nil || strings.TrimSpace(response.Content) == "" {
			return ErrEmptyResponse
		}
		text = strings.TrimSpace(response.Content)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("answer: %w", err)
	}

	log.Printf("[answer] generated response, history=%d evidence=%d length=%d",
		len(trimmed.History), len(trimmed.Evidence.Items), len(text))
	return Result{Text: text, Evidence: trimmed.Evidence.Items}, nil
}

// generationRetryable treats provider failures as transient except explicit
// cancellation and a response that parsed but carried no text.
func generationRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrEmptyResponse)
}

// fitToLimit enforces the provider input budget. Oldest history turns are
// dropped first, then evidence items from the bottom of the ranking. The
// current user message is never trimmed; if it cannot fit on its own the
// request is rejected.
func (g *Generator) fitToLimit(pctx PromptContext) (PromptContext, error) {
	limit := g.cfg.PromptCharLimit
	if limit <= 0 {
		return pctx, nil
	}

	if len(pctx.History) > g.cfg.HistoryLimit && g.cfg.HistoryLimit > 0 {
		pctx.History = pctx.History[len(pctx.History)-g.cfg.HistoryLimit:]
	}

	for promptSize(pctx) > limit && len(pctx.History) > 0 {
		pctx.History = pctx.History[1:]
	}
	for promptSize(pctx) > limit && len(pctx.Evidence.Items) > 0 {
		last := pctx.Evidence.Items[len(pctx.Evidence.Items)-1]
		pctx.Evidence.Items = pctx.Evidence.Items[:len(pctx.Evidence.Items)-1]
		pctx.Evidence.Chars -= len(last.Title) + len(last.Snippet)
	}

	if promptSize(pctx) > limit {
		return PromptContext{}, ErrPromptTooLarge
	}
	return pctx, nil
}

func promptSize(pctx PromptContext) int {
	size := len(buildSystemPrompt(pctx.Evidence)) + len(pctx.Query)
	for _, turn := range pctx.History {
		size += len(turn.Text)
	}
	return size
}

// buildSystemPrompt renders the instruction preamble plus the evidence digest
// as numbered, attributable snippets.
func buildSystemPrompt(digest evidence.Digest) string {
	if digest.Empty() {
		return ungroundedPreamble
	}

	var builder strings.Builder
	builder.WriteString(groundedPreamble)
	builder.WriteString("\n\nEvidence:\n")
	for i, item := range digest.Items {
		builder.WriteString(fmt.Sprintf("[%d] %s (%s)\n%s\n\n", i+1, item.Title, item.URL, item.Snippet))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func buildHistoryMessages(turns []conversation.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case conversation.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}
