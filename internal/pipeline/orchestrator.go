package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/junyuhe/scholarbot/backend/internal/model/conversation"
	"github.com/junyuhe/scholarbot/backend/internal/model/evidence"
	"github.com/junyuhe/scholarbot/backend/internal/quota"
	"github.com/junyuhe/scholarbot/backend/internal/service/answer"
	"github.com/junyuhe/scholarbot/backend/internal/store"
)

// SearchGateway is the outbound search dependency.
type SearchGateway interface {
	Search(ctx context.Context, query string) ([]evidence.Item, error)
}

// AnswerGenerator is the outbound LLM dependency.
type AnswerGenerator interface {
	Generate(ctx context.Context, pctx answer.PromptContext) (answer.Result, error)
}

// Config carries the orchestration policy knobs. Zero-value cue lists fall
// back to the built-in defaults.
type Config struct {
	EvidenceBudget int
	HistoryLimit   int
	Interrogatives []string
	RecencyCues    []string
}

// Result is the outcome of one answered message.
type Result struct {
	ConversationID string
	Answer         string
	Evidence       []evidence.Item
	Grounded       bool
	Turn           conversation.Turn
}

// Orchestrator sequences the answering pipeline: search decision, evidence
// gathering, grounded generation, and conversation persistence.
type Orchestrator struct {
	store     store.Store
	gateway   SearchGateway
	generator AnswerGenerator
	cfg       Config
}

// New wires the orchestrator. gateway may be nil when no search provider is
// configured; every message is then answered ungrounded.
func New(st store.Store, gateway SearchGateway, generator AnswerGenerator, cfg Config) *Orchestrator {
	if cfg.EvidenceBudget <= 0 {
		cfg.EvidenceBudget = 4000
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if len(cfg.Interrogatives) == 0 {
		cfg.Interrogatives = defaultInterrogatives
	}
	if len(cfg.RecencyCues) == 0 {
		cfg.RecencyCues = defaultRecencyCues
	}
	return &Orchestrator{store: st, gateway: gateway, generator: generator, cfg: cfg}
}

// Answer handles one incoming user message. The user turn is persisted before
// generation, so a downstream failure leaves the conversation ready for a
// cheap retry without duplicate submission.
func (o *Orchestrator) Answer(ctx context.Context, conversationID, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, newError(KindValidation, "empty_message", nil)
	}
	if o.generator == nil {
		return Result{}, newError(KindProvider, "generator_unavailable", nil)
	}

	if strings.TrimSpace(conversationID) == "" {
		conversationID = uuid.NewString()
	}

	conv, err := o.store.Load(ctx, conversationID)
	if err != nil {
		return Result{}, newError(KindInternal, "load_conversation", err)
	}
	history := conv.ContextWindow(o.cfg.HistoryLimit)

	userTurn := conversation.Turn{
		ID:        uuid.NewString(),
		Role:      conversation.RoleUser,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Append(ctx, conversationID, userTurn); err != nil {
		return Result{}, newError(KindInternal, "append_user_turn", err)
	}

	digest := o.gatherEvidence(ctx, text)

	generated, err := o.generator.Generate(ctx, answer.PromptContext{
		History:  history,
		Evidence: digest,
		Query:    text,
	})
	if err != nil {
		return Result{}, classifyGenerationError(err)
	}

	assistantTurn := conversation.Turn{
		ID:        uuid.NewString(),
		Role:      conversation.RoleAssistant,
		Text:      generated.Text,
		Evidence:  toSources(generated.Evidence),
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Append(ctx, conversationID, assistantTurn); err != nil {
		return Result{}, newError(KindInternal, "append_assistant_turn", err)
	}

	return Result{
		ConversationID: conversationID,
		Answer:         generated.Text,
		Evidence:       generated.Evidence,
		Grounded:       len(generated.Evidence) > 0,
		Turn:           assistantTurn,
	}, nil
}

// History returns the persisted transcript for a conversation. Unknown ids
// yield an empty conversation, never an error.
func (o *Orchestrator) History(ctx context.Context, conversationID string) (conversation.Conversation, error) {
	conv, err := o.store.Load(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, newError(KindInternal, "load_conversation", err)
	}
	return conv, nil
}

// gatherEvidence runs the search leg when the message warrants it. Search
// failure of any kind degrades to an empty digest; the user is never blocked
// on a broken or exhausted search provider.
func (o *Orchestrator) gatherEvidence(ctx context.Context, text string) evidence.Digest {
	if o.gateway == nil || !o.searchWorthy(text) {
		return evidence.Digest{}
	}

	items, err := o.gateway.Search(ctx, text)
	if err != nil {
		if errors.Is(err, quota.ErrExhausted) {
			log.Printf("[pipeline] search quota exhausted, answering ungrounded")
		} else {
			log.Printf("[pipeline] search failed, answering ungrounded: %v", err)
		}
		return evidence.Digest{}
	}

	return evidence.Condense(items, o.cfg.EvidenceBudget)
}

func classifyGenerationError(err error) *Error {
	switch {
	case errors.Is(err, answer.ErrPromptTooLarge):
		return newError(KindValidation, "message_too_long", err)
	case errors.Is(err, quota.ErrExhausted):
		return newError(KindQuotaExceeded, "llm_quota_exhausted", err)
	default:
		return newError(KindProvider, "generation_failed", err)
	}
}

func toSources(items []evidence.Item) []conversation.Source {
	if len(items) == 0 {
		return nil
	}
	sources := make([]conversation.Source, 0, len(items))
	for _, item := range items {
		sources = append(sources, conversation.Source{Title: item.Title, URL: item.URL})
	}
	return sources
}
