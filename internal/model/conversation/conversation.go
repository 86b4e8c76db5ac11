package conversation

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message within a conversation. Immutable once appended.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Evidence  []Source  `json:"evidence,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Source records a piece of evidence an assistant turn was grounded on.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Conversation is the ordered transcript for one session.
type Conversation struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`
}

// Empty reports whether the conversation has no persisted turns.
func (c Conversation) Empty() bool {
	return len(c.Turns) == 0
}

// ContextWindow returns at most limit recent turns suitable for prompting.
// A user turn immediately followed by another user turn was never answered;
// such abandoned turns are excluded so the history keeps strict user/assistant
// alternation.
func (c Conversation) ContextWindow(limit int) []Turn {
	if limit <= 0 || len(c.Turns) == 0 {
		return nil
	}

	kept := make([]Turn, 0, len(c.Turns))
	for i, turn := range c.Turns {
		if turn.Role == RoleUser {
			if i+1 >= len(c.Turns) || c.Turns[i+1].Role == RoleUser {
				continue
			}
		}
		kept = append(kept, turn)
	}

	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	// Never open the window with a dangling assistant turn.
	if len(kept) > 0 && kept[0].Role == RoleAssistant {
		kept = kept[1:]
	}
	return kept
}
