package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/normanking/wisp/internal/brain"
	"github.com/normanking/wisp/internal/emotion"
	"github.com/normanking/wisp/internal/logging"
	"github.com/normanking/wisp/internal/memory"
	"github.com/normanking/wisp/internal/metrics"
	"github.com/normanking/wisp/internal/prompt"
)

// Streamer is the slice of the chat client the chat path needs.
type Streamer interface {
	StreamChat(ctx context.Context, systemPrompt, userText string, history []brain.ChatTurn, onPartial brain.PartialFunc) (string, emotion.Tag, error)
}

// ChatConfig wires the interactive chat service.
type ChatConfig struct {
	Client          Streamer
	Memory          memory.Store
	Machine         *emotion.Machine
	Cooldown        *emotion.Cooldown
	Logger          *logging.Logger
	PersonalityHint string
	MaxMemories     int
	// Conversation window bounds.
	MaxTurns      int
	CompressAbove int
	KeepRecent    int
}

// ChatService handles user-initiated conversation. Each submission runs
// on its own cancelable invocation; a new submission cancels any
// in-flight response for the previous one.
type ChatService struct {
	cfg  ChatConfig
	conv *brain.Conversation

	mu       sync.Mutex
	inFlight context.CancelFunc
	now      func() time.Time
}

// NewChatService creates the chat service.
func NewChatService(cfg ChatConfig) *ChatService {
	if cfg.MaxMemories <= 0 {
		cfg.MaxMemories = 5
	}

	s := &ChatService{cfg: cfg, now: time.Now}
	s.conv = brain.NewConversation(cfg.MaxTurns, cfg.CompressAbove, cfg.KeepRecent, func(digest string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cfg.Memory.AddLearningSummary(ctx, digest, "conversation"); err != nil {
			cfg.Logger.Warn("chat", "Failed to store conversation summary", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
	return s
}

// Send submits user text and returns the companion's reply. Partial
// reply text streams through onPartial as it forms.
func (s *ChatService) Send(ctx context.Context, userText string, onPartial brain.PartialFunc) (string, emotion.Tag, error) {
	ctx = s.takeOver(ctx)

	memories := s.relevantMemories(ctx, userText)
	system := prompt.Chat(prompt.Input{
		Mood:            s.cfg.Machine.Current(),
		Memories:        memories,
		TimeOfDay:       prompt.TimeOfDay(s.now().Hour()),
		PersonalityHint: s.cfg.PersonalityHint,
	})

	reply, emo, err := s.cfg.Client.StreamChat(ctx, system, userText, s.conv.Turns(), onPartial)
	if err != nil {
		return "", emotion.TagNeutral, err
	}

	s.conv.Append(brain.RoleUser, userText)
	s.conv.Append(brain.RoleAssistant, reply)
	s.cfg.Machine.Set(emo)
	s.cfg.Cooldown.RecordSpoke()

	s.learnFrom(userText)
	return reply, emo, nil
}

// Reset drops the conversation window.
func (s *ChatService) Reset() {
	s.conv.Reset()
}

// takeOver cancels any in-flight invocation and registers this one.
func (s *ChatService) takeOver(parent context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != nil {
		s.inFlight()
	}
	ctx, cancel := context.WithCancel(parent)
	s.inFlight = cancel
	return ctx
}

func (s *ChatService) relevantMemories(ctx context.Context, userText string) []string {
	entries, err := s.cfg.Memory.GetRelevant(ctx, userText, s.cfg.MaxMemories)
	if err != nil {
		s.cfg.Logger.Warn("chat", "Memory recall failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}

// learnFrom runs heuristic fact extraction over the user's text and
// stores anything worth keeping.
func (s *ChatService) learnFrom(userText string) {
	facts := memory.ExtractFacts(userText, "chat")
	if len(facts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := range facts {
		if err := s.cfg.Memory.AddOrUpdate(ctx, &facts[i]); err != nil {
			s.cfg.Logger.Warn("chat", "Failed to store extracted fact", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		metrics.MemoryOperations.Inc()
	}
}
