package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"portfoliogo/internal/logger"
	"portfoliogo/internal/models"
	"portfoliogo/internal/tree"
)

// BackToTreeValue is the sentinel option value that switches the widget
// from AI mode back to the guided tree. The orchestrator recognizes it, not
// the tree engine.
const BackToTreeValue = "back_to_tree"

// contextWindow is how many recent messages feed the AI answer.
const contextWindow = 6

// ErrEmptyMessage rejects an AI-mode turn with no message text. Nothing is
// persisted when it is returned.
var ErrEmptyMessage = errors.New("message is required in ai mode")

// Answerer produces a free-form reply for a query plus recent context.
type Answerer interface {
	Answer(ctx context.Context, query, conversationContext string) string
}

// Service is the conversation orchestrator: it owns mode selection, tree
// traversal, AI generation, and message persistence for one turn.
type Service struct {
	store     *Store
	engine    *tree.Engine
	generator Answerer
	log       *logger.Logger
}

func NewService(store *Store, engine *tree.Engine, generator Answerer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, engine: engine, generator: generator, log: log}
}

// TurnRequest is one client turn. Exactly one of the tree fields
// (CurrentNodeID/UserChoice) or Message is meaningful depending on Mode.
type TurnRequest struct {
	ConversationID int64
	SessionID      string
	Context        string
	Mode           Mode
	Message        string
	CurrentNodeID  string
	UserChoice     string
}

// TurnResponse is the unified turn envelope.
type TurnResponse struct {
	Message        string
	Options        []models.Option
	ConversationID int64
	MessageID      int64
	Mode           Mode
	NextNodeID     string
}

// HandleTurn runs one request/response cycle of the conversation protocol.
// Every turn persists exactly one assistant message; AI turns additionally
// persist the visitor's message first. Unknown conversation ids are
// recreated rather than rejected, so a stale widget session starts over
// instead of failing.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if req.Mode == ModeAI && req.UserChoice != BackToTreeValue && strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}

	conv, history, err := s.loadOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case ModeAI:
		if req.UserChoice == BackToTreeValue {
			return s.resumeTree(ctx, conv)
		}
		return s.aiTurn(ctx, conv, history, strings.TrimSpace(req.Message))
	default:
		return s.treeTurn(ctx, conv, req)
	}
}

func (s *Service) loadOrCreate(ctx context.Context, req TurnRequest) (*models.Conversation, []*models.Message, error) {
	if req.ConversationID > 0 {
		conv, history, err := s.store.GetConversation(ctx, req.ConversationID)
		if err == nil {
			return conv, history, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		s.log.Warn("unknown conversation id, starting a new conversation", "conversation_id", req.ConversationID)
	} else if req.SessionID != "" {
		conv, history, err := s.store.FindBySession(ctx, req.SessionID)
		if err == nil {
			return conv, history, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
	}
	conv, err := s.store.CreateConversation(ctx, req.SessionID, req.Context)
	if err != nil {
		return nil, nil, err
	}
	return conv, nil, nil
}

func (s *Service) treeTurn(ctx context.Context, conv *models.Conversation, req TurnRequest) (*TurnResponse, error) {
	if req.CurrentNodeID == "" && req.UserChoice == "" {
		start := s.engine.StartingNode()
		return s.persistAssistantTurn(ctx, conv, start.Message, start.Options, ModeTree, tree.RootID)
	}

	currentNodeID := req.CurrentNodeID
	if currentNodeID == "" {
		currentNodeID = tree.RootID
	}
	result := s.engine.ProcessChoice(currentNodeID, req.UserChoice)
	if result.HandoffToAI {
		// The next request should arrive in AI mode; no node pointer remains.
		return s.persistAssistantTurn(ctx, conv, result.Message, []models.Option{}, ModeAI, "")
	}
	return s.persistAssistantTurn(ctx, conv, result.Message, result.Options, ModeTree, result.NextNodeID)
}

func (s *Service) resumeTree(ctx context.Context, conv *models.Conversation) (*TurnResponse, error) {
	start := s.engine.StartingNode()
	return s.persistAssistantTurn(ctx, conv, start.Message, start.Options, ModeTree, tree.RootID)
}

func (s *Service) aiTurn(ctx context.Context, conv *models.Conversation, history []*models.Message, message string) (*TurnResponse, error) {
	userMsg, err := s.store.AppendMessage(ctx, conv.ID, models.RoleUser, message, models.KindText, nil)
	if err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}
	history = append(history, userMsg)

	answer := s.generator.Answer(ctx, message, buildContext(history))
	options := []models.Option{backToTreeOption()}

	metadata := &models.MessageMetadata{Mode: ModeAI.String(), Options: options}
	assistantMsg, err := s.store.AppendMessage(ctx, conv.ID, models.RoleAssistant, answer, models.KindText, metadata)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	return &TurnResponse{
		Message:        answer,
		Options:        options,
		ConversationID: conv.ID,
		MessageID:      assistantMsg.ID,
		Mode:           ModeAI,
	}, nil
}

func (s *Service) persistAssistantTurn(ctx context.Context, conv *models.Conversation, message string, options []models.Option, mode Mode, nextNodeID string) (*TurnResponse, error) {
	metadata := &models.MessageMetadata{
		Mode:       mode.String(),
		Options:    options,
		NextNodeID: nextNodeID,
	}
	msg, err := s.store.AppendMessage(ctx, conv.ID, models.RoleAssistant, message, models.KindDecisionTree, metadata)
	if err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	return &TurnResponse{
		Message:        message,
		Options:        options,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Mode:           mode,
		NextNodeID:     nextNodeID,
	}, nil
}

// buildContext joins the most recent messages, oldest first, as
// "role: content" lines.
func buildContext(history []*models.Message) string {
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func backToTreeOption() models.Option {
	return models.Option{
		Text:   "Return to guided conversation",
		Value:  BackToTreeValue,
		Action: "switch_mode",
		Mode:   ModeTree.String(),
	}
}
