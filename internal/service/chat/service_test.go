package chat

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"portfoliogo/internal/knowledge"
	"portfoliogo/internal/models"
	"portfoliogo/internal/service/ai"
	"portfoliogo/internal/storage"
	"portfoliogo/internal/tree"
)

type stubAnswerer struct {
	answer    string
	lastQuery string
	lastCtx   string
	calls     int
}

func (s *stubAnswerer) Answer(_ context.Context, query, conversationContext string) string {
	s.calls++
	s.lastQuery = query
	s.lastCtx = conversationContext
	if s.answer == "" {
		return "stub answer"
	}
	return s.answer
}

func newTestService(t *testing.T) (*Service, *Store, *stubAnswerer, *sql.DB) {
	t.Helper()
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	store := NewStore(db)
	answerer := &stubAnswerer{}
	svc := NewService(store, tree.NewEngine(tree.DefaultDefinition()), answerer, nil)
	return svc, store, answerer, db
}

func countMessages(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	return n
}

func TestFirstTurnReturnsWelcome(t *testing.T) {
	svc, _, _, db := newTestService(t)
	defer db.Close()

	resp, err := svc.HandleTurn(context.Background(), TurnRequest{})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.NextNodeID != tree.RootID {
		t.Fatalf("expected root node, got %q", resp.NextNodeID)
	}
	if resp.Mode != ModeTree {
		t.Fatalf("expected tree mode")
	}
	if len(resp.Options) == 0 {
		t.Fatalf("expected welcome options")
	}
	if resp.ConversationID == 0 || resp.MessageID == 0 {
		t.Fatalf("expected persisted conversation and message ids")
	}
	if countMessages(t, db) != 1 {
		t.Fatalf("a tree turn must persist exactly one assistant message")
	}
}

func TestTreeChoiceAdvances(t *testing.T) {
	svc, _, _, db := newTestService(t)
	defer db.Close()
	ctx := context.Background()

	first, err := svc.HandleTurn(ctx, TurnRequest{})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	second, err := svc.HandleTurn(ctx, TurnRequest{
		ConversationID: first.ConversationID,
		CurrentNodeID:  first.NextNodeID,
		UserChoice:     "projects",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if second.NextNodeID != "projects" {
		t.Fatalf("expected projects node, got %q", second.NextNodeID)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("conversation id changed across turns")
	}
	// Tree choices persist no user message.
	if countMessages(t, db) != 2 {
		t.Fatalf("expected 2 assistant messages, got %d", countMessages(t, db))
	}
}

func TestHandoffSwitchesToAIMode(t *testing.T) {
	svc, _, _, db := newTestService(t)
	defer db.Close()

	resp, err := svc.HandleTurn(context.Background(), TurnRequest{
		CurrentNodeID: tree.RootID,
		UserChoice:    "ask_ai",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.Mode != ModeAI {
		t.Fatalf("expected AI mode after handoff")
	}
	if resp.NextNodeID != "" {
		t.Fatalf("handoff must clear the node pointer, got %q", resp.NextNodeID)
	}
	if len(resp.Options) != 0 {
		t.Fatalf("handoff response must carry no options")
	}
}

func TestAITurnPersistsUserAndAssistant(t *testing.T) {
	svc, store, answerer, db := newTestService(t)
	defer db.Close()
	ctx := context.Background()

	resp, err := svc.HandleTurn(ctx, TurnRequest{Mode: ModeAI, Message: "what stack is this?"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.Message != "stub answer" {
		t.Fatalf("expected generator answer, got %q", resp.Message)
	}
	if answerer.calls != 1 || answerer.lastQuery != "what stack is this?" {
		t.Fatalf("generator not invoked with query: %+v", answerer)
	}
	if len(resp.Options) != 1 || resp.Options[0].Value != BackToTreeValue {
		t.Fatalf("expected single back-to-tree option, got %+v", resp.Options)
	}

	_, history, err := store.GetConversation(ctx, resp.ConversationID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected message order: %s then %s", history[0].Role, history[1].Role)
	}
}

func TestAIContextWindowIsRecentSix(t *testing.T) {
	svc, _, answerer, db := newTestService(t)
	defer db.Close()
	ctx := context.Background()

	resp, err := svc.HandleTurn(ctx, TurnRequest{Mode: ModeAI, Message: "first"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := svc.HandleTurn(ctx, TurnRequest{
			ConversationID: resp.ConversationID,
			Mode:           ModeAI,
			Message:        "again",
		}); err != nil {
			t.Fatalf("HandleTurn: %v", err)
		}
	}
	lines := strings.Split(answerer.lastCtx, "\n")
	if len(lines) != contextWindow {
		t.Fatalf("expected %d context lines, got %d: %q", contextWindow, len(lines), answerer.lastCtx)
	}
	if !strings.HasPrefix(lines[len(lines)-1], "user: ") {
		t.Fatalf("context must end with the newest user message, got %q", lines[len(lines)-1])
	}
}

func TestEmptyAIMessagePersistsNothing(t *testing.T) {
	svc, _, answerer, db := newTestService(t)
	defer db.Close()

	_, err := svc.HandleTurn(context.Background(), TurnRequest{Mode: ModeAI, Message: "   "})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if answerer.calls != 0 {
		t.Fatalf("generator must not run on invalid input")
	}
	var convCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convCount); err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if convCount != 0 || countMessages(t, db) != 0 {
		t.Fatalf("validation failure must persist nothing")
	}
}

func TestBackToTreeResumesAtRoot(t *testing.T) {
	svc, _, answerer, db := newTestService(t)
	defer db.Close()
	ctx := context.Background()

	resp, err := svc.HandleTurn(ctx, TurnRequest{Mode: ModeAI, Message: "hello"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	back, err := svc.HandleTurn(ctx, TurnRequest{
		ConversationID: resp.ConversationID,
		Mode:           ModeAI,
		UserChoice:     BackToTreeValue,
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if back.Mode != ModeTree || back.NextNodeID != tree.RootID {
		t.Fatalf("expected reset to tree root, got mode=%v node=%q", back.Mode, back.NextNodeID)
	}
	if answerer.calls != 1 {
		t.Fatalf("back-to-tree must not invoke the generator")
	}
}

func TestUnknownConversationIDStartsFresh(t *testing.T) {
	svc, _, _, db := newTestService(t)
	defer db.Close()

	resp, err := svc.HandleTurn(context.Background(), TurnRequest{ConversationID: 9999})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.ConversationID == 9999 || resp.ConversationID == 0 {
		t.Fatalf("expected a freshly created conversation, got id %d", resp.ConversationID)
	}
}

func TestSessionIDReusesConversation(t *testing.T) {
	svc, _, _, db := newTestService(t)
	defer db.Close()
	ctx := context.Background()

	first, err := svc.HandleTurn(ctx, TurnRequest{SessionID: "widget-abc"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	second, err := svc.HandleTurn(ctx, TurnRequest{
		SessionID:     "widget-abc",
		CurrentNodeID: tree.RootID,
		UserChoice:    "skills",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("same session must reuse the conversation")
	}
}

func TestInvalidChoiceResetsToRoot(t *testing.T) {
	svc, _, _, db := newTestService(t)
	defer db.Close()

	resp, err := svc.HandleTurn(context.Background(), TurnRequest{
		CurrentNodeID: "projects",
		UserChoice:    "not_an_option",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if resp.NextNodeID != tree.RootID {
		t.Fatalf("expected self-heal to root, got %q", resp.NextNodeID)
	}
}

type emptyContent struct{}

func (emptyContent) ListPublishedProjects(context.Context) ([]models.Project, error) {
	return nil, nil
}

func (emptyContent) ListPublishedPosts(context.Context) ([]models.Post, error) {
	return nil, nil
}

// A technology question with no chat model configured must come back quoting
// the skills entry from the knowledge base, with the mode-switch option.
func TestAITurnWithoutProviderQuotesKnowledgeBase(t *testing.T) {
	db, err := storage.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	ctx := context.Background()

	knowledgeStore := knowledge.NewStore(db, nil, nil)
	if err := knowledgeStore.Rebuild(ctx, emptyContent{}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	generator := ai.NewGenerator(nil, knowledgeStore, nil)
	svc := NewService(NewStore(db), tree.NewEngine(tree.DefaultDefinition()), generator, nil)

	resp, err := svc.HandleTurn(ctx, TurnRequest{
		Mode:    ModeAI,
		Message: "What technologies do you use?",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if !strings.Contains(resp.Message, "Technical Skills Overview") {
		t.Fatalf("expected the skills entry in the answer, got %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Go backend services") {
		t.Fatalf("expected skills entry wording in the answer, got %q", resp.Message)
	}
	if len(resp.Options) != 1 || resp.Options[0].Value != BackToTreeValue {
		t.Fatalf("expected back-to-tree option, got %+v", resp.Options)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeTree {
		t.Fatalf("empty mode must default to tree")
	}
	if m, err := ParseMode("ai"); err != nil || m != ModeAI {
		t.Fatalf("ai mode parse failed")
	}
	if _, err := ParseMode("hybrid"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
