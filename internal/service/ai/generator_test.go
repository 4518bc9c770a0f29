package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"portfoliogo/internal/models"
)

type stubRetriever struct {
	entries []models.KnowledgeEntry
	err     error
}

func (s *stubRetriever) Search(context.Context, string, int) ([]models.KnowledgeEntry, error) {
	return s.entries, s.err
}

// mockChatModel echoes a fixed reply and records the prompt it was given.
type mockChatModel struct {
	reply    string
	err      error
	messages []*schema.Message
}

func (m *mockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.messages = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *mockChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *mockChatModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestAnswerWithModelUsesRetrievedSnippets(t *testing.T) {
	chatModel := &mockChatModel{reply: "generated answer"}
	retriever := &stubRetriever{entries: []models.KnowledgeEntry{
		{Title: "Chat Widget", Content: "A conversational widget built in Go."},
	}}
	g := NewGenerator(chatModel, retriever, nil)

	answer := g.Answer(context.Background(), "tell me about the widget", "user: hi")
	if answer != "generated answer" {
		t.Fatalf("expected model reply, got %q", answer)
	}
	if len(chatModel.messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(chatModel.messages))
	}
	system := chatModel.messages[0].Content
	if !strings.Contains(system, "Chat Widget") {
		t.Fatalf("system prompt missing retrieved snippet: %q", system)
	}
	if !strings.Contains(system, "Recent conversation:") {
		t.Fatalf("system prompt missing conversation context: %q", system)
	}
	if chatModel.messages[1].Content != "tell me about the widget" {
		t.Fatalf("user message mismatch: %q", chatModel.messages[1].Content)
	}
}

func TestAnswerDegradesWhenModelFails(t *testing.T) {
	chatModel := &mockChatModel{err: errors.New("provider outage")}
	retriever := &stubRetriever{entries: []models.KnowledgeEntry{
		{Title: "Chat Widget", Content: "A conversational widget built in Go."},
	}}
	g := NewGenerator(chatModel, retriever, nil)

	answer := g.Answer(context.Background(), "anything", "")
	if !strings.Contains(answer, "AI generation is currently unavailable") {
		t.Fatalf("expected retrieval-only degradation, got %q", answer)
	}
}

func TestAnswerApologizesOnEmptyModelOutput(t *testing.T) {
	chatModel := &mockChatModel{reply: "   "}
	g := NewGenerator(chatModel, &stubRetriever{}, nil)
	answer := g.Answer(context.Background(), "anything", "")
	if !strings.Contains(answer, "rephrase") {
		t.Fatalf("expected apology for empty output, got %q", answer)
	}
}

func TestAnswerWithoutModelQuotesRetrievedContent(t *testing.T) {
	retriever := &stubRetriever{entries: []models.KnowledgeEntry{
		{Title: "Chat Widget", Content: "A conversational widget built in Go."},
		{Title: "Second Entry", Content: "More detail."},
		{Title: "Third Entry", Content: "Should not appear."},
	}}
	g := NewGenerator(nil, retriever, nil)

	answer := g.Answer(context.Background(), "tell me about the widget", "")
	if !strings.Contains(answer, "AI generation is currently unavailable") {
		t.Fatalf("expected unavailability disclosure, got %q", answer)
	}
	if !strings.Contains(answer, "Chat Widget") {
		t.Fatalf("expected top entry title in answer, got %q", answer)
	}
	if strings.Contains(answer, "Third Entry") {
		t.Fatalf("retrieval-only answer should quote at most two entries, got %q", answer)
	}
}

func TestAnswerWithNothingDeflects(t *testing.T) {
	g := NewGenerator(nil, &stubRetriever{}, nil)
	answer := g.Answer(context.Background(), "anything", "")
	if answer == "" {
		t.Fatalf("deflection answer must not be empty")
	}
	if !strings.Contains(answer, "projects and blog") {
		t.Fatalf("expected deflection pointing at the site, got %q", answer)
	}
}

func TestAnswerToleratesRetrievalError(t *testing.T) {
	g := NewGenerator(nil, &stubRetriever{err: errors.New("db down")}, nil)
	answer := g.Answer(context.Background(), "anything", "")
	if answer == "" {
		t.Fatalf("answer must not be empty on retrieval error")
	}
}

func TestBuildSystemPromptIncludesSnippetsAndContext(t *testing.T) {
	prompt := buildSystemPrompt("user: hi\nassistant: hello", []models.KnowledgeEntry{
		{Title: "Entry", Content: "entry body"},
	})
	if !strings.Contains(prompt, "Entry: entry body") {
		t.Fatalf("snippet missing from prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "Recent conversation:") {
		t.Fatalf("conversation context missing from prompt: %q", prompt)
	}
}

func TestTruncateCutsOnWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := truncate(long, 100)
	if len(got) > 110 {
		t.Fatalf("truncate returned %d chars", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestTruncateKeepsMultibyteRunesIntact(t *testing.T) {
	long := strings.Repeat("技術スタック", 50)
	for max := 10; max <= 20; max++ {
		got := truncate(long, max)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(max=%d) split a rune: %q", max, got)
		}
		if !strings.HasSuffix(got, "…") {
			t.Fatalf("expected ellipsis suffix, got %q", got)
		}
	}
}
