package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"portfoliogo/internal/logger"
	"portfoliogo/internal/models"
)

const (
	answerTopK        = 5
	answerMaxTokens   = 600
	answerTemperature = 0.7
	snippetMaxChars   = 400
)

// Retriever looks up knowledge entries relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]models.KnowledgeEntry, error)
}

// Generator produces free-form answers grounded in retrieved knowledge.
// Degradation is three-tiered: full RAG when a chat model is configured,
// a templated quote of the top retrieved snippets when it is not, and a
// generic deflection when retrieval also comes up empty. Answer never
// returns an error; every failure maps to a user-presentable string.
type Generator struct {
	chatModel model.ToolCallingChatModel
	retriever Retriever
	log       *logger.Logger
}

// NewGenerator builds a generator. chatModel may be nil.
func NewGenerator(chatModel model.ToolCallingChatModel, retriever Retriever, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Generator{chatModel: chatModel, retriever: retriever, log: log}
}

// Answer responds to query using retrieved knowledge and, when available,
// the generative model. conversationContext carries the recent turns as
// "role: content" lines.
func (g *Generator) Answer(ctx context.Context, query, conversationContext string) string {
	var entries []models.KnowledgeEntry
	if g.retriever != nil {
		found, err := g.retriever.Search(ctx, query, answerTopK)
		if err != nil {
			g.log.Warn("knowledge retrieval failed", "error", err)
		} else {
			entries = found
		}
	}

	if g.chatModel != nil {
		if answer, err := g.generate(ctx, query, conversationContext, entries); err != nil {
			g.log.Warn("generation failed, degrading to retrieval-only answer", "error", err)
		} else {
			return answer
		}
	}

	if len(entries) > 0 {
		return retrievalOnlyAnswer(entries)
	}
	return "I'm not able to answer that right now, but feel free to explore the projects and blog sections of the site — most questions are covered there."
}

func (g *Generator) generate(ctx context.Context, query, conversationContext string, entries []models.KnowledgeEntry) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(conversationContext, entries)),
		schema.UserMessage(query),
	}
	reply, err := g.chatModel.Generate(ctx, messages,
		model.WithTemperature(answerTemperature),
		model.WithMaxTokens(answerMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	answer := strings.TrimSpace(reply.Content)
	if answer == "" {
		return "Sorry, I couldn't come up with a good answer to that. Could you rephrase the question?", nil
	}
	return answer, nil
}

func buildSystemPrompt(conversationContext string, entries []models.KnowledgeEntry) string {
	var sb strings.Builder
	sb.WriteString("You are the assistant embedded in a personal portfolio site. ")
	sb.WriteString("Answer in a friendly, conversational tone. ")
	sb.WriteString("Only discuss the professional work, projects, and writing published on this site. ")
	sb.WriteString("If the provided context does not cover the question, say you don't know and suggest browsing the site instead of guessing.\n")

	if len(entries) > 0 {
		sb.WriteString("\nRelevant site content:\n")
		for _, entry := range entries {
			sb.WriteString("- ")
			sb.WriteString(entry.Title)
			sb.WriteString(": ")
			sb.WriteString(truncate(entry.Content, snippetMaxChars))
			sb.WriteString("\n")
		}
	}
	if conversationContext != "" {
		sb.WriteString("\nRecent conversation:\n")
		sb.WriteString(conversationContext)
		sb.WriteString("\n")
	}
	return sb.String()
}

func retrievalOnlyAnswer(entries []models.KnowledgeEntry) string {
	var sb strings.Builder
	sb.WriteString("AI generation is currently unavailable, but here's what the site has on that:\n")
	for i, entry := range entries {
		if i >= 2 {
			break
		}
		sb.WriteString("\n")
		sb.WriteString(entry.Title)
		sb.WriteString(": ")
		sb.WriteString(truncate(entry.Content, snippetMaxChars))
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multibyte rune.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > max/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
