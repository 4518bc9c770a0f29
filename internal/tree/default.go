package tree

import "portfoliogo/internal/models"

// DefaultDefinition is the built-in dialogue used when no tree config file
// is provided.
func DefaultDefinition() Definition {
	return Definition{
		Node: Node{
			ID:      RootID,
			Message: "Hi! I can walk you through this portfolio. What would you like to know?",
			Type:    NodeMultipleChoice,
			Options: []models.Option{
				{Text: "Show me the projects", Value: "projects", NextID: "projects"},
				{Text: "Skills and experience", Value: "skills", NextID: "skills"},
				{Text: "How was this site built?", Value: "site", NextID: "site"},
				{Text: "Ask me anything", Value: "ask_ai", NextID: "ask_ai"},
			},
		},
		Nodes: map[string]Node{
			"projects": {
				ID:      "projects",
				Message: "The projects section covers selected work, from backend services to this very site. Each entry lists the stack, links, and a short write-up.",
				Type:    NodeMultipleChoice,
				Options: []models.Option{
					{Text: "Tell me about the tech choices", Value: "skills", NextID: "skills"},
					{Text: "I have a specific question", Value: "ask_ai", NextID: "ask_ai"},
					{Text: "Back to the start", Value: "back", NextID: RootID},
				},
			},
			"skills": {
				ID:      "skills",
				Message: "Day to day that means Go services, SQL schemas, a bit of frontend, and the plumbing in between. The blog has deeper dives on most of it.",
				Type:    NodeMultipleChoice,
				Options: []models.Option{
					{Text: "Show me the projects", Value: "projects", NextID: "projects"},
					{Text: "I have a specific question", Value: "ask_ai", NextID: "ask_ai"},
					{Text: "Back to the start", Value: "back", NextID: RootID},
				},
			},
			"site": {
				ID:      "site",
				Message: "This site is a Go backend with a small content admin, and the widget you are talking to mixes a scripted flow with AI answers over the published content.",
				Type:    NodeMultipleChoice,
				Options: []models.Option{
					{Text: "Skills and experience", Value: "skills", NextID: "skills"},
					{Text: "I have a specific question", Value: "ask_ai", NextID: "ask_ai"},
					{Text: "Back to the start", Value: "back", NextID: RootID},
				},
			},
			"ask_ai": {
				ID:      "ask_ai",
				Message: "Sure — ask away. I'll answer from the projects and posts published here.",
				Type:    NodeAIHandoff,
			},
		},
	}
}
