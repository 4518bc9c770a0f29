package tree

import (
	"testing"

	"portfoliogo/internal/models"
)

func TestStartingNode(t *testing.T) {
	engine := NewEngine(DefaultDefinition())
	start := engine.StartingNode()
	if start.ID != RootID {
		t.Fatalf("expected root id %q, got %q", RootID, start.ID)
	}
	if start.Message == "" {
		t.Fatalf("expected a welcome message")
	}
	if len(start.Options) == 0 {
		t.Fatalf("expected root options")
	}
}

func TestProcessChoiceWalksEveryOption(t *testing.T) {
	def := DefaultDefinition()
	engine := NewEngine(def)

	check := func(nodeID string, options []models.Option) {
		for _, opt := range options {
			result := engine.ProcessChoice(nodeID, opt.Value)
			if result.Message == "" {
				t.Fatalf("node %q option %q produced empty message", nodeID, opt.Value)
			}
			if result.HandoffToAI {
				if len(result.Options) != 0 {
					t.Fatalf("node %q option %q: handoff result must carry no options", nodeID, opt.Value)
				}
				if result.NextNodeID != "" {
					t.Fatalf("node %q option %q: handoff result must carry no next node", nodeID, opt.Value)
				}
				continue
			}
			if result.NextNodeID != opt.NextID {
				t.Fatalf("node %q option %q: expected next %q, got %q", nodeID, opt.Value, opt.NextID, result.NextNodeID)
			}
		}
	}

	check(RootID, def.Node.Options)
	for id, node := range def.Nodes {
		check(id, node.Options)
	}
}

func TestProcessChoiceUnknownNodeResetsToRoot(t *testing.T) {
	engine := NewEngine(DefaultDefinition())
	result := engine.ProcessChoice("does_not_exist", "projects")
	if result.NextNodeID != RootID {
		t.Fatalf("expected reset to root, got %q", result.NextNodeID)
	}
	if result.HandoffToAI {
		t.Fatalf("reset must stay in tree mode")
	}
	if len(result.Options) == 0 {
		t.Fatalf("reset must offer the root options")
	}
}

func TestProcessChoiceUnknownValueResetsToRoot(t *testing.T) {
	engine := NewEngine(DefaultDefinition())
	result := engine.ProcessChoice(RootID, "nonsense")
	if result.NextNodeID != RootID {
		t.Fatalf("expected reset to root, got %q", result.NextNodeID)
	}
}

func TestProcessChoiceDanglingTargetResetsToRoot(t *testing.T) {
	def := Definition{
		Node: Node{
			ID:      RootID,
			Message: "hello",
			Type:    NodeMultipleChoice,
			Options: []models.Option{
				{Text: "Broken", Value: "broken", NextID: "missing"},
			},
		},
		Nodes: map[string]Node{},
	}
	engine := NewEngine(def)
	result := engine.ProcessChoice(RootID, "broken")
	if result.NextNodeID != RootID {
		t.Fatalf("expected reset to root, got %q", result.NextNodeID)
	}
	if result.Message != "hello" {
		t.Fatalf("expected root message, got %q", result.Message)
	}
}

func TestProcessChoiceHandoff(t *testing.T) {
	engine := NewEngine(DefaultDefinition())
	result := engine.ProcessChoice(RootID, "ask_ai")
	if !result.HandoffToAI {
		t.Fatalf("expected handoff")
	}
	if result.Message == "" {
		t.Fatalf("handoff should still carry a message")
	}
	if len(result.Options) != 0 || result.NextNodeID != "" {
		t.Fatalf("handoff must carry no options and no next node")
	}
}

func TestDefaultDefinitionValidates(t *testing.T) {
	if err := DefaultDefinition().Validate(); err != nil {
		t.Fatalf("default definition invalid: %v", err)
	}
}

func TestValidateRejectsDanglingOption(t *testing.T) {
	def := Definition{
		Node: Node{
			ID:      RootID,
			Message: "hi",
			Type:    NodeMultipleChoice,
			Options: []models.Option{{Text: "x", Value: "x", NextID: "nowhere"}},
		},
		Nodes: map[string]Node{},
	}
	if err := def.Validate(); err == nil {
		t.Fatalf("expected validation error for dangling option target")
	}
}
