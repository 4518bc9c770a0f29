package tree

import "portfoliogo/internal/models"

// Engine walks a static dialogue tree. It never returns an error: any bad
// navigation state (unknown node, unknown choice, dangling target) resets
// the flow to the root node.
type Engine struct {
	def Definition
}

// NewEngine wraps an already-loaded definition.
func NewEngine(def Definition) *Engine {
	return &Engine{def: def}
}

// ChoiceResult is the outcome of one tree step. When HandoffToAI is set the
// options are empty and NextNodeID is blank; the caller must switch modes.
type ChoiceResult struct {
	Message     string
	Options     []models.Option
	NextNodeID  string
	HandoffToAI bool
}

// StartingNode returns the root node.
func (e *Engine) StartingNode() Node {
	root := e.def.Node
	root.ID = RootID
	return root
}

// ProcessChoice resolves the current node, matches the chosen option value,
// and steps to the option's target node.
func (e *Engine) ProcessChoice(currentNodeID, chosenValue string) ChoiceResult {
	current, ok := e.lookup(currentNodeID)
	if !ok {
		return e.reset()
	}

	var matched *models.Option
	for i := range current.Options {
		if current.Options[i].Value == chosenValue {
			matched = &current.Options[i]
			break
		}
	}
	if matched == nil {
		return e.reset()
	}

	target, ok := e.lookup(matched.NextID)
	if !ok {
		return e.reset()
	}

	if target.Type == NodeAIHandoff {
		return ChoiceResult{
			Message:     target.Message,
			Options:     []models.Option{},
			HandoffToAI: true,
		}
	}

	return ChoiceResult{
		Message:    target.Message,
		Options:    target.Options,
		NextNodeID: target.ID,
	}
}

// lookup resolves a node identifier. RootID maps to the root, which is
// stored apart from the keyed nodes.
func (e *Engine) lookup(id string) (Node, bool) {
	if id == RootID {
		return e.StartingNode(), true
	}
	node, ok := e.def.Nodes[id]
	if !ok {
		return Node{}, false
	}
	if node.ID == "" {
		node.ID = id
	}
	return node, true
}

func (e *Engine) reset() ChoiceResult {
	root := e.StartingNode()
	return ChoiceResult{
		Message:    root.Message,
		Options:    root.Options,
		NextNodeID: RootID,
	}
}
