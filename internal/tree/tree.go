package tree

import (
	"encoding/json"
	"fmt"
	"os"

	"portfoliogo/internal/models"
)

// RootID is the synthetic identifier of the starting node. It always
// resolves to the root regardless of the nodes map contents.
const RootID = "welcome"

type NodeKind string

const (
	NodeMultipleChoice NodeKind = "multiple_choice"
	NodeAIHandoff      NodeKind = "ai_handoff"
)

// Node is one prompt in the scripted dialogue graph. Options keep their
// listed order; matching is first-match-wins.
type Node struct {
	ID      string          `json:"id"`
	Message string          `json:"message"`
	Type    NodeKind        `json:"type"`
	Options []models.Option `json:"options"`
}

// Definition is the static tree configuration: the root node inline plus a
// mapping of all other nodes by identifier. Loaded once, immutable after.
type Definition struct {
	Node
	Nodes map[string]Node `json:"nodes"`
}

// Load reads a tree definition from a JSON file.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read tree config: %w", err)
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("decode tree config: %w", err)
	}
	if def.Message == "" {
		return Definition{}, fmt.Errorf("tree config missing root message")
	}
	return def, nil
}

// Validate reports option targets that resolve to no node. The engine
// self-heals at runtime either way; this exists so operators can catch
// configuration mistakes at startup.
func (d Definition) Validate() error {
	check := func(owner string, opts []models.Option) error {
		for _, opt := range opts {
			if opt.NextID == RootID {
				continue
			}
			if _, ok := d.Nodes[opt.NextID]; !ok {
				return fmt.Errorf("node %s option %q targets unknown node %q", owner, opt.Value, opt.NextID)
			}
		}
		return nil
	}
	if err := check(RootID, d.Options); err != nil {
		return err
	}
	for id, node := range d.Nodes {
		if err := check(id, node.Options); err != nil {
			return err
		}
	}
	return nil
}
