// Package models holds the data model shared by the loader, the graph
// builder, the engine and the persistence layer.
package models

// Metadata identifies a workflow definition.
type Metadata struct {
	Name        string `json:"name"                  yaml:"name"        validate:"required,min=3"`
	Description string `json:"description,omitempty" yaml:"description"`
	Version     string `json:"version,omitempty"     yaml:"version"`
}

// WorkflowDefinition is a fully decoded workflow document: metadata, declared
// variables, the node list and the entry node. It is immutable once validated;
// runs carry their own copy inside the execution state.
type WorkflowDefinition struct {
	Metadata  Metadata        `json:"metadata"            yaml:"metadata"   validate:"required"`
	Variables map[string]any  `json:"variables,omitempty" yaml:"variables"`
	EntryNode string          `json:"entry_node"          yaml:"entry_node" validate:"required"`
	Nodes     []*WorkflowNode `json:"nodes"               yaml:"nodes"      validate:"required,min=1,dive"`
}

// NodeByID returns the top-level node with the given id.
func (d *WorkflowDefinition) NodeByID(id string) (*WorkflowNode, bool) {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}
