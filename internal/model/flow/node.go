package flow

import "encoding/json"

// NodeType 标识流程节点的类型。
type NodeType string

const (
	TypeOpenEnded      NodeType = "open-ended"
	TypeYesNo          NodeType = "yes_no"
	TypeMultipleChoice NodeType = "multiple_choice"
	TypeFunction       NodeType = "function"
	TypeEnd            NodeType = "end"
)

// Meta carries authoring hints attached to a node. Specialty is consumed as a
// side effect during traversal, never as a transition.
type Meta struct {
	Specialty string `json:"specialty"`
}

// Node is one step in the dialogue graph. Which fields are meaningful depends
// on Type; authors only set the subset their node type reads.
type Node struct {
	Type     NodeType `json:"type"`
	Question string   `json:"question"`

	// Next is the linear transition used by open-ended nodes.
	Next string `json:"-"`
	// Choices is the per-token transition table used by multiple_choice
	// nodes. Next and Choices share the "next" key in flow JSON.
	Choices map[string]string `json:"-"`

	NextIfYes string `json:"nextIfYes"`
	NextIfNo  string `json:"nextIfNo"`

	Options      []string          `json:"options"`
	OptionLabels map[string]string `json:"optionLabels"`

	Handler string `json:"handler"`
	Meta    Meta   `json:"meta"`
}

// UnmarshalJSON decodes a node, resolving the polymorphic "next" field: a
// plain string for linear nodes, an object keyed by option token for
// multiple_choice nodes.
func (n *Node) UnmarshalJSON(data []byte) error {
	type alias Node
	aux := struct {
		*alias
		Next json.RawMessage `json:"next"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.Next) == 0 {
		return nil
	}

	var linear string
	if err := json.Unmarshal(aux.Next, &linear); err == nil {
		n.Next = linear
		return nil
	}

	choices := make(map[string]string)
	if err := json.Unmarshal(aux.Next, &choices); err != nil {
		return err
	}
	n.Choices = choices
	return nil
}
