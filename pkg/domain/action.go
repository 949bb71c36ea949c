package domain

// ActionType tags an Action. The values match the wire names used in the
// action envelope.
type ActionType string

const (
	ActionUpsertNodeConfiguration ActionType = "UPDATE_CONFIGURATION"
	ActionInitializeNode          ActionType = "INITIALIZE_NODE"
	ActionSetTestResult           ActionType = "SET_TEST_RESULT"
	ActionAddValidationError      ActionType = "ADD_VALIDATION_ERROR"
	ActionClearValidationErrors   ActionType = "CLEAR_VALIDATION_ERRORS"
	ActionAddConnection           ActionType = "ADD_CONNECTION"
	ActionRemoveConnection        ActionType = "REMOVE_CONNECTION"
	ActionRemoveNode              ActionType = "REMOVE_NODE"
	ActionClearAll                ActionType = "CLEAR_ALL_NODES"
)

// Action is a single state transition request. The set of actions is closed.
type Action interface {
	Type() ActionType
	isAction()
}

// UpsertNodeConfiguration merges Patch into the node, creating it when absent.
type UpsertNodeConfiguration struct {
	NodeID string      `json:"nodeId"`
	Patch  ConfigPatch `json:"config"`
}

// InitializeNode replaces the node configuration with kind defaults.
type InitializeNode struct {
	NodeID    string        `json:"nodeId"`
	Kind      NodeKind      `json:"kind"`
	Request   *RequestSpec  `json:"request,omitempty"`
	Operation OperationType `json:"operation,omitempty"`
	Label     string        `json:"label,omitempty"`
}

// SetTestResult stores the result of a run.
type SetTestResult struct {
	NodeID string     `json:"nodeId"`
	Result TestResult `json:"result"`
}

// AddValidationError appends an issue to the node's list.
type AddValidationError struct {
	NodeID string          `json:"nodeId"`
	Error  ValidationError `json:"error"`
}

// ClearValidationErrors drops every issue of the node.
type ClearValidationErrors struct {
	NodeID string `json:"nodeId"`
}

// AddConnection adds an edge.
type AddConnection struct {
	Connection Connection `json:"connection"`
}

// RemoveConnection removes every edge between the two nodes.
type RemoveConnection struct {
	SourceNodeID string `json:"sourceNodeId"`
	TargetNodeID string `json:"targetNodeId"`
}

// RemoveNode deletes a node and every edge touching it.
type RemoveNode struct {
	NodeID string `json:"nodeId"`
}

// ClearAll resets the graph.
type ClearAll struct{}

func (UpsertNodeConfiguration) Type() ActionType { return ActionUpsertNodeConfiguration }
func (InitializeNode) Type() ActionType          { return ActionInitializeNode }
func (SetTestResult) Type() ActionType           { return ActionSetTestResult }
func (AddValidationError) Type() ActionType      { return ActionAddValidationError }
func (ClearValidationErrors) Type() ActionType   { return ActionClearValidationErrors }
func (AddConnection) Type() ActionType           { return ActionAddConnection }
func (RemoveConnection) Type() ActionType        { return ActionRemoveConnection }
func (RemoveNode) Type() ActionType              { return ActionRemoveNode }
func (ClearAll) Type() ActionType                { return ActionClearAll }

func (UpsertNodeConfiguration) isAction() {}
func (InitializeNode) isAction()          {}
func (SetTestResult) isAction()           {}
func (AddValidationError) isAction()      {}
func (ClearValidationErrors) isAction()   {}
func (AddConnection) isAction()           {}
func (RemoveConnection) isAction()        {}
func (RemoveNode) isAction()              {}
func (ClearAll) isAction()                {}

// TargetNode returns the node an action is about, or "" for graph-wide actions.
func TargetNode(a Action) string {
	switch act := a.(type) {
	case UpsertNodeConfiguration:
		return act.NodeID
	case InitializeNode:
		return act.NodeID
	case SetTestResult:
		return act.NodeID
	case AddValidationError:
		return act.NodeID
	case ClearValidationErrors:
		return act.NodeID
	case AddConnection:
		return act.Connection.TargetNodeID
	case RemoveConnection:
		return act.TargetNodeID
	case RemoveNode:
		return act.NodeID
	}
	return ""
}
