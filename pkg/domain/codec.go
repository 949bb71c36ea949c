package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of an Action.
type Envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeAction renders a as an envelope.
func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("failed to encode action: %w", ErrUnknownAction)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", a.Type(), err)
	}
	return json.Marshal(Envelope{Type: a.Type(), Payload: payload})
}

// DecodeAction parses an envelope back into an Action.
func DecodeAction(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode action envelope: %w", err)
	}
	return env.Action()
}

// Action returns the typed action carried by the envelope.
func (e Envelope) Action() (Action, error) {
	var (
		a   Action
		err error
	)
	switch e.Type {
	case ActionUpsertNodeConfiguration:
		a, err = decodePayload[UpsertNodeConfiguration](e.Payload)
	case ActionInitializeNode:
		a, err = decodePayload[InitializeNode](e.Payload)
	case "INITIALIZE_DATA_PROCESSING_NODE":
		var act InitializeNode
		act, err = decodePayload[InitializeNode](e.Payload)
		act.Kind = NodeKindTransform
		a = act
	case ActionSetTestResult:
		a, err = decodePayload[SetTestResult](e.Payload)
	case ActionAddValidationError:
		a, err = decodePayload[AddValidationError](e.Payload)
	case ActionClearValidationErrors:
		a, err = decodePayload[ClearValidationErrors](e.Payload)
	case ActionAddConnection:
		a, err = decodePayload[AddConnection](e.Payload)
	case ActionRemoveConnection:
		a, err = decodePayload[RemoveConnection](e.Payload)
	case ActionRemoveNode:
		a, err = decodePayload[RemoveNode](e.Payload)
	case ActionClearAll:
		a = ClearAll{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return a, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}
