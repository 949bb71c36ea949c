package domain

import (
	"testing"
	"time"

	"github.com/aretw0/nodeflow/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionEnvelope(t *testing.T) {
	label := "users"
	actions := []Action{
		UpsertNodeConfiguration{NodeID: "A", Patch: ConfigPatch{Label: &label, OutputFieldSelections: []string{"id"}}},
		InitializeNode{NodeID: "T", Kind: NodeKindTransform, Operation: OperationCustomCode},
		SetTestResult{NodeID: "A", Result: TestResult{RunID: 2, Success: true, Value: value.Int(3), Timestamp: time.Unix(10, 0).UTC()}},
		AddValidationError{NodeID: "A", Error: ValidationError{Field: "url", Message: "URL is required", Severity: SeverityError}},
		ClearValidationErrors{NodeID: "A"},
		AddConnection{Connection: Connection{SourceNodeID: "A", TargetNodeID: "T"}},
		RemoveConnection{SourceNodeID: "A", TargetNodeID: "T"},
		RemoveNode{NodeID: "A"},
		ClearAll{},
	}

	for _, a := range actions {
		t.Run(string(a.Type()), func(t *testing.T) {
			data, err := EncodeAction(a)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"type":"`+string(a.Type())+`"`)

			back, err := DecodeAction(data)
			require.NoError(t, err)
			assert.Equal(t, a.Type(), back.Type())
			assert.Equal(t, TargetNode(a), TargetNode(back))
		})
	}
}

func TestDecodeAction_Errors(t *testing.T) {
	_, err := DecodeAction([]byte(`{"type":"LAUNCH_ROCKET"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = DecodeAction([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeAction([]byte(`{"type":"REMOVE_NODE","payload":{"nodeId":5}}`))
	assert.Error(t, err)
}

func TestDecodeAction_DataProcessingAlias(t *testing.T) {
	a, err := DecodeAction([]byte(`{"type":"INITIALIZE_DATA_PROCESSING_NODE","payload":{"nodeId":"T"}}`))
	require.NoError(t, err)
	initNode, ok := a.(InitializeNode)
	require.True(t, ok)
	assert.Equal(t, NodeKindTransform, initNode.Kind)

	s, _ := Reduce(NewState(), initNode)
	assert.Equal(t, OperationFilterFields, s.Configurations["T"].Operation.Operation)
}
