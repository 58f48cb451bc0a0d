package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValueUnmarshal(t *testing.T) {
	var task TaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"task_title": "t", "status": "Done"}`), &task))
	require.NotNil(t, task.Status)
	assert.Equal(t, "Done", task.Status.Label)
	assert.Nil(t, task.Status.Index)

	task = TaskRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"task_title": "t", "status": 2}`), &task))
	require.NotNil(t, task.Status)
	require.NotNil(t, task.Status.Index)
	assert.Equal(t, 2, *task.Status.Index)
	assert.Empty(t, task.Status.Label)

	task = TaskRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"task_title": "t", "status": null}`), &task))
	assert.Nil(t, task.Status)

	task = TaskRequest{}
	err := json.Unmarshal([]byte(`{"task_title": "t", "status": [1]}`), &task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string label or an integer index")
}

func TestStatusValueMarshalRoundTrip(t *testing.T) {
	out, err := json.Marshal(StatusValue{Label: "Working on it"})
	require.NoError(t, err)
	assert.JSONEq(t, `"Working on it"`, string(out))

	idx := 3
	out, err = json.Marshal(StatusValue{Index: &idx})
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(out))
}
