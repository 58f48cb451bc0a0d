package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StatusValue holds a status column target, addressed either by label
// ("Done") or by index (1). JSON input may carry either a string or a
// number.
type StatusValue struct {
	Label string
	Index *int
}

func (s *StatusValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		return json.Unmarshal(data, &s.Label)
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("status must be a string label or an integer index: %w", err)
	}
	s.Index = &idx
	return nil
}

func (s StatusValue) MarshalJSON() ([]byte, error) {
	if s.Index != nil {
		return json.Marshal(*s.Index)
	}
	return json.Marshal(s.Label)
}

// TaskRequest is one task to persist, as produced by the upstream
// extraction layer. DueDate, when set, is already a valid YYYY-MM-DD
// string; relative dates are the caller's problem.
type TaskRequest struct {
	ProjectTitle string       `json:"project_title"`
	TaskTitle    string       `json:"task_title"`
	Owner        string       `json:"owner,omitempty"`
	DueDate      string       `json:"due_date,omitempty"`
	Status       *StatusValue `json:"status,omitempty"`
}

// PersistedTask is the normalized result of one successful upsert,
// combining the remote-assigned identity with the original request
// fields.
type PersistedTask struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	CreatedAt       string `json:"created_at"`
	ProjectTitle    string `json:"project_title"`
	TaskTitle       string `json:"task_title"`
	Owner           string `json:"owner,omitempty"`
	DueDate         string `json:"due_date,omitempty"`
	ParentItemID    int64  `json:"parent_item_id"`
	BoardID         int64  `json:"board_id"`
	SubitemsBoardID int64  `json:"subitems_board_id"`
	ParentURL       string `json:"monday_parent_url,omitempty"`
}
