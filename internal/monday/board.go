package monday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

var (
	// ErrNoSubitemsColumn means the board cannot host subtasks; the
	// account admin has to add a Subitems column in the monday UI.
	ErrNoSubitemsColumn = errors.New("board has no subitems column")

	// ErrSubitemsBoardUnresolved means the subitems column settings did
	// not carry a linked board id in any known shape.
	ErrSubitemsBoardUnresolved = errors.New("could not resolve subitems board id from column settings")
)

// ID is a monday entity id. The API serializes ids as JSON strings but
// some legacy settings payloads carry them as numbers.
type ID int64

func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*id = ID(v)
	return nil
}

// Column is one schema field on a board. Settings is the raw
// settings_str payload; its shape depends on the column type.
type Column struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Settings string `json:"settings_str"`
}

// Group is an item group on a board.
type Group struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// BoardDirectory discovers board column schemas and resolves linked
// subitems boards. Results are cached for the process lifetime; schema
// changes made remotely mid-run are not observed.
type BoardDirectory struct {
	client *Client

	mu            sync.Mutex
	columns       map[int64][]Column
	subitemBoards map[int64]int64
}

func NewBoardDirectory(client *Client) *BoardDirectory {
	return &BoardDirectory{
		client:        client,
		columns:       make(map[int64][]Column),
		subitemBoards: make(map[int64]int64),
	}
}

const boardColumnsQuery = `
query ($ids: [ID!]!) {
  boards(ids: $ids) {
    id
    columns { id title type settings_str }
  }
}`

// Columns returns the column schema of a board, fetching it once and
// serving subsequent calls from cache.
func (d *BoardDirectory) Columns(ctx context.Context, boardID int64) ([]Column, error) {
	d.mu.Lock()
	cached, ok := d.columns[boardID]
	d.mu.Unlock()
	if ok {
		return cached, nil
	}

	var data struct {
		Boards []struct {
			Columns []Column `json:"columns"`
		} `json:"boards"`
	}
	err := d.client.Query(ctx, boardColumnsQuery, map[string]interface{}{"ids": []int64{boardID}}, &data)
	if err != nil {
		return nil, fmt.Errorf("fetching columns for board %d: %w", boardID, err)
	}
	if len(data.Boards) == 0 {
		return nil, fmt.Errorf("board %d not found", boardID)
	}

	cols := data.Boards[0].Columns
	d.mu.Lock()
	d.columns[boardID] = cols
	d.mu.Unlock()
	return cols, nil
}

// SubitemsBoardID resolves the linked subitems board of a board by
// parsing the settings of its subitems-typed column. Cached per board.
func (d *BoardDirectory) SubitemsBoardID(ctx context.Context, boardID int64) (int64, error) {
	d.mu.Lock()
	cached, ok := d.subitemBoards[boardID]
	d.mu.Unlock()
	if ok {
		return cached, nil
	}

	cols, err := d.Columns(ctx, boardID)
	if err != nil {
		return 0, err
	}

	var subCol *Column
	for i := range cols {
		if cols[i].Type == "subitems" || cols[i].Type == "subtasks" {
			subCol = &cols[i]
			break
		}
	}
	if subCol == nil {
		return 0, ErrNoSubitemsColumn
	}

	subBoardID, ok := parseSubitemsSettings(subCol.Settings)
	if !ok {
		return 0, ErrSubitemsBoardUnresolved
	}

	d.mu.Lock()
	d.subitemBoards[boardID] = subBoardID
	d.mu.Unlock()
	return subBoardID, nil
}

// parseSubitemsSettings extracts the linked board id from a subitems
// column's settings payload. The key and value shape vary across board
// generations: "boardIds" / "linkedBoardsIds" as a list, or a bare
// "boardId".
func parseSubitemsSettings(settings string) (int64, bool) {
	if settings == "" {
		return 0, false
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(settings), &parsed); err != nil {
		return 0, false
	}
	for _, key := range []string{"boardIds", "linkedBoardsIds", "boardId"} {
		switch v := parsed[key].(type) {
		case []interface{}:
			if len(v) > 0 {
				if id, ok := settingsNumber(v[0]); ok {
					return id, true
				}
			}
		default:
			if id, ok := settingsNumber(v); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func settingsNumber(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
