package monday

import (
	"context"
	"encoding/json"
	"fmt"
)

// Item is a top-level row on a board.
type Item struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Subitem is a child row on a linked subitems board.
type Subitem struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ItemsPage is one page of a cursor-based item scan. An empty Cursor
// means the scan is exhausted.
type ItemsPage struct {
	Cursor string `json:"cursor"`
	Items  []Item `json:"items"`
}

const firstItemsPageQuery = `
query ($ids: [ID!]!, $limit: Int!) {
  boards(ids: $ids) {
    groups { id title }
    items_page(limit: $limit) {
      cursor
      items { id name }
    }
  }
}`

// FirstItemsPage fetches a board's groups together with the first page
// of its items.
func (c *Client) FirstItemsPage(ctx context.Context, boardID int64, limit int) ([]Group, ItemsPage, error) {
	var data struct {
		Boards []struct {
			Groups    []Group   `json:"groups"`
			ItemsPage ItemsPage `json:"items_page"`
		} `json:"boards"`
	}
	vars := map[string]interface{}{"ids": []int64{boardID}, "limit": limit}
	if err := c.Query(ctx, firstItemsPageQuery, vars, &data); err != nil {
		return nil, ItemsPage{}, fmt.Errorf("fetching items page for board %d: %w", boardID, err)
	}
	if len(data.Boards) == 0 {
		return nil, ItemsPage{}, fmt.Errorf("board %d not found", boardID)
	}
	return data.Boards[0].Groups, data.Boards[0].ItemsPage, nil
}

const nextItemsPageQuery = `
query ($cursor: String!, $limit: Int!) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items { id name }
  }
}`

// NextItemsPage continues a cursor-based item scan.
func (c *Client) NextItemsPage(ctx context.Context, cursor string, limit int) (ItemsPage, error) {
	var data struct {
		NextItemsPage ItemsPage `json:"next_items_page"`
	}
	vars := map[string]interface{}{"cursor": cursor, "limit": limit}
	if err := c.Query(ctx, nextItemsPageQuery, vars, &data); err != nil {
		return ItemsPage{}, fmt.Errorf("fetching next items page: %w", err)
	}
	return data.NextItemsPage, nil
}

const createItemMutation = `
mutation ($board_id: ID!, $item_name: String!, $group_id: String) {
  create_item(board_id: $board_id, item_name: $item_name, group_id: $group_id) { id }
}`

// CreateItem creates a top-level item on a board, in the given group
// when groupID is non-empty.
func (c *Client) CreateItem(ctx context.Context, boardID int64, name, groupID string) (int64, error) {
	vars := map[string]interface{}{
		"board_id":  boardID,
		"item_name": name,
	}
	if groupID != "" {
		vars["group_id"] = groupID
	}
	var data struct {
		CreateItem struct {
			ID ID `json:"id"`
		} `json:"create_item"`
	}
	if err := c.Query(ctx, createItemMutation, vars, &data); err != nil {
		return 0, fmt.Errorf("creating item %q on board %d: %w", name, boardID, err)
	}
	return int64(data.CreateItem.ID), nil
}

const createSubitemMutation = `
mutation ($parent_item_id: ID!, $item_name: String!, $column_values: JSON, $create: Boolean) {
  create_subitem(
    parent_item_id: $parent_item_id,
    item_name: $item_name,
    column_values: $column_values,
    create_labels_if_missing: $create
  ) { id name created_at }
}`

// CreateSubitem creates a child item under a parent. Column values are
// serialized to the JSON string monday expects. This is the only
// non-idempotent mutation in the system; callers own the
// verify-after-timeout protocol.
func (c *Client) CreateSubitem(ctx context.Context, parentItemID int64, name string, columnValues map[string]interface{}, createLabelsIfMissing bool) (Subitem, error) {
	encoded, err := json.Marshal(columnValues)
	if err != nil {
		return Subitem{}, fmt.Errorf("encoding column values: %w", err)
	}
	vars := map[string]interface{}{
		"parent_item_id": parentItemID,
		"item_name":      name,
		"column_values":  string(encoded),
		"create":         createLabelsIfMissing,
	}
	var data struct {
		CreateSubitem Subitem `json:"create_subitem"`
	}
	if err := c.Query(ctx, createSubitemMutation, vars, &data); err != nil {
		return Subitem{}, err
	}
	return data.CreateSubitem, nil
}

const subitemsQuery = `
query ($ids: [ID!]!) {
  items(ids: $ids) {
    id
    name
    subitems { id name created_at }
  }
}`

// Subitems lists the child items under a parent item.
func (c *Client) Subitems(ctx context.Context, parentItemID int64) ([]Subitem, error) {
	var data struct {
		Items []struct {
			Subitems []Subitem `json:"subitems"`
		} `json:"items"`
	}
	vars := map[string]interface{}{"ids": []int64{parentItemID}}
	if err := c.Query(ctx, subitemsQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("listing subitems of item %d: %w", parentItemID, err)
	}
	if len(data.Items) == 0 {
		return nil, nil
	}
	return data.Items[0].Subitems, nil
}

const meQuery = `query { me { name email } }`

// Me returns the identity behind the configured API token. Used as a
// startup connection test.
func (c *Client) Me(ctx context.Context) (name, email string, err error) {
	var data struct {
		Me *struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"me"`
	}
	if err := c.Query(ctx, meQuery, nil, &data); err != nil {
		return "", "", err
	}
	if data.Me == nil {
		return "", "", fmt.Errorf("unexpected empty me response")
	}
	return data.Me.Name, data.Me.Email, nil
}
