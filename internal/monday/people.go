package monday

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Person is a user eligible to be assigned as a task owner. Email may
// be empty when the API token cannot read other users' emails.
type Person struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Enabled bool   `json:"-"`
}

// wireUser is the raw user shape returned by the API. Enabled is a
// pointer because some queries do not select it; those sources default
// to enabled.
type wireUser struct {
	ID      ID      `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Enabled *bool   `json:"enabled"`
}

func (u wireUser) person() Person {
	enabled := true
	if u.Enabled != nil {
		enabled = *u.Enabled
	}
	return Person{ID: int64(u.ID), Name: u.Name, Email: u.Email, Enabled: enabled}
}

const accountUsersPageLimit = 500

// PeopleDirectory builds the roster of users that matches monday's
// People/Owner picker for a board: all enabled non-guest account users,
// plus anyone who already has access to the board or its subitems
// board, plus board and workspace team subscribers. Results are cached
// per parent board for the process lifetime.
type PeopleDirectory struct {
	client *Client
	boards *BoardDirectory

	mu    sync.Mutex
	cache map[int64][]Person
}

func NewPeopleDirectory(client *Client, boards *BoardDirectory) *PeopleDirectory {
	return &PeopleDirectory{
		client: client,
		boards: boards,
		cache:  make(map[int64][]Person),
	}
}

// AssignablePeople returns the de-duplicated owner roster for a board,
// sorted case-insensitively by name. Disabled users are excluded.
func (d *PeopleDirectory) AssignablePeople(ctx context.Context, parentBoardID int64) ([]Person, error) {
	d.mu.Lock()
	cached, ok := d.cache[parentBoardID]
	d.mu.Unlock()
	if ok {
		return cached, nil
	}

	targetBoardID := parentBoardID
	if subBoardID, err := d.boards.SubitemsBoardID(ctx, parentBoardID); err == nil && subBoardID != 0 {
		targetBoardID = subBoardID
	}

	merged := make(map[int64]Person)

	accountUsers, err := d.accountNonGuestUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range accountUsers {
		if u.Enabled {
			mergePerson(merged, u)
		}
	}

	boardPeople, err := d.boardPeople(ctx, targetBoardID)
	if err != nil {
		return nil, err
	}
	for _, u := range boardPeople.owners {
		mergePerson(merged, u)
	}
	for _, u := range boardPeople.subscribers {
		mergePerson(merged, u)
	}

	if len(boardPeople.teamIDs) > 0 {
		teamUsers, err := d.teamMembers(ctx, boardPeople.teamIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range teamUsers {
			mergePerson(merged, u)
		}
	}

	if boardPeople.workspaceID != 0 {
		wsUsers, wsTeamIDs, err := d.workspacePeople(ctx, boardPeople.workspaceID)
		if err != nil {
			return nil, err
		}
		for _, u := range wsUsers {
			mergePerson(merged, u)
		}
		if len(wsTeamIDs) > 0 {
			wsTeamUsers, err := d.teamMembers(ctx, wsTeamIDs)
			if err != nil {
				return nil, err
			}
			for _, u := range wsTeamUsers {
				mergePerson(merged, u)
			}
		}
	}

	roster := make([]Person, 0, len(merged))
	for _, p := range merged {
		if p.Enabled {
			roster = append(roster, p)
		}
	}
	sort.Slice(roster, func(i, j int) bool {
		a, b := strings.ToLower(roster[i].Name), strings.ToLower(roster[j].Name)
		if a != b {
			return a < b
		}
		return roster[i].ID < roster[j].ID
	})

	d.mu.Lock()
	d.cache[parentBoardID] = roster
	d.mu.Unlock()
	return roster, nil
}

// mergePerson folds a person into the roster map: a later sighting may
// fill in missing name/email on an already-seen id but never discards a
// populated field, and enabled is the OR across sightings.
func mergePerson(merged map[int64]Person, p Person) {
	if p.ID == 0 {
		return
	}
	prev, seen := merged[p.ID]
	if !seen {
		merged[p.ID] = p
		return
	}
	if prev.Name == "" {
		prev.Name = p.Name
	}
	if prev.Email == "" {
		prev.Email = p.Email
	}
	prev.Enabled = prev.Enabled || p.Enabled
	merged[p.ID] = prev
}

const accountUsersQuery = `
query ($limit: Int!, $page: Int) {
  users(limit: $limit, page: $page, kind: non_guests) {
    id
    name
    email
    enabled
  }
}`

// accountNonGuestUsers paginates across all non-guest account users,
// continuing until a short page signals the end. Some tokens may only
// see themselves; that is fine.
func (d *PeopleDirectory) accountNonGuestUsers(ctx context.Context) ([]Person, error) {
	var out []Person
	for page := 1; ; page++ {
		var data struct {
			Users []wireUser `json:"users"`
		}
		vars := map[string]interface{}{"limit": accountUsersPageLimit, "page": page}
		if err := d.client.Query(ctx, accountUsersQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("fetching account users page %d: %w", page, err)
		}
		for _, u := range data.Users {
			out = append(out, u.person())
		}
		if len(data.Users) < accountUsersPageLimit {
			break
		}
	}
	return out, nil
}

const teamUsersQuery = `
query ($ids: [ID!]) {
  teams(ids: $ids) {
    id
    users { id name email enabled }
  }
}`

func (d *PeopleDirectory) teamMembers(ctx context.Context, teamIDs []int64) ([]Person, error) {
	var data struct {
		Teams []struct {
			Users []wireUser `json:"users"`
		} `json:"teams"`
	}
	vars := map[string]interface{}{"ids": teamIDs}
	if err := d.client.Query(ctx, teamUsersQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("fetching team members: %w", err)
	}
	var out []Person
	for _, t := range data.Teams {
		for _, u := range t.Users {
			out = append(out, u.person())
		}
	}
	return out, nil
}

const boardPeopleQuery = `
query ($ids: [ID!]!) {
  boards(ids: $ids) {
    id
    workspace_id
    owners { id name email enabled }
    subscribers { id name email enabled }
    team_subscribers { id name }
  }
}`

type boardPeopleInfo struct {
	workspaceID int64
	owners      []Person
	subscribers []Person
	teamIDs     []int64
}

func (d *PeopleDirectory) boardPeople(ctx context.Context, boardID int64) (boardPeopleInfo, error) {
	var data struct {
		Boards []struct {
			WorkspaceID     ID         `json:"workspace_id"`
			Owners          []wireUser `json:"owners"`
			Subscribers     []wireUser `json:"subscribers"`
			TeamSubscribers []struct {
				ID ID `json:"id"`
			} `json:"team_subscribers"`
		} `json:"boards"`
	}
	vars := map[string]interface{}{"ids": []int64{boardID}}
	if err := d.client.Query(ctx, boardPeopleQuery, vars, &data); err != nil {
		return boardPeopleInfo{}, fmt.Errorf("fetching people for board %d: %w", boardID, err)
	}
	if len(data.Boards) == 0 {
		return boardPeopleInfo{}, nil
	}

	b := data.Boards[0]
	info := boardPeopleInfo{workspaceID: int64(b.WorkspaceID)}
	for _, u := range b.Owners {
		info.owners = append(info.owners, u.person())
	}
	for _, u := range b.Subscribers {
		info.subscribers = append(info.subscribers, u.person())
	}
	for _, t := range b.TeamSubscribers {
		if t.ID != 0 {
			info.teamIDs = append(info.teamIDs, int64(t.ID))
		}
	}
	return info, nil
}

const workspacePeopleQuery = `
query ($ids: [ID!]!) {
  workspaces(ids: $ids) {
    id
    users_subscribers { id name email enabled }
    teams_subscribers { id name }
  }
}`

func (d *PeopleDirectory) workspacePeople(ctx context.Context, workspaceID int64) ([]Person, []int64, error) {
	var data struct {
		Workspaces []struct {
			UsersSubscribers []wireUser `json:"users_subscribers"`
			TeamsSubscribers []struct {
				ID ID `json:"id"`
			} `json:"teams_subscribers"`
		} `json:"workspaces"`
	}
	vars := map[string]interface{}{"ids": []int64{workspaceID}}
	if err := d.client.Query(ctx, workspacePeopleQuery, vars, &data); err != nil {
		return nil, nil, fmt.Errorf("fetching people for workspace %d: %w", workspaceID, err)
	}
	if len(data.Workspaces) == 0 {
		return nil, nil, nil
	}

	ws := data.Workspaces[0]
	var users []Person
	for _, u := range ws.UsersSubscribers {
		users = append(users, u.person())
	}
	var teamIDs []int64
	for _, t := range ws.TeamsSubscribers {
		if t.ID != 0 {
			teamIDs = append(teamIDs, int64(t.ID))
		}
	}
	return users, teamIDs, nil
}
