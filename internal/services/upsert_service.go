package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/yukikurage/monday-task-gateway/internal/models"
	"github.com/yukikurage/monday-task-gateway/internal/monday"
	"github.com/yukikurage/monday-task-gateway/internal/repository"
)

var (
	ErrProjectTitleRequired = errors.New("project_title is required")
	ErrTaskTitleRequired    = errors.New("task_title is required")
)

// Page sizes for the parent item scan
const (
	firstItemsPageLimit = 200
	nextItemsPageLimit  = 500
)

// BatchFailure records one task that could not be persisted. It is
// returned alongside the successes so callers can distinguish "nothing
// created" from "created N of M".
type BatchFailure struct {
	Index        int    `json:"index"`
	ProjectTitle string `json:"project_title"`
	TaskTitle    string `json:"task_title"`
	Reason       string `json:"reason"`
}

// UpsertService persists task requests into monday.com: it
// finds-or-creates the parent project item on the main board, resolves
// the subitems board schema, maps column values, and creates the task
// subitem with verify-after-timeout protection. All caches live on the
// service instance and last for its lifetime.
type UpsertService struct {
	client     *monday.Client
	boards     *monday.BoardDirectory
	people     *monday.PeopleDirectory
	mapper     *ValueMapper
	records    repository.TaskRecordRepository
	boardID    int64
	accountURL string

	mu        sync.Mutex
	parentIDs map[string]int64
}

// NewUpsertService creates an UpsertService for one main board. The
// records repository may be nil, in which case no local history is
// kept.
func NewUpsertService(client *monday.Client, boards *monday.BoardDirectory, people *monday.PeopleDirectory, records repository.TaskRecordRepository, boardID int64, accountURL string) *UpsertService {
	return &UpsertService{
		client:     client,
		boards:     boards,
		people:     people,
		mapper:     NewValueMapper(),
		records:    records,
		boardID:    boardID,
		accountURL: accountURL,
		parentIDs:  make(map[string]int64),
	}
}

// TestConnection checks that the configured token can reach the API.
func (s *UpsertService) TestConnection(ctx context.Context) error {
	name, email, err := s.client.Me(ctx)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	log.Printf("Connected to monday.com as %s (%s)", name, email)
	return nil
}

// Upsert persists a single task request and returns the normalized
// result.
func (s *UpsertService) Upsert(ctx context.Context, task models.TaskRequest) (*models.PersistedTask, error) {
	projectTitle := strings.TrimSpace(task.ProjectTitle)
	taskTitle := strings.TrimSpace(task.TaskTitle)
	if projectTitle == "" {
		return nil, ErrProjectTitleRequired
	}
	if taskTitle == "" {
		return nil, ErrTaskTitleRequired
	}

	parentID, err := s.resolveParentItem(ctx, projectTitle)
	if err != nil {
		return nil, err
	}

	subBoardID, err := s.boards.SubitemsBoardID(ctx, s.boardID)
	if err != nil {
		return nil, err
	}
	subColumns, err := s.boards.Columns(ctx, subBoardID)
	if err != nil {
		return nil, err
	}

	var roster []monday.Person
	if strings.TrimSpace(task.Owner) != "" {
		roster, err = s.people.AssignablePeople(ctx, s.boardID)
		if err != nil {
			return nil, err
		}
	}

	values := s.mapper.MapValues(subColumns, task, roster)

	sub, err := s.createSubitemWithVerify(ctx, parentID, task.TaskTitle, values)
	if err != nil {
		return nil, err
	}

	persisted := &models.PersistedTask{
		ID:              int64(sub.ID),
		Name:            sub.Name,
		CreatedAt:       sub.CreatedAt,
		ProjectTitle:    task.ProjectTitle,
		TaskTitle:       task.TaskTitle,
		Owner:           task.Owner,
		DueDate:         task.DueDate,
		ParentItemID:    parentID,
		BoardID:         s.boardID,
		SubitemsBoardID: subBoardID,
		ParentURL:       fmt.Sprintf("%s/boards/%d/pulses/%d", s.accountURL, s.boardID, parentID),
	}

	log.Printf("Created subtask %q under %q (parent id %d, subitem id %d)", sub.Name, task.ProjectTitle, parentID, int64(sub.ID))
	return persisted, nil
}

// UpsertBatch persists tasks sequentially in input order with per-task
// failure isolation: a failing task is logged and reported, and its
// siblings proceed.
func (s *UpsertService) UpsertBatch(ctx context.Context, batchID string, tasks []models.TaskRequest) ([]models.PersistedTask, []BatchFailure) {
	results := make([]models.PersistedTask, 0, len(tasks))
	var failures []BatchFailure

	for i, task := range tasks {
		persisted, err := s.Upsert(ctx, task)
		if err != nil {
			log.Printf("Error creating task %q for project %q: %v", task.TaskTitle, task.ProjectTitle, err)
			failures = append(failures, BatchFailure{
				Index:        i,
				ProjectTitle: task.ProjectTitle,
				TaskTitle:    task.TaskTitle,
				Reason:       err.Error(),
			})
			continue
		}
		results = append(results, *persisted)
		s.recordHistory(batchID, persisted)
	}

	log.Printf("Created %d / %d tasks", len(results), len(tasks))
	return results, failures
}

// recordHistory writes the local audit row. History failures never fail
// the upsert that already committed remotely.
func (s *UpsertService) recordHistory(batchID string, persisted *models.PersistedTask) {
	if s.records == nil {
		return
	}
	record := &models.TaskRecord{
		BatchID:         batchID,
		RemoteID:        persisted.ID,
		Name:            persisted.Name,
		ProjectTitle:    persisted.ProjectTitle,
		TaskTitle:       persisted.TaskTitle,
		Owner:           persisted.Owner,
		DueDate:         persisted.DueDate,
		ParentItemID:    persisted.ParentItemID,
		BoardID:         persisted.BoardID,
		SubitemsBoardID: persisted.SubitemsBoardID,
		RemoteCreatedAt: persisted.CreatedAt,
	}
	if err := s.records.Create(record); err != nil {
		log.Printf("Error recording task history for %q: %v", persisted.TaskTitle, err)
	}
}

// resolveParentItem finds the project item named title on the main
// board, creating it in the first group when absent. Every path
// populates the title cache, so one title never triggers a second
// create within this service's lifetime.
func (s *UpsertService) resolveParentItem(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	cached, ok := s.parentIDs[title]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	groups, page, err := s.client.FirstItemsPage(ctx, s.boardID, firstItemsPageLimit)
	if err != nil {
		return 0, err
	}

	firstGroupID := ""
	if len(groups) > 0 {
		firstGroupID = groups[0].ID
	}

	for {
		for _, item := range page.Items {
			if strings.TrimSpace(item.Name) == title {
				return s.cacheParentID(title, int64(item.ID)), nil
			}
		}
		if page.Cursor == "" {
			break
		}
		page, err = s.client.NextItemsPage(ctx, page.Cursor, nextItemsPageLimit)
		if err != nil {
			return 0, err
		}
	}

	created, err := s.client.CreateItem(ctx, s.boardID, title, firstGroupID)
	if err != nil {
		return 0, err
	}
	return s.cacheParentID(title, created), nil
}

func (s *UpsertService) cacheParentID(title string, id int64) int64 {
	s.mu.Lock()
	s.parentIDs[title] = id
	s.mu.Unlock()
	return id
}

// createSubitemWithVerify issues the creation mutation and, when the
// client saw a transport timeout or connection failure, performs one
// verification read to learn whether the mutation committed
// server-side. It never issues a second create for the same task.
func (s *UpsertService) createSubitemWithVerify(ctx context.Context, parentItemID int64, name string, values map[string]interface{}) (monday.Subitem, error) {
	sub, err := s.client.CreateSubitem(ctx, parentItemID, name, values, true)
	if err == nil {
		return sub, nil
	}
	if !monday.IsTransient(err) {
		return monday.Subitem{}, err
	}

	log.Printf("create_subitem timed out or lost connection: %v. Verifying existence...", err)
	existing, lookupErr := s.findSubitemByName(ctx, parentItemID, name)
	if lookupErr != nil {
		log.Printf("Verification lookup failed: %v", lookupErr)
		return monday.Subitem{}, err
	}
	if existing != nil {
		log.Printf("Server-side success confirmed after client timeout. Proceeding.")
		return *existing, nil
	}
	return monday.Subitem{}, err
}

func (s *UpsertService) findSubitemByName(ctx context.Context, parentItemID int64, name string) (*monday.Subitem, error) {
	subitems, err := s.client.Subitems(ctx, parentItemID)
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(name)
	for i := range subitems {
		if strings.TrimSpace(subitems[i].Name) == want {
			return &subitems[i], nil
		}
	}
	return nil, nil
}
