package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/monday-task-gateway/internal/database"
	"github.com/yukikurage/monday-task-gateway/internal/dto"
	"github.com/yukikurage/monday-task-gateway/internal/middleware"
	"github.com/yukikurage/monday-task-gateway/internal/models"
	"github.com/yukikurage/monday-task-gateway/internal/monday"
	"github.com/yukikurage/monday-task-gateway/internal/repository"
	"github.com/yukikurage/monday-task-gateway/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAPIKey = "test-gateway-key"

// boardFake is a minimal monday API double: one main board (id 10)
// with a subitems column linked to board 20.
type boardFake struct {
	mu           sync.Mutex
	nextID       int64
	items        []monday.Item
	subitemDelay time.Duration

	server *httptest.Server
}

func (f *boardFake) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case strings.Contains(req.Query, "items_page(limit"):
		f.mu.Lock()
		parts := make([]string, len(f.items))
		for i, it := range f.items {
			parts[i] = fmt.Sprintf(`{"id": "%d", "name": %q}`, int64(it.ID), it.Name)
		}
		f.mu.Unlock()
		fmt.Fprintf(w, `{"data": {"boards": [{
			"groups": [{"id": "topics", "title": "Projects"}],
			"items_page": {"cursor": null, "items": [%s]}
		}]}}`, strings.Join(parts, ","))

	case strings.Contains(req.Query, "create_item"):
		f.mu.Lock()
		f.nextID++
		id := f.nextID
		name, _ := req.Variables["item_name"].(string)
		f.items = append(f.items, monday.Item{ID: monday.ID(id), Name: name})
		f.mu.Unlock()
		fmt.Fprintf(w, `{"data": {"create_item": {"id": "%d"}}}`, id)

	case strings.Contains(req.Query, "create_subitem"):
		f.mu.Lock()
		f.nextID++
		id := f.nextID
		delay := f.subitemDelay
		f.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		name, _ := req.Variables["item_name"].(string)
		fmt.Fprintf(w, `{"data": {"create_subitem": {"id": "%d", "name": %q, "created_at": "2025-10-24T10:00:00Z"}}}`, id, name)

	case strings.Contains(req.Query, "settings_str"):
		ids, _ := json.Marshal(req.Variables["ids"])
		if strings.Contains(string(ids), "20") {
			fmt.Fprint(w, `{"data": {"boards": [{"id": "20", "columns": [
				{"id": "date4", "title": "Due date", "type": "date", "settings_str": ""},
				{"id": "long1", "title": "Notes", "type": "long_text", "settings_str": ""}
			]}]}}`)
			return
		}
		fmt.Fprint(w, `{"data": {"boards": [{"id": "10", "columns": [
			{"id": "sub", "title": "Subitems", "type": "subitems", "settings_str": "{\"boardIds\": [20]}"}
		]}]}}`)

	default:
		http.Error(w, "unexpected query: "+req.Query, http.StatusBadRequest)
	}
}

type TaskHandlerTestSuite struct {
	suite.Suite
	db      *gorm.DB
	fake    *boardFake
	records repository.TaskRecordRepository
	jobs    *services.JobRegistry
	router  *gin.Engine
}

func (suite *TaskHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)
	suite.Require().NoError(db.AutoMigrate(&models.TaskRecord{}))
	database.SetDB(db)
	suite.db = db

	suite.fake = &boardFake{nextID: 1000}
	suite.fake.server = httptest.NewServer(http.HandlerFunc(suite.fake.handle))

	client, err := monday.NewClient(monday.ClientConfig{
		Token:       "test-token",
		APIURL:      suite.fake.server.URL,
		MaxAttempts: 1,
		BaseBackoff: time.Millisecond,
	})
	suite.Require().NoError(err)

	boards := monday.NewBoardDirectory(client)
	people := monday.NewPeopleDirectory(client, boards)
	suite.records = repository.NewTaskRecordRepository(db)
	suite.jobs = services.NewJobRegistry()
	upserts := services.NewUpsertService(client, boards, people, suite.records, 10, "https://acme.monday.com")

	handler := NewTaskHandler(upserts, suite.jobs, suite.records, "https://acme.monday.com/boards/10")

	suite.router = gin.New()
	api := suite.router.Group("/api")
	api.Use(middleware.RequireAPIKey(testAPIKey))
	api.POST("/tasks", handler.CreateTasks)
	api.GET("/tasks", handler.ListHistory)
	api.GET("/jobs/:id", handler.GetJob)
}

func (suite *TaskHandlerTestSuite) TearDownTest() {
	suite.fake.server.Close()
}

func (suite *TaskHandlerTestSuite) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *TaskHandlerTestSuite) TestCreateTasksReturnsCompletedBatch() {
	w := suite.request(http.MethodPost, "/api/tasks", dto.UpsertRequest{
		Tasks: []models.TaskRequest{
			{ProjectTitle: "Website", TaskTitle: "Draft wireframes", DueDate: "2025-10-24"},
			{ProjectTitle: "Website", TaskTitle: "Review copy"},
		},
	})

	suite.Equal(http.StatusOK, w.Code)

	var resp dto.BatchResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.NotEmpty(resp.BatchID)
	suite.Equal(2, resp.Requested)
	suite.Equal(2, resp.Created)
	suite.Len(resp.Tasks, 2)
	suite.Empty(resp.Failures)
	suite.Equal("Created 2 of 2 tasks", resp.Message)

	rows, err := suite.records.FindByBatchID(resp.BatchID)
	suite.Require().NoError(err)
	suite.Len(rows, 2)
	suite.Equal("Draft wireframes", rows[0].TaskTitle)
}

func (suite *TaskHandlerTestSuite) TestCreateTasksReportsPartialFailure() {
	w := suite.request(http.MethodPost, "/api/tasks", dto.UpsertRequest{
		Tasks: []models.TaskRequest{
			{ProjectTitle: "Website", TaskTitle: "Draft wireframes"},
			{ProjectTitle: "Website", TaskTitle: "   "},
		},
	})

	suite.Equal(http.StatusOK, w.Code)

	var resp dto.BatchResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(1, resp.Created)
	suite.Require().Len(resp.Failures, 1)
	suite.Equal(1, resp.Failures[0].Index)
	suite.Contains(resp.Message, "see failures")
}

func (suite *TaskHandlerTestSuite) TestCreateTasksRejectsEmptyBatch() {
	w := suite.request(http.MethodPost, "/api/tasks", map[string]interface{}{
		"tasks": []models.TaskRequest{},
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestCreateTasksRejectsOversizedBatch() {
	tasks := make([]models.TaskRequest, 51)
	for i := range tasks {
		tasks[i] = models.TaskRequest{ProjectTitle: "P", TaskTitle: fmt.Sprintf("Task %d", i)}
	}

	w := suite.request(http.MethodPost, "/api/tasks", dto.UpsertRequest{Tasks: tasks})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestCreateTasksRejectsMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("not json"))
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *TaskHandlerTestSuite) TestCreateTasksSoftDeadlineConvertsToJob() {
	suite.fake.subitemDelay = 300 * time.Millisecond
	wait := 0

	w := suite.request(http.MethodPost, "/api/tasks", dto.UpsertRequest{
		Tasks:       []models.TaskRequest{{ProjectTitle: "Website", TaskTitle: "Slow task"}},
		WaitSeconds: &wait,
	})

	suite.Equal(http.StatusAccepted, w.Code)

	var job dto.JobResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &job))
	suite.NotEmpty(job.JobID)
	suite.Equal(string(services.JobStatusRunning), job.Status)

	// The batch keeps running; polling eventually returns the result
	var final dto.BatchResponse
	deadline := time.Now().Add(5 * time.Second)
	for {
		poll := suite.request(http.MethodGet, "/api/jobs/"+job.JobID, nil)
		if poll.Code == http.StatusOK {
			suite.Require().NoError(json.Unmarshal(poll.Body.Bytes(), &final))
			break
		}
		suite.Equal(http.StatusAccepted, poll.Code)
		suite.Require().True(time.Now().Before(deadline), "job never completed")
		time.Sleep(50 * time.Millisecond)
	}

	suite.Equal(1, final.Created)
	suite.Equal("Slow task", final.Tasks[0].Name)
}

func (suite *TaskHandlerTestSuite) TestGetJobNotFound() {
	w := suite.request(http.MethodGet, "/api/jobs/no-such-job", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *TaskHandlerTestSuite) TestListHistoryFiltersByProject() {
	for _, record := range []models.TaskRecord{
		{BatchID: "b1", RemoteID: 1, Name: "t1", ProjectTitle: "Alpha", TaskTitle: "t1", ParentItemID: 1, BoardID: 10, SubitemsBoardID: 20},
		{BatchID: "b1", RemoteID: 2, Name: "t2", ProjectTitle: "Beta", TaskTitle: "t2", ParentItemID: 2, BoardID: 10, SubitemsBoardID: 20},
	} {
		suite.Require().NoError(suite.records.Create(&record))
	}

	w := suite.request(http.MethodGet, "/api/tasks?project_title=Alpha", nil)
	suite.Equal(http.StatusOK, w.Code)

	var resp dto.HistoryResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(int64(1), resp.TotalCount)
	suite.Require().Len(resp.Records, 1)
	suite.Equal("Alpha", resp.Records[0].ProjectTitle)
}

func (suite *TaskHandlerTestSuite) TestRequestsWithoutAPIKeyAreRejected() {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *TaskHandlerTestSuite) TestBearerTokenIsAccepted() {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
