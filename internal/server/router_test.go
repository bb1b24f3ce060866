package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cutroom-ai/cutroom/internal/api/handlers"
	"github.com/cutroom-ai/cutroom/internal/domain"
	"github.com/cutroom-ai/cutroom/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, name string) (*domain.Project, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectService) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context) ([]*domain.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *MockProjectService) CreateWorkflow(ctx context.Context, projectID, name string) (*domain.Workflow, error) {
	args := m.Called(ctx, projectID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workflow), args.Error(1)
}

func (m *MockProjectService) ListWorkflows(ctx context.Context, projectID string) ([]*domain.Workflow, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Workflow), args.Error(1)
}

type MockSegmentService struct {
	mock.Mock
}

func (m *MockSegmentService) Create(ctx context.Context, input service.CreateSegmentInput) (*domain.Segment, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Segment), args.Error(1)
}

func (m *MockSegmentService) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Segment), args.Error(1)
}

func (m *MockSegmentService) ListSegments(ctx context.Context, input service.ListSegmentsInput) (*service.ListSegmentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListSegmentsOutput), args.Error(1)
}

type MockRedundancyService struct {
	mock.Mock
}

func (m *MockRedundancyService) Analyze(ctx context.Context, input service.AnalyzeInput) (*service.AnalyzeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalyzeOutput), args.Error(1)
}

func (m *MockRedundancyService) GetRecommendations(ctx context.Context, input service.RecommendationsInput) (*service.RecommendationsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecommendationsOutput), args.Error(1)
}

func (m *MockRedundancyService) Apply(ctx context.Context, input service.ApplyInput) (*service.ApplyOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ApplyOutput), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Export(ctx context.Context, projectID string) (*service.ReportOutput, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReportOutput), args.Error(1)
}

type routerMocks struct {
	projects   *MockProjectService
	segments   *MockSegmentService
	redundancy *MockRedundancyService
	reports    *MockReportService
}

func newTestRouter() (http.Handler, *routerMocks) {
	mocks := &routerMocks{
		projects:   new(MockProjectService),
		segments:   new(MockSegmentService),
		redundancy: new(MockRedundancyService),
		reports:    new(MockReportService),
	}

	router := NewRouter(RouterConfig{
		ProjectHandler:    handlers.NewProjectHandler(mocks.projects),
		SegmentHandler:    handlers.NewSegmentHandler(mocks.segments),
		RedundancyHandler: handlers.NewRedundancyHandler(mocks.redundancy, mocks.reports),
	})

	return router, mocks
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_ProjectRoutes(t *testing.T) {
	router, mocks := newTestRouter()

	project := &domain.Project{ID: "project-1", Name: "Demo", CreatedAt: time.Now().UTC()}
	mocks.projects.On("Create", mock.Anything, "Demo").Return(project, nil)
	mocks.projects.On("GetByID", mock.Anything, "project-1").Return(project, nil)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString(`{"name":"Demo"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/projects/project-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RedundancyRoutes(t *testing.T) {
	router, mocks := newTestRouter()

	mocks.redundancy.On("Analyze", mock.Anything, mock.MatchedBy(func(input service.AnalyzeInput) bool {
		return input.ProjectID == "project-1"
	})).Return(&service.AnalyzeOutput{Status: domain.AnalysisStatusCompleted}, nil)
	mocks.redundancy.On("GetRecommendations", mock.Anything, mock.Anything).
		Return(&service.RecommendationsOutput{Status: domain.AnalysisStatusCompleted}, nil)
	mocks.redundancy.On("Apply", mock.Anything, mock.Anything).
		Return(&service.ApplyOutput{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/projects/project-1/redundancy/analyze", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/projects/project-1/redundancy/recommendations", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/projects/project-1/redundancy/apply", bytes.NewBufferString(`{}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_SegmentRoutes(t *testing.T) {
	router, mocks := newTestRouter()

	mocks.segments.On("ListSegments", mock.Anything, service.ListSegmentsInput{ProjectID: "project-1"}).
		Return(&service.ListSegmentsOutput{Items: []*domain.Segment{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/projects/project-1/segments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, _ := newTestRouter()

	huge := bytes.Repeat([]byte("a"), 6*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(huge))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
