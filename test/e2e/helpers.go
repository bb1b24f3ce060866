//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cutroom-ai/cutroom/internal/api/handlers"
	"github.com/cutroom-ai/cutroom/internal/jobs"
	"github.com/cutroom-ai/cutroom/internal/repository"
	"github.com/cutroom-ai/cutroom/internal/server"
	"github.com/cutroom-ai/cutroom/internal/service"
	"github.com/cutroom-ai/cutroom/internal/storage"
	"github.com/cutroom-ai/cutroom/internal/testutil"
)

const embeddingDimensions = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	// Start PostgreSQL container
	pgC := testutil.NewPostgresContainer(ctx, t)

	// Start RustFS container
	s3C := testutil.NewRustFSContainer(ctx, t)

	// Create connection pool and run migrations
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	// Create S3 client
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-reports",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	// Find free port for server
	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	// Start HTTP server
	serverURL, serverCloser := startServer(t, pool, s3Client, port)

	env := &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// localEmbedder is a deterministic EmbeddingClient standing in for the
// OpenAI embedding API. It hashes transcript tokens into a fixed-size
// bag-of-words vector, so takes of the same line land close in cosine
// space while unrelated lines stay far apart.
type localEmbedder struct{}

func (localEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?\"'")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%embeddingDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

// localJudge is a deterministic QualityJudge standing in for the LLM judge.
// Clean takes score high; takes with filler words score low, so a group
// containing both produces a wide gap and a confident recommendation.
type localJudge struct{}

func (localJudge) JudgeGroup(_ context.Context, _ string, candidates []service.JudgeCandidate) (*service.JudgeVerdict, error) {
	verdict := &service.JudgeVerdict{
		Certainty: 0.9,
		Summary:   "scored by filler-word heuristic",
	}
	for _, c := range candidates {
		score := service.JudgeScore{
			SegmentID:    c.SegmentID,
			Delivery:     0.92,
			Clarity:      0.9,
			Completeness: 0.94,
			Overall:      0.92,
		}
		if hasFillerWords(c.Transcript) {
			score.Delivery = 0.5
			score.Clarity = 0.55
			score.Overall = 0.55
			score.Notes = "filler words disrupt the delivery"
		}
		verdict.Scores = append(verdict.Scores, score)
	}
	return verdict, nil
}

func hasFillerWords(transcript string) bool {
	for _, token := range strings.Fields(strings.ToLower(transcript)) {
		token = strings.Trim(token, ".,!?\"'")
		if token == "um" || token == "uh" || token == "er" {
			return true
		}
	}
	return false
}

// startServer starts the HTTP server with all handlers wired against the
// containers and the local stand-in clients.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	projectRepo := repository.NewProjectRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)
	analysisJobRepo := repository.NewAnalysisJobRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	projectSvc := service.NewProjectService(projectRepo)
	segmentSvc := service.NewSegmentService(segmentRepo, embeddingJobRepo).WithTxRunner(txRunner)
	embeddingSvc := service.NewEmbeddingService(localEmbedder{}, segmentRepo)
	evaluator := service.NewEvaluator(localJudge{}, "e2e test creator")

	redundancySvc := service.NewRedundancyService(
		service.RedundancyConfig{
			Enabled:               true,
			JudgeConfigured:       true,
			CreatorProfile:        "e2e test creator",
			AsyncSegmentThreshold: 500,
		},
		projectRepo,
		segmentRepo,
		analysisRepo,
		analysisJobRepo,
		segmentRepo,
		evaluator,
	)
	reportSvc := service.NewReportService(analysisRepo, projectRepo, s3Client)

	embeddingWorker := jobs.NewWorker(jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc), 100*time.Millisecond)
	go embeddingWorker.Start(context.Background())

	analysisWorker := jobs.NewWorker(jobs.NewAnalysisWorker(analysisJobRepo, redundancySvc, analysisRepo), 100*time.Millisecond)
	go analysisWorker.Start(context.Background())

	router := server.NewRouter(server.RouterConfig{
		ProjectHandler:    handlers.NewProjectHandler(projectSvc),
		SegmentHandler:    handlers.NewSegmentHandler(segmentSvc),
		RedundancyHandler: handlers.NewRedundancyHandler(redundancySvc, reportSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: router,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		t.Fatalf("failed to listen on %s: %v", srv.Addr, err)
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			t.Logf("server error: %v", serveErr)
		}
	}()

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	closer := func() {
		embeddingWorker.Stop()
		analysisWorker.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}

	return serverURL, closer
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WaitForEmbeddings blocks until the project has the expected number of
// embedded segments, or fails the test after the deadline.
func (e *E2ETestEnv) WaitForEmbeddings(projectID string, want int) {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var count int
		err := e.Pool.QueryRow(e.Ctx,
			`SELECT COUNT(*) FROM segments WHERE project_id = $1 AND embedding IS NOT NULL`,
			projectID,
		).Scan(&count)
		if err != nil {
			e.T.Fatalf("failed to count embedded segments: %v", err)
		}
		if count >= want {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("timed out waiting for %d embedded segments in project %s", want, projectID)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// BuildBinaries builds the cutroom and cutroomd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "cutroom-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "cutroomd"), "./cmd/cutroomd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build cutroomd: %v\n%s", err, out)
	}

	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "cutroom"), "./cmd/cutroom")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build cutroom: %v\n%s", err, out)
	}
}

// RunCutroom runs the cutroom CLI command against the test server
func (e *E2ETestEnv) RunCutroom(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "cutroom"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CUTROOM_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}
