//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oak-labs/corpora/internal/api/handlers"
	"github.com/oak-labs/corpora/internal/embedding"
	"github.com/oak-labs/corpora/internal/events"
	"github.com/oak-labs/corpora/internal/extract"
	"github.com/oak-labs/corpora/internal/repository"
	"github.com/oak-labs/corpora/internal/server"
	"github.com/oak-labs/corpora/internal/service"
	"github.com/oak-labs/corpora/internal/storage"
	"github.com/oak-labs/corpora/internal/testutil"
)

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
		Bucket:          "corpora-sources",
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

	return &E2ETestEnv{
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
	// Clean up binaries
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries builds the corpora and corporad binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "corpora-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	// Build corporad
	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "corporad"), "./cmd/corporad")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build corporad: %v\n%s", err, out)
	}

	// Build corpora
	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "corpora"), "./cmd/corpora")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build corpora: %v\n%s", err, out)
	}
}

// RunCorpora runs the corpora CLI command against the test server
func (e *E2ETestEnv) RunCorpora(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "corpora"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CORPORA_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunCorporaWithInput runs the corpora CLI command with stdin input
func (e *E2ETestEnv) RunCorporaWithInput(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "corpora"), args...)
	cmd.Stdin = bytes.NewReader([]byte(input))
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CORPORA_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
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

// Patch performs a PATCH request
func (e *E2ETestEnv) Patch(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("PATCH", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil)
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

// ItemState is the item view returned by the API, reduced to the
// fields the tests inspect.
type ItemState struct {
	ID       string `json:"id"`
	BaseID   string `json:"base_id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Chunked  bool   `json:"chunked"`
	Status   string `json:"status"`
	Error    string `json:"error"`
	Degraded bool   `json:"degraded"`
}

// WaitForItem polls an item until it reaches a terminal status
func (e *E2ETestEnv) WaitForItem(itemID string, timeout time.Duration) ItemState {
	deadline := time.Now().Add(timeout)
	var last ItemState
	for time.Now().Before(deadline) {
		resp, err := e.Get("/items/" + itemID)
		if err == nil {
			if jsonErr := json.Unmarshal(resp.Data, &last); jsonErr != nil {
				e.T.Fatalf("failed to parse item response: %v", jsonErr)
			}
			if last.Status == "completed" || last.Status == "error" {
				return last
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	e.T.Fatalf("item %s did not reach a terminal status within %v (last: %q)", itemID, timeout, last.Status)
	return last
}

// FieldAfter extracts the whitespace-delimited token following a prefix
// in CLI output.
func FieldAfter(output, prefix string) string {
	idx := strings.Index(output, prefix)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(output[idx+len(prefix):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// startServer starts the HTTP server with all handlers
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, port int) (string, func()) {
	baseRepo := repository.NewBaseRepository(pool)
	itemRepo := repository.NewItemRepository(pool)

	emitter := events.NewEmitter()
	// No providers configured: every embed resolves to the deterministic
	// fallback, so ingestion completes without network access.
	resolver := embedding.NewResolver()
	fetcher := extract.NewFetcher(extract.DefaultStrategies(), 15*time.Second)
	extractor := extract.NewExtractor(fetcher)

	knowledgeSvc := service.NewKnowledgeService(baseRepo, itemRepo, s3Client, emitter)
	ingestor := service.NewIngestor(baseRepo, itemRepo, extractor, resolver, s3Client, emitter)
	retrievalSvc := service.NewRetrievalService(baseRepo, itemRepo, resolver)

	cfg := server.RouterConfig{
		BaseHandler:  handlers.NewBaseHandler(knowledgeSvc),
		ItemHandler:  handlers.NewItemHandler(knowledgeSvc, ingestor),
		QueryHandler: handlers.NewQueryHandler(retrievalSvc),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ingestor.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
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
