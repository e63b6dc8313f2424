package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/you/kioskpay/internal/app"
	testconfig "github.com/you/kioskpay/internal/tests/config"
)

// TestServer runs the whole service in process against fake remotes
type TestServer struct {
	Server    *httptest.Server
	Container *app.Container
	Remote    *FakeRemote
	Redis     *miniredis.Miniredis
	Client    *http.Client
}

// NewTestServer wires the container on miniredis and in-memory sqlite
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	remote := NewFakeRemote(t)
	cfg := testconfig.LoadTestConfig(t, testconfig.Endpoints{
		GatewayURL:   remote.GatewayURL(),
		StatusURL:    remote.StatusURL(),
		DirectoryURL: remote.DirectoryURL(),
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	container, err := app.NewContainerWith(cfg, app.Infrastructure{
		DB:    db,
		Redis: rdb,
		Seed:  TestKioskConfig(),
	})
	if err != nil {
		t.Fatalf("Failed to build container: %v", err)
	}

	server := httptest.NewServer(container.Router())
	t.Cleanup(func() {
		server.Close()
		container.Close()
	})

	return &TestServer{
		Server:    server,
		Container: container,
		Remote:    remote,
		Redis:     mr,
		Client:    server.Client(),
	}
}

// Response is a decoded API response
type Response struct {
	Status int
	Body   map[string]interface{}
}

// Data returns the "data" object of the response
func (r Response) Data() map[string]interface{} {
	data, _ := r.Body["data"].(map[string]interface{})
	return data
}

// Session returns data.session
func (r Response) Session() map[string]interface{} {
	s, _ := r.Data()["session"].(map[string]interface{})
	return s
}

// Step returns data.session.step
func (r Response) Step() string {
	step, _ := r.Session()["step"].(string)
	return step
}

// Do sends a JSON request; token is sent as a bearer token when not empty
func (s *TestServer) Do(t *testing.T, method, path string, body interface{}, token string) Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	out := Response{Status: resp.StatusCode}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Body); err != nil {
			t.Fatalf("Failed to decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return out
}
