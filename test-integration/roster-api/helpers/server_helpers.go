package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	rosterapp "github.com/stacklok/studio-roster/internal/app"
	"github.com/stacklok/studio-roster/internal/config"
	"github.com/stacklok/studio-roster/internal/roster"
	"github.com/stacklok/studio-roster/internal/status"
)

// ServerTestHelper manages the roster API server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *rosterapp.RosterApp
}

// WriteConfigYAML writes a roster configuration pointing at studioURL and returns its path
func WriteConfigYAML(dir, studioURL, interval string) string {
	content := fmt.Sprintf(`studio:
  baseUrl: %s
  companyId: "1234"
  email: frontdesk@example.com
  timezone: America/Phoenix
  requestTimeout: 5s
  requestsPerSecond: 100
refresh:
  interval: %s
  concurrency: 2
`, studioURL, interval)

	path := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(path, []byte(content), 0600)).To(gomega.Succeed())
	return path
}

// NewServerTestHelper creates a new server test helper listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) (*ServerTestHelper, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to find a free port: %w", err)
	}
	address := listener.Addr().String()
	if err := listener.Close(); err != nil {
		return nil, err
	}

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// StartServer starts the roster API server programmatically
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := rosterapp.NewRosterApp(s.ctx,
		rosterapp.WithConfig(cfg),
		rosterapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}

	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the roster API server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to publish its first roster
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// GetHealth makes a GET request to /health
func (s *ServerTestHelper) GetHealth() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/health")
}

// GetReadiness makes a GET request to /readiness
func (s *ServerTestHelper) GetReadiness() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/readiness")
}

// GetStudents makes a GET request to /api/students and decodes the roster
func (s *ServerTestHelper) GetStudents() ([]roster.Student, error) {
	var students []roster.Student
	if err := s.getJSON("/api/students", &students); err != nil {
		return nil, err
	}
	return students, nil
}

// GetStatus makes a GET request to /api/status and decodes the sync status
func (s *ServerTestHelper) GetStatus() (*status.SyncStatus, error) {
	var syncStatus status.SyncStatus
	if err := s.getJSON("/api/status", &syncStatus); err != nil {
		return nil, err
	}
	return &syncStatus, nil
}

// ForceRefresh makes a POST request to /api/forcerefresh
func (s *ServerTestHelper) ForceRefresh() (*http.Response, error) {
	return s.httpClient.Post(s.baseURL+"/api/forcerefresh", "application/json", nil)
}

// WaitForStudents polls /api/students until it returns count students
func (s *ServerTestHelper) WaitForStudents(count int, timeout time.Duration) []roster.Student {
	var students []roster.Student
	gomega.Eventually(func() ([]roster.Student, error) {
		var err error
		students, err = s.GetStudents()
		return students, err
	}, timeout, 100*time.Millisecond).Should(gomega.HaveLen(count))
	return students
}

func (s *ServerTestHelper) getJSON(path string, out any) error {
	resp, err := s.httpClient.Get(s.baseURL + path)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
