package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/api/schemas"
	"github.com/AdeilsonR/puppeteer-themis/internal/config"
	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
	"github.com/AdeilsonR/puppeteer-themis/internal/themis"
)

// resetForTest restores package state between tests.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	osExit = os.Exit
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	original := initializeComponents
	t.Cleanup(func() {
		initializeComponents = original
		observability.ResetForTest()
	})

	// Keep the developer's own config files out of the way.
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

type stubWorkflow struct {
	record  *themis.CaseRecord
	result  *themis.RegistrationResult
	err     error
	payload themis.RegistrationPayload
}

func (s *stubWorkflow) Search(context.Context, string) (*themis.CaseRecord, error) {
	return s.record, s.err
}

func (s *stubWorkflow) Register(_ context.Context, _ string, payload themis.RegistrationPayload) (*themis.RegistrationResult, error) {
	s.payload = payload
	return s.result, s.err
}

// useStub swaps the component wiring for wf and records the config it was given.
func useStub(t *testing.T, wf *stubWorkflow) **config.Config {
	t.Helper()
	var seen *config.Config
	shutdowns := 0
	initializeComponents = func(_ context.Context, cfg *config.Config, _ *zap.Logger) (*components, error) {
		seen = cfg
		return &components{
			Workflow:    wf,
			BrowserMode: cfg.Browser.Mode,
			shutdown: func(context.Context) error {
				shutdowns++
				return nil
			},
		}, nil
	}
	t.Cleanup(func() { assert.Equal(t, 1, shutdowns, "components must be shut down exactly once") })
	return &seen
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	t.Run("should print the record as JSON", func(t *testing.T) {
		resetForTest(t)
		useStub(t, &stubWorkflow{record: &themis.CaseRecord{Number: "123", Type: "T", LastUpdate: "D", Status: "S"}})

		out, err := run(t, "buscar", "123")
		require.NoError(t, err)

		var body struct {
			CaseNumber string             `json:"numeroProcesso"`
			Result     schemas.CaseRecord `json:"resultado"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &body))
		assert.Equal(t, "123", body.CaseNumber)
		assert.Equal(t, "S", body.Result.Status)
	})

	t.Run("should print the no-result marker", func(t *testing.T) {
		resetForTest(t)
		useStub(t, &stubWorkflow{})

		out, err := run(t, "search", "123")
		require.NoError(t, err)
		assert.Contains(t, out, themis.NoResultMarker)
	})

	t.Run("should print the error body and fail", func(t *testing.T) {
		resetForTest(t)
		useStub(t, &stubWorkflow{err: &themis.AuthenticationError{Kind: themis.AuthBlocked}})

		out, err := run(t, "buscar", "123")
		require.Error(t, err)
		assert.Contains(t, out, `"tipo": "authentication"`)
	})
}

func TestRegisterCommand(t *testing.T) {
	resetForTest(t)
	wf := &stubWorkflow{result: &themis.RegistrationResult{Status: themis.StatusSkipped, Message: "nada a fazer"}}
	useStub(t, wf)

	out, err := run(t, "cadastrar", "123", "--origem", "Indicação", "--valor-causa", "R$ 10.000,00")
	require.NoError(t, err)

	var body schemas.RegisterResponse
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, schemas.RegisterResponse{CaseNumber: "123", Status: "Skipped", Message: "nada a fazer"}, body)
	assert.Equal(t, themis.RegistrationPayload{Origin: "Indicação", ClaimValue: "R$ 10.000,00"}, wf.payload)
}

func TestConfigLayering(t *testing.T) {
	t.Run("should read the config file and let flags win", func(t *testing.T) {
		resetForTest(t)
		seen := useStub(t, &stubWorkflow{})

		path := filepath.Join(t.TempDir(), "themis.yaml")
		require.NoError(t, os.WriteFile(path, []byte("browser:\n  mode: transient\nportal:\n  base_url: https://example.test/themis\n"), 0o644))

		_, err := run(t, "--config", path, "--chrome", "/opt/chrome", "buscar", "1")
		require.NoError(t, err)
		require.NotNil(t, *seen)
		assert.Equal(t, config.BrowserModeTransient, (*seen).Browser.Mode)
		assert.Equal(t, "https://example.test/themis", (*seen).Portal.BaseURL)
		assert.Equal(t, "/opt/chrome", (*seen).Browser.ExecPath)
	})

	t.Run("should pick up legacy environment variables", func(t *testing.T) {
		resetForTest(t)
		seen := useStub(t, &stubWorkflow{})
		t.Setenv("THEMIS_USER", "operador")
		t.Setenv("THEMIS_PASS", "segredo")
		t.Setenv("PORT", "8081")

		_, err := run(t, "buscar", "1")
		require.NoError(t, err)
		assert.Equal(t, "operador", (*seen).Portal.Username)
		assert.Equal(t, "segredo", (*seen).Portal.Password)
		assert.Equal(t, 8081, (*seen).Server.Port)
	})

	t.Run("should reject an invalid configuration", func(t *testing.T) {
		resetForTest(t)
		t.Setenv("THEMIS_BROWSER_MODE", "sometimes")

		_, err := run(t, "buscar", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load or validate config")
	})

	t.Run("should fail on an unreadable config file", func(t *testing.T) {
		resetForTest(t)
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("browser: [unclosed"), 0o644))

		_, err := run(t, "--config", path, "buscar", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize configuration")
	})
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)

	cfg := config.NewDefaultConfig()
	got, err := getConfigFromContext(context.WithValue(context.Background(), configKey, cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
