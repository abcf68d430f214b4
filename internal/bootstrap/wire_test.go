package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
)

const resumeText = `Jane Doe
jane@example.com
Senior Engineer at Acme Corp, 2019 - present. Built payment APIs in Go.`

func fakeOpenAI(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *common.Config {
	cfg := common.DefaultConfig()
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = baseURL
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "runs.db")
	return cfg
}

func TestBuild_ParsesAndAudits(t *testing.T) {
	completion := `{"personal_info":{"name":"Jane Doe","email":"jane@example.com"},
		"experience":[{"company":"Acme Corp","role":"Senior Engineer","start_date":"2019"},{"company":"Globex","role":"CTO"}],
		"education":[],"projects":[],"skills":[]}`
	srv := fakeOpenAI(t, completion)

	stack, err := Build(context.Background(), testConfig(t, srv.URL), nil)
	require.NoError(t, err)
	defer stack.Close()
	require.NotNil(t, stack.Runs)
	assert.NoError(t, stack.Readiness().Ready(context.Background()))

	res := stack.Processor.ParseText(context.Background(), resumeText, "user-1")
	require.True(t, res.Success, "error: %v", res.Error)
	require.Len(t, res.Data.Experience, 1)
	assert.Equal(t, "Acme Corp", res.Data.Experience[0].Company)
	require.NotEmpty(t, res.RunID)

	run, err := stack.Runs.GetByID(context.Background(), uuid.MustParse(res.RunID))
	require.NoError(t, err)
	assert.Equal(t, string(constants.RunStatusParseOK), run.Status)
	assert.Equal(t, "user-1", run.CallerID)
	dropped, err := run.Dropped()
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.Equal(t, "Globex", dropped[0].Value)

	b, err := stack.Exporter.ExportRunXLSX(context.Background(), run.ID, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := common.DefaultConfig()
	_, err := Build(context.Background(), cfg, nil)
	assert.True(t, common.IsCode(err, common.CodeConfig))

	cfg.LLM.APIKey = "k"
	cfg.Provenance.Mode = "fuzzy"
	_, err = Build(context.Background(), cfg, nil)
	assert.True(t, common.IsCode(err, common.CodeConfig))
}

func TestOpenStore(t *testing.T) {
	none, err := OpenStore(context.Background(), common.DatabaseConfig{Driver: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, none.Runs)
	assert.Nil(t, none.Checker)
	none.Close()

	_, err = OpenStore(context.Background(), common.DatabaseConfig{Driver: "mysql"}, nil)
	assert.True(t, common.IsCode(err, common.CodeConfig))

	sqlite, err := OpenStore(context.Background(), common.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	defer sqlite.Close()
	assert.Equal(t, "sqlite", sqlite.Checker.Name())
	assert.NoError(t, sqlite.Checker.Check(context.Background()))
}
