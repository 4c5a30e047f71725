package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-thurstone/internal/domain"
)

// resetFlags restores every flag to its default so tests do not leak
// settings into each other through the package-level commands.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	viper.Reset()
	bindFlags()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const oracleRun = `
version: "1.0.0"
metadata:
  name: "oracle run"
items:
  - id: sso
    content: "Single sign-on"
  - id: offline
    content: "Offline mode"
  - id: theme
    content: "Dark theme"
  - id: old
    content: "Fax export"
    status: discarded
scheduler:
  seed: 3
judge:
  type: oracle
  oracle: [offline, sso, theme, old]
  position_swap: true
`

const consoleRun = `
version: "1.0.0"
metadata:
  name: "console run"
items:
  - id: a
    content: "Offline mode"
  - id: b
    content: "Dark theme"
  - id: c
    content: "Single sign-on"
scheduler:
  seed: 1
store:
  backend: sqlite
  dsn: %s
`

func TestScore_JSON(t *testing.T) {
	path := writeFile(t, "matrix.yaml", `
items:
  - id: offline
  - id: theme
  - id: sso
wins:
  - [0, 3, 2]
  - [1, 0, 2]
  - [2, 2, 0]
`)
	out, err := execute(t, "", "score", "-o", "json", path)
	require.NoError(t, err)

	var res domain.RankedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "thurstone", res.Method)
	assert.Equal(t, 12, res.Comparisons)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, "offline", res.Entries[0].Item.ID)
	assert.Equal(t, 5, res.Entries[0].Wins)
}

func TestScore_TableFromJSONFileWithoutItems(t *testing.T) {
	path := writeFile(t, "matrix.json", `{"wins": [[0, 0], [4, 0]], "scorer": {"method": "win_count"}}`)
	out, err := execute(t, "", "score", path)
	require.NoError(t, err)

	assert.Contains(t, out, "item-1")
	assert.Contains(t, out, "Winner: item-1")
	assert.Contains(t, out, "4 comparisons made")
	assert.Contains(t, out, "2 ideas ranked (win_count)")
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "item count mismatch",
			content: "items: [{id: a}]\nwins: [[0, 1], [1, 0]]\n",
			wantErr: "1 items for a 2x2 win matrix",
		},
		{
			name:    "missing wins",
			content: "items: [{id: a}, {id: b}]\n",
			wantErr: "Wins",
		},
		{
			name:    "ragged matrix",
			content: "wins: [[0, 1], [1]]\n",
			wantErr: "row 1 has 1 columns, want 2",
		},
		{
			name:    "unknown scorer",
			content: "wins: [[0, 1], [1, 0]]\nscorer: {method: elo}\n",
			wantErr: "oneof",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", "score", writeFile(t, "m.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScore_UnknownOutput(t *testing.T) {
	path := writeFile(t, "m.yaml", "wins: [[0, 1], [1, 0]]\n")
	_, err := execute(t, "", "score", "-o", "xml", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestAuto_Oracle(t *testing.T) {
	path := writeFile(t, "run.yaml", oracleRun)
	out, err := execute(t, "", "auto", "-o", "json", path)
	require.NoError(t, err)

	var res domain.RankedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Entries, 3, "discarded items are not ranked")
	for i, want := range []string{"offline", "sso", "theme"} {
		assert.Equal(t, want, res.Entries[i].Item.ID)
	}
}

func TestAuto_Repeat(t *testing.T) {
	path := writeFile(t, "run.yaml", oracleRun)
	out, err := execute(t, "", "auto", "--repeat", "3", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Run 1 of 3")
	assert.Contains(t, out, "Run 3 of 3")
	assert.Equal(t, 3, strings.Count(out, "Winner: Offline mode"))
}

func TestAuto_RejectsConsoleJudge(t *testing.T) {
	path := writeFile(t, "run.yaml", strings.Replace(consoleRun, "%s", filepath.Join(t.TempDir(), "s.db"), 1))
	_, err := execute(t, "", "auto", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot run unattended")
}

func TestAuto_JudgeOverrideIsValidated(t *testing.T) {
	path := writeFile(t, "run.yaml", oracleRun)
	_, err := execute(t, "", "auto", "--judge", "llm", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a model")
}

func TestAuto_WarnsAboutDuplicates(t *testing.T) {
	run := strings.Replace(oracleRun, `"Dark theme"`, `"single sign-on "`, 1)
	out, err := execute(t, "", "auto", writeFile(t, "run.yaml", run))
	require.NoError(t, err)
	assert.Contains(t, out, `warning: "Single sign-on" and "single sign-on " look like duplicates`)
}

// fakeOpenAI answers every chat completion with a verdict for the first
// idea shown.
func fakeOpenAI(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"winner\":\"A\",\"confidence\":0.9}"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":40,"completion_tokens":8,"total_tokens":48}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func llmRun(baseURL string, maxCalls int) string {
	return fmt.Sprintf(`
version: "1.0.0"
metadata:
  name: "llm run"
items:
  - id: a
    content: "Offline mode"
  - id: b
    content: "Dark theme"
  - id: c
    content: "Single sign-on"
judge:
  type: llm
  model: openai/gpt-test
  base_url: %s/v1
  criterion: "Which idea helps more customers?"
  budget:
    max_calls: %d
`, baseURL, maxCalls)
}

func TestAuto_LLMJudge(t *testing.T) {
	server := fakeOpenAI(t)
	t.Setenv("THURSTONE_API_KEY", "test-key")

	out, err := execute(t, "", "auto", "-o", "json", writeFile(t, "run.yaml", llmRun(server.URL, 0)))
	require.NoError(t, err)

	var res domain.RankedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Comparisons)
	assert.Len(t, res.Entries, 3)
}

func TestAuto_LLMBudgetStopsRun(t *testing.T) {
	server := fakeOpenAI(t)
	t.Setenv("THURSTONE_API_KEY", "test-key")

	_, err := execute(t, "", "auto", writeFile(t, "run.yaml", llmRun(server.URL, 2)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm budget exceeded: calls used 2 of 2")
}

func TestRank_CompletesInteractively(t *testing.T) {
	run := strings.Replace(consoleRun, "%s", filepath.Join(t.TempDir(), "s.db"), 1)
	out, err := execute(t, "a\nb\n1\n", "rank", "--store", "memory", writeFile(t, "run.yaml", run))
	require.NoError(t, err)

	assert.Contains(t, out, "Which idea resonates more with you?")
	assert.Contains(t, out, "Comparison 3 / 3")
	assert.Contains(t, out, "3 comparisons made")
	assert.Contains(t, out, "3 ideas ranked")
}

func TestRank_MemorySessionIsLostOnQuit(t *testing.T) {
	run := strings.Replace(consoleRun, "%s", filepath.Join(t.TempDir(), "s.db"), 1)
	out, err := execute(t, "q\n", "rank", "--store", "memory", writeFile(t, "run.yaml", run))
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing was saved")
}

func TestRank_PauseAndResume(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sessions.db")
	runPath := writeFile(t, "run.yaml", strings.Replace(consoleRun, "%s", db, 1))

	out, err := execute(t, "a\nq\n", "rank", runPath)
	require.NoError(t, err)
	m := regexp.MustCompile(`--resume (\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = execute(t, "", "sessions", "list", "--store", "sqlite", "--store-dsn", db)
	require.NoError(t, err)
	assert.Contains(t, out, id+"  1 / 3")

	out, err = execute(t, "", "sessions", "show", "--store", "sqlite", "--store-dsn", db, id)
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3 comparisons made")

	out, err = execute(t, "b\nb\n", "rank", "--keep", "--resume", id, runPath)
	require.NoError(t, err)
	assert.Contains(t, out, "3 comparisons made")

	out, err = execute(t, "", "sessions", "show", "-o", "json", "--store", "sqlite", "--store-dsn", db, id)
	require.NoError(t, err)
	var res domain.RankedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Comparisons)

	out, err = execute(t, "", "sessions", "delete", "--store", "sqlite", "--store-dsn", db, id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)

	out, err = execute(t, "", "sessions", "list", "--store", "sqlite", "--store-dsn", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions.")
}

func TestSessions_ShowUnknown(t *testing.T) {
	_, err := execute(t, "", "sessions", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	path := writeFile(t, "m.yaml", "wins: [[0, 1], [1, 0]]\n")
	_, err := execute(t, "", "--log-level", "loud", "score", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRoot_SettingsFileAndEnv(t *testing.T) {
	path := writeFile(t, "m.yaml", "wins: [[0, 1], [1, 0]]\n")

	settings := writeFile(t, "settings.yaml", "output: json\n")
	out, err := execute(t, "", "--config", settings, "score", path)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)

	t.Setenv("THURSTONE_OUTPUT", "xml")
	_, err = execute(t, "", "score", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRoot_MetricsEndpoint(t *testing.T) {
	path := writeFile(t, "run.yaml", oracleRun)
	_, err := execute(t, "", "--metrics-addr", "127.0.0.1:0", "auto", path)
	require.NoError(t, err)
	assert.NotNil(t, collector)
	collector = nil
	metricsServer = nil
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncate("éééééé", 4))
}
