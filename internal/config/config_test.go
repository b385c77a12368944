package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv isolates the config dir and clears env overrides.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = orig })

	for _, key := range []string{
		"NOTION_TOKEN", "NOTION_API_KEY", "NOTION_PARENT_PAGE_ID", "OLLAMA_HOST", "OLLAMA_MODEL",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "PAPERCLIP_LLM_MAX_ATTEMPTS", "PAPERCLIP_NOTION_TOKEN", "PAPERCLIP_NOTION_PARENT_PAGE_ID",
		"PAPERCLIP_LLM_PROVIDER", "PAPERCLIP_LLM_MODEL", "PAPERCLIP_CAPTURE_MIN_LENGTH",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := testEnv(t)

	s, _, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, s.Capture.Interval)
	assert.Equal(t, 10, s.Capture.MinLength)
	assert.Equal(t, 16, s.Capture.QueueDepth)
	assert.Equal(t, DefaultNotionAPIVersion, s.Notion.APIVersion)
	assert.Equal(t, 3, s.Notion.MaxAttempts)
	assert.Equal(t, ProviderOllama, s.LLM.Provider)
	assert.Equal(t, DefaultOllamaModel, s.LLM.Model)
	assert.Equal(t, 3, s.LLM.MaxAttempts)
	assert.Equal(t, DefaultOpenAIBaseURL, s.OpenAI.BaseURL)
	assert.Equal(t, filepath.Join(dir, "journal.db"), s.Journal.Path)
	assert.False(t, s.Debug)
}

func TestLoadReadsConfigFileAndEnv(t *testing.T) {
	dir := testEnv(t)
	cfg := `
notion:
  token: secret_file
  parent_page_id: https://www.notion.so/Reading-238e239edbf8806b94cfea32d8da9ca0
capture:
  min_length: 4
llm:
  provider: anthropic
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	t.Setenv("NOTION_TOKEN", "secret_env")
	t.Setenv("PAPERCLIP_CAPTURE_MIN_LENGTH", "7")

	s, _, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "secret_env", s.Notion.Token)
	assert.Equal(t, "238e239edbf8806b94cfea32d8da9ca0", s.Notion.ParentPageID)
	assert.Equal(t, 7, s.Capture.MinLength)
	assert.Equal(t, ProviderAnthropic, s.LLM.Provider)
	assert.Equal(t, DefaultAnthropicModel, s.LLM.Model)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	testEnv(t)
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateCollectsAllIssues(t *testing.T) {
	testEnv(t)
	v := viper.New()
	require.NoError(t, Init(v, ""))
	v.Set("llm.provider", "mystery")
	s := FromViper(v)

	issues := s.Validate()
	keys := map[string]bool{}
	for _, issue := range issues {
		keys[issue.Key] = true
	}
	assert.True(t, keys["notion.token"])
	assert.True(t, keys["notion.parent_page_id"])
	assert.True(t, keys["llm.provider"])
	assert.Len(t, IssuesFor(issues, PhaseCapture), 0)

	phases := s.Phases()
	assert.True(t, phases.Capture)
	assert.False(t, phases.Notion)
	assert.False(t, phases.Explain)
}

func TestPhasesAllEnabled(t *testing.T) {
	testEnv(t)
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("NOTION_PARENT_PAGE_ID", "238e239edbf8806b94cfea32d8da9ca0")

	s, _, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, s.Validate())
	assert.Equal(t, Phases{Capture: true, Notion: true, Explain: true}, s.Phases())
}

func TestValidateRejectsBrokenTemplate(t *testing.T) {
	testEnv(t)
	s, _, err := Load("")
	require.NoError(t, err)
	s.LLM.PromptTemplate = "{{.Text"
	issues := IssuesFor(s.Validate(), PhaseExplain)
	require.Len(t, issues, 1)
	assert.Equal(t, "llm.prompt_template", issues[0].Key)
}

func TestNormalizePageID(t *testing.T) {
	cases := map[string]string{
		"":                                     "",
		"238e239edbf8806b94cfea32d8da9ca0":     "238e239edbf8806b94cfea32d8da9ca0",
		"238e239e-dbf8-806b-94cf-ea32d8da9ca0": "238e239e-dbf8-806b-94cf-ea32d8da9ca0",
		"https://www.notion.so/My-Page-238e239edbf8806b94cfea32d8da9ca0?pvs=4": "238e239edbf8806b94cfea32d8da9ca0",
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizePageID(input), input)
	}
}

func TestEnvVarsPutPrefixedNameFirst(t *testing.T) {
	assert.Equal(t, []string{"PAPERCLIP_NOTION_TOKEN", "NOTION_TOKEN", "NOTION_API_KEY"}, EnvVars("notion.token"))
	assert.Equal(t, []string{"PAPERCLIP_CAPTURE_MIN_LENGTH"}, EnvVars("capture.min_length"))
	assert.True(t, Secret("anthropic.api_key"))
	assert.True(t, Secret("openai.api_key"))
	assert.False(t, Secret("llm.model"))
}

func TestOpenAIProvider(t *testing.T) {
	testEnv(t)
	t.Setenv("PAPERCLIP_LLM_PROVIDER", "openai")

	s, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, s.LLM.Model)
	issues := IssuesFor(s.Validate(), PhaseExplain)
	require.Len(t, issues, 1)
	assert.Equal(t, "openai.api_key", issues[0].Key)
	assert.False(t, s.Phases().Explain)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1/")
	s, _, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", s.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", s.OpenAI.BaseURL)
	assert.Empty(t, IssuesFor(s.Validate(), PhaseExplain))
}

func TestLLMMaxAttemptsIsIndependentOfNotion(t *testing.T) {
	testEnv(t)
	t.Setenv("PAPERCLIP_LLM_MAX_ATTEMPTS", "5")

	s, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, s.LLM.MaxAttempts)
	assert.Equal(t, 3, s.Notion.MaxAttempts)

	s.LLM.MaxAttempts = 0
	issues := IssuesFor(s.Validate(), PhaseExplain)
	require.Len(t, issues, 1)
	assert.Equal(t, "llm.max_attempts", issues[0].Key)
	for _, issue := range IssuesFor(s.Validate(), PhaseNotion) {
		assert.NotEqual(t, "notion.max_attempts", issue.Key)
	}
}
