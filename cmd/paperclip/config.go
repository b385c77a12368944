package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/csheth/paperclip/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration",
		Long: `Show or create the paperclip configuration.

Running bare 'paperclip config' is the same as 'paperclip config show'.`,
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective settings, their sources and any problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return configShowRun(cmd, opts, format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "table", "Output format: table or yaml")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with commented defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return configInitRun(cmd, opts, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	configCmd.RunE = showCmd.RunE
	configCmd.Flags().AddFlagSet(showCmd.Flags())
	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}

func newPrinter(cmd *cobra.Command) printer {
	return printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
}

func (o *rootOptions) configPath() (string, error) {
	if o.configFile != "" {
		return o.configFile, nil
	}
	return config.FilePath()
}

func configShowRun(cmd *cobra.Command, opts *rootOptions, format string) error {
	s, v, err := opts.load()
	if err != nil {
		return err
	}
	out := newPrinter(cmd)

	switch format {
	case "yaml":
		return writeSettingsYAML(cmd.OutOrStdout(), v)
	case "table", "":
	default:
		return fmt.Errorf("unknown format %q (want table or yaml)", format)
	}

	cfgPath, err := opts.configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		out.Info("Config file: %s", cfgPath)
	} else {
		out.Info("Config file: (none, run 'paperclip config init')")
	}
	fmt.Fprintln(out.out)

	fileValues := readConfigFileValues(cfgPath)
	table := out.Table([]string{"Key", "Value", "Source"})
	for _, key := range config.Keys() {
		_ = table.Append([]string{cyan(key), displayValue(key, v.Get(key)), faint(detectSource(key, fileValues))})
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(out.out)

	phases := s.Phases()
	states := []struct {
		name string
		on   bool
	}{{"capture", phases.Capture}, {"notion", phases.Notion}, {"explain", phases.Explain}}
	parts := make([]string, 0, len(states))
	for _, st := range states {
		state := "ready"
		if !st.on {
			state = "disabled"
		}
		parts = append(parts, fmt.Sprintf("%s %s", st.name, statusColor(state)))
	}
	out.Info("Phases: %s", strings.Join(parts, ", "))

	issues := s.Validate()
	if len(issues) == 0 {
		out.Success("No problems found")
		return nil
	}
	for _, issue := range issues {
		out.Warning("%s", issue.Error())
	}
	return nil
}

func displayValue(key string, val any) string {
	text := fmt.Sprint(val)
	if config.Secret(key) {
		return maskSecret(text)
	}
	if strings.Contains(text, "\n") {
		first, _, _ := strings.Cut(text, "\n")
		return first + " …"
	}
	return text
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "****"
}

// writeSettingsYAML prints the merged settings as YAML with secrets masked.
func writeSettingsYAML(w io.Writer, v *viper.Viper) error {
	all := v.AllSettings()
	for _, key := range config.Keys() {
		if config.Secret(key) {
			setNested(all, key, maskSecret(v.GetString(key)))
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close()
}

func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// readConfigFileValues returns the dotted keys present in the YAML file.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}
	flattenKeys("", parsed, result)
	return result
}

func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

func detectSource(key string, fileValues map[string]bool) string {
	for _, env := range config.EnvVars(key) {
		if val, ok := os.LookupEnv(env); ok && val != "" {
			return "env: " + env
		}
	}
	if fileValues[key] {
		return "file"
	}
	return "default"
}

const configTemplate = `# paperclip configuration
# See: paperclip config show (effective values and sources)

window:
  width: {{ .Settings.Window.Width }}
  height: {{ .Settings.Window.Height }}

notion:
  # Integration token. Prefer the NOTION_TOKEN environment variable.
  token: ""
  # Page that holds one child page per paper (id or notion.so URL).
  parent_page_id: "{{ .Settings.Notion.ParentPageID }}"
  api_version: "{{ .Settings.Notion.APIVersion }}"
  base_url: "{{ .Settings.Notion.BaseURL }}"
  timeout: {{ .Settings.Notion.Timeout }}
  max_attempts: {{ .Settings.Notion.MaxAttempts }}

llm:
  # ollama, anthropic or openai
  provider: "{{ .Settings.LLM.Provider }}"
  endpoint: "{{ .Settings.LLM.Endpoint }}"
  model: "{{ .Settings.LLM.Model }}"
  timeout: {{ .Settings.LLM.Timeout }}
  max_attempts: {{ .Settings.LLM.MaxAttempts }}
  # prompt_template is a Go template with .Text, .PaperTitle and .Context.

anthropic:
  # Prefer the ANTHROPIC_API_KEY environment variable.
  api_key: ""

openai:
  # Prefer the OPENAI_API_KEY environment variable.
  api_key: ""
  # Any server that speaks the chat completions API.
  base_url: "{{ .Settings.OpenAI.BaseURL }}"

capture:
  interval: {{ .Settings.Capture.Interval }}
  # Shorter copies are ignored.
  min_length: {{ .Settings.Capture.MinLength }}
  # Highlights waiting for Notion before new ones are dropped.
  queue_depth: {{ .Settings.Capture.QueueDepth }}

journal:
  enabled: {{ .Settings.Journal.Enabled }}
  path: "{{ .Settings.Journal.Path }}"

debug: false
log:
  file: "{{ .Settings.LogFile }}"
`

func renderConfigTemplate(s config.Settings) ([]byte, error) {
	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Settings config.Settings }{s}); err != nil {
		return nil, fmt.Errorf("template execute error: %w", err)
	}
	return buf.Bytes(), nil
}

func configInitRun(cmd *cobra.Command, opts *rootOptions, force bool) error {
	out := newPrinter(cmd)
	cfgPath, err := opts.configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		if !force {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		out.Warning("Overwriting existing config file")
	}

	// Defaults plus environment; the token and API key are never written.
	s, _, err := config.Load("")
	if err != nil {
		return err
	}

	data, err := renderConfigTemplate(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	out.Success("Config file created: %s", cfgPath)
	return nil
}
