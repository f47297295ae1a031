package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/alliance/internal/config"
	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
	"github.com/nvandessel/alliance/internal/session"
	"github.com/nvandessel/alliance/internal/store"
)

// newTestRootCmd creates a root command with persistent flags for testing subcommands
func newTestRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "alliance",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file")
	return rootCmd
}

// isolateHome points HOME at a temp directory and clears the environment
// overrides so tests never read or write the real ~/.alliance/.
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	for _, name := range []string{
		"ALLIANCE_PROVIDER", "ALLIANCE_MODEL", "ALLIANCE_LOG_LEVEL", "ALLIANCE_DATA_DIR",
		"ALLIANCE_ARCHIVE", "PAYOFF_MATRIX_PATH", "PORT",
	} {
		t.Setenv(name, "")
	}
}

// run executes args against a test root holding sub and returns stdout.
func run(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := newTestRootCmd()
	root.AddCommand(sub)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "serve", "mcp-server", "play", "payoffs", "config"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("json") == nil {
		t.Error("missing --json flag")
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, newVersionCmd(), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}

	out, err = run(t, newVersionCmd(), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "alliance version "+version) {
		t.Errorf("text output = %q", out)
	}
}

func TestPlayCmdJSON(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	outFile := filepath.Join(tmpDir, "run.json")

	out, err := run(t, newPlayCmd(), "play", "--json", "--rounds", "3", "--am", "Tit-For-Tat", "--out", outFile)
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	var exp session.Export
	if err := json.Unmarshal([]byte(out), &exp); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if exp.Summary.TotalRounds != 3 || len(exp.Rounds) != 3 {
		t.Errorf("rounds = %d/%d, want 3", exp.Summary.TotalRounds, len(exp.Rounds))
	}
	if exp.Summary.Status != models.StatusComplete {
		t.Errorf("status = %q, want complete", exp.Summary.Status)
	}
	if exp.Config.AMStrategy != models.StrategyTitForTat {
		t.Errorf("am strategy = %q, want tit-for-tat", exp.Config.AMStrategy)
	}
	if exp.Config.MCStrategy != models.StrategyCompetitive {
		t.Errorf("mc strategy = %q, want config default competitive", exp.Config.MCStrategy)
	}

	saved, err := session.ReadExport(outFile)
	if err != nil {
		t.Fatalf("ReadExport: %v", err)
	}
	if saved.SimulationID != exp.SimulationID {
		t.Errorf("saved id = %q, want %q", saved.SimulationID, exp.SimulationID)
	}
}

func TestPlayCmdText(t *testing.T) {
	isolateHome(t, t.TempDir())

	out, err := run(t, newPlayCmd(), "play", "--rounds", "2")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	for _, want := range []string{"Round  1", "Round  2", "Summary:", "cooperation index"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlayCmdArchives(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	dbPath := filepath.Join(tmpDir, "archive.db")
	t.Setenv("ALLIANCE_ARCHIVE", dbPath)

	if _, err := run(t, newPlayCmd(), "play", "--json", "--rounds", "1"); err != nil {
		t.Fatalf("play: %v", err)
	}

	ctx := context.Background()
	archive, err := store.Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archive.Close()
	entries, err := archive.ListExports(ctx, 0)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("archived %d exports, want 1", len(entries))
	}
}

func TestPlayCmdInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too many rounds", []string{"play", "--rounds", "51"}},
		{"unknown strategy", []string{"play", "--mc", "greedy"}},
		{"unknown mode", []string{"play", "--mode", "partial"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateHome(t, t.TempDir())
			if _, err := run(t, newPlayCmd(), tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPayoffsCmd(t *testing.T) {
	isolateHome(t, t.TempDir())

	out, err := run(t, newPayoffsCmd(), "payoffs", "--json")
	if err != nil {
		t.Fatalf("payoffs: %v", err)
	}
	var got struct {
		Source string      `json:"source"`
		AM     [][]float64 `json:"am"`
		MC     [][]float64 `json:"mc"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != "builtin" {
		t.Errorf("source = %q, want builtin", got.Source)
	}
	if len(got.AM) != payoff.Size || len(got.MC) != payoff.Size {
		t.Errorf("grid sizes = %d/%d, want %d", len(got.AM), len(got.MC), payoff.Size)
	}

	out, err = run(t, newPayoffsCmd(), "payoffs", "--party", "mc", "--full")
	if err != nil {
		t.Fatalf("payoffs --full: %v", err)
	}
	if !strings.Contains(out, "MC payoffs:") || strings.Contains(out, "AM payoffs") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines < payoff.Size+2 {
		t.Errorf("full grid has %d lines", lines)
	}

	if _, err := run(t, newPayoffsCmd(), "payoffs", "--party", "xx"); err == nil {
		t.Error("expected error for unknown party")
	}
}

func TestConfigSetGet(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := filepath.Join(tmpDir, "cfg", "config.yaml")

	if _, err := run(t, newConfigCmd(), "config", "set", "simulation.num_rounds", "25", "--config", path); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := run(t, newConfigCmd(), "config", "set", "llm.api_key", "${TEST_ALLIANCE_KEY}", "--config", path); err != nil {
		t.Fatalf("set api key: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config perm = %o, want 600", perm)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "${TEST_ALLIANCE_KEY}") {
		t.Errorf("api key reference not preserved:\n%s", data)
	}

	out, err := run(t, newConfigCmd(), "config", "get", "simulation.num_rounds", "--config", path, "--json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got struct {
		Key   string `json:"key"`
		Value int    `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Value != 25 {
		t.Errorf("num_rounds = %d, want 25", got.Value)
	}

	if _, err := run(t, newConfigCmd(), "config", "set", "simulation.num_rounds", "99", "--config", path); err == nil {
		t.Error("expected validation error for 99 rounds")
	}
	if _, err := run(t, newConfigCmd(), "config", "get", "nope", "--config", path); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestConfigListRedactsKey(t *testing.T) {
	isolateHome(t, t.TempDir())
	t.Setenv("ALLIANCE_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test-1234567890abcdef")

	out, err := run(t, newConfigCmd(), "config", "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "sk-test-1234567890abcdef") {
		t.Errorf("api key leaked: %s", out)
	}

	out, err = run(t, newConfigCmd(), "config", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "sk-test-1234567890abcdef") || !strings.Contains(out, "llm.provider:") {
		t.Errorf("unexpected text listing:\n%s", out)
	}
}

func TestConfigPath(t *testing.T) {
	isolateHome(t, t.TempDir())

	out, err := run(t, newConfigCmd(), "config", "path", "--json")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	var got struct {
		Path   string `json:"path"`
		Exists bool   `json:"exists"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Path != config.DefaultPath() || got.Exists {
		t.Errorf("path = %+v, want %s (missing)", got, config.DefaultPath())
	}
}

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"llm.provider", "Anthropic", false},
		{"llm.timeout", "30s", false},
		{"llm.timeout", "soon", true},
		{"server.port", "9000", false},
		{"server.port", "high", true},
		{"server.rate_limit", "false", false},
		{"simulation.am_strategy", "ADAPTIVE", false},
		{"unknown.key", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg := config.Default()
	setConfigValue(cfg, "llm.provider", "Anthropic")
	setConfigValue(cfg, "simulation.am_strategy", "ADAPTIVE")
	if cfg.LLM.Provider != "anthropic" || cfg.Simulation.AMStrategy != models.StrategyAdaptive {
		t.Errorf("values not normalized: %q %q", cfg.LLM.Provider, cfg.Simulation.AMStrategy)
	}
}

func TestConfigKeysReadable(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, ok := getConfigValue(cfg, key); !ok {
			t.Errorf("getConfigValue(%q) not found", key)
		}
	}
}

func TestPruneLoopStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pruneLoop(ctx, nil, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pruneLoop did not return after cancel")
	}
}
