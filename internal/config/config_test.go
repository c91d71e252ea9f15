package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashback.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, args, err := Load(NewFlagSet("test"), []string{"extra"})
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if len(args) != 1 || args[0] != "extra" {
		t.Errorf("Expected positional args [extra], but got %v", args)
	}
	d := Default()
	if cfg.DB != d.DB || cfg.Server != d.Server || cfg.Scheduler != d.Scheduler {
		t.Errorf("Expected defaults %+v, but got %+v", d, cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
db:
  path: from-file.db
server:
  addr: ":9000"
scheduler:
  easiness_floor: 1.5
  initial_easiness: 2.2
  count_failed_reviews: false
calendar:
  timezone: Europe/Dublin
`)
	t.Setenv("FLASHBACK_SERVER__ADDR", ":9100")
	t.Setenv("FLASHBACK_SCHEDULER__SECOND_INTERVAL", "4")

	cfg, _, err := Load(NewFlagSet("test"), []string{"--config", path, "--db", "from-flag.db"})
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	if cfg.DB.Path != "from-flag.db" {
		t.Errorf("Expected flag to win for db.path, but got %s", cfg.DB.Path)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("Expected env to win over file for server.addr, but got %s", cfg.Server.Addr)
	}
	if cfg.Calendar.Timezone != "Europe/Dublin" {
		t.Errorf("Expected timezone from file, but got %s", cfg.Calendar.Timezone)
	}
	if cfg.Scheduler.EasinessFloor != 1.5 || cfg.Scheduler.InitialEasiness != 2.2 || cfg.Scheduler.CountFailedReviews {
		t.Errorf("Expected scheduler settings from file, but got %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.SecondInterval != 4 || cfg.Scheduler.FirstInterval != 1 {
		t.Errorf("Expected env interval and default first interval, but got %+v", cfg.Scheduler)
	}
	if _, err := cfg.Location(); err != nil {
		t.Errorf("Location() returned an unexpected error: %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		yaml string
	}{
		{name: "unknown driver", args: []string{"--driver", "postgres"}},
		{name: "unknown timezone", args: []string{"--timezone", "Mars/Olympus"}},
		{name: "easiness below floor", yaml: "scheduler:\n  easiness_floor: 1.3\n  initial_easiness: 1.0\n"},
		{name: "missing explicit file", args: []string{"--config", "/does/not/exist.yaml"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			args := tc.args
			if tc.yaml != "" {
				args = append(args, "--config", writeConfig(t, tc.yaml))
			}
			if _, _, err := Load(NewFlagSet("test"), args); err == nil {
				t.Error("Expected Load() to fail")
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "id", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected info messages to be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"id":7`) {
		t.Errorf("Expected a JSON warn record, but got %s", out)
	}
}
