package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bee.log")
	logger, err := Init(Options{Level: "debug", Format: "json", ToFile: true, FilePath: path})
	if err != nil { t.Fatalf("Init: %v", err) }
	t.Cleanup(func() { mu.Lock(); globalLogger = zap.NewNop(); mu.Unlock() })

	if L() != logger { t.Fatalf("global logger not installed") }
	Named("watch").Debug("watch_tick", zap.String("tick_id", "t1"))
	Sync()

	b, err := os.ReadFile(path)
	if err != nil { t.Fatalf("read log: %v", err) }
	out := string(b)
	if !strings.Contains(out, `"msg":"watch_tick"`) || !strings.Contains(out, `"tick_id":"t1"`) || !strings.Contains(out, `"logger":"watch"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARN") != zapcore.WarnLevel || parseLevel("bogus") != zapcore.InfoLevel { t.Fatalf("parseLevel mismatch") }
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_TO_FILE", "false")
	o := OptionsFromEnv()
	if o.Format != "console" || o.ToFile || !o.Console { t.Fatalf("opts=%+v", o) }
}
