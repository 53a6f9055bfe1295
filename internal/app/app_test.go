package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/pkg/config"
)

func boolPtr(b bool) *bool { return &b }

func testApp(cfg *config.ConfigData) *App {
	return New(cfg, zap.NewNop().Sugar())
}

func TestBuildSinksConsoleOnly(t *testing.T) {
	a := testApp(&config.ConfigData{
		Console: &config.ConsoleData{Enabled: true},
	})

	list, dbS, cleaner, err := a.buildSinks(stats.NewPipelineStats(), stats.NewCleanupStats())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name() != "console" {
		t.Errorf("sinks = %v", list)
	}
	if dbS != nil || cleaner != nil {
		t.Error("console-only config produced database components")
	}
}

func TestBuildSinksRequiresAtLeastOne(t *testing.T) {
	a := testApp(&config.ConfigData{})

	if _, _, _, err := a.buildSinks(stats.NewPipelineStats(), stats.NewCleanupStats()); !errors.Is(err, ErrNoSinks) {
		t.Errorf("buildSinks = %v, want ErrNoSinks", err)
	}
}

func TestBuildSinksDatabaseWithCleaner(t *testing.T) {
	a := testApp(&config.ConfigData{
		Database: &config.DatabaseData{
			DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "wx.db"),
			Cleanup: &config.CleanupData{
				Enabled:              boolPtr(true),
				IntervalHours:        4,
				MaxDeletionsPerCycle: 100,
			},
		},
	})

	list, dbS, cleaner, err := a.buildSinks(stats.NewPipelineStats(), stats.NewCleanupStats())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || dbS == nil {
		t.Fatalf("sinks = %v, db sink = %v", list, dbS)
	}
	if cleaner == nil {
		t.Fatal("cleanup enabled but no cleaner built")
	}
	cleaner.Stop()
	if err := dbS.Close(context.Background()); err != nil {
		t.Errorf("close db sink: %v", err)
	}
}

// The settings store and the event store both speak SQLite; opening
// them in one process must not collide over the registered driver name.
func TestSettingsAndEventStoresCoexist(t *testing.T) {
	dir := t.TempDir()

	provider, err := config.NewSQLiteProvider(filepath.Join(dir, "settings.db"))
	if err != nil {
		t.Fatalf("settings store: %v", err)
	}
	defer provider.Close()

	a := testApp(&config.ConfigData{
		Database: &config.DatabaseData{
			DatabaseURL: "sqlite://" + filepath.Join(dir, "events.db"),
		},
	})
	_, dbS, _, err := a.buildSinks(stats.NewPipelineStats(), stats.NewCleanupStats())
	if err != nil {
		t.Fatalf("event store: %v", err)
	}
	if err := dbS.Close(context.Background()); err != nil {
		t.Errorf("close db sink: %v", err)
	}
}
