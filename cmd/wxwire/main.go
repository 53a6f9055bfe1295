package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/wxwire/wxwire/internal/app"
	"github.com/wxwire/wxwire/internal/log"
	"github.com/wxwire/wxwire/internal/receiver"
	"github.com/wxwire/wxwire/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Exit codes: 0 normal shutdown, 1 configuration error, 2 terminal
// authentication failure, 3 unrecoverable runtime error.
const (
	exitOK         = 0
	exitConfig     = 1
	exitAuthFailed = 2
	exitRuntime    = 3
)

func main() {
	cfgFile := flag.String("config", "wxwire.yaml", "Path to configuration source (YAML file or SQLite database)")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wxwire %s\n", version)
		os.Exit(exitOK)
	}

	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	logCfg := cfgData.Logging
	if *debug {
		logCfg.Level = "debug"
	}
	if err := log.InitWithConfig(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(exitConfig)
	}
	defer log.Sync()

	application := app.New(cfgData, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("application error: %v", err)
		if errors.Is(err, receiver.ErrAuthFailed) {
			os.Exit(exitAuthFailed)
		}
		os.Exit(exitRuntime)
	}
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	cfgData.ApplyDefaults()
	if err := cfgData.Validate(); err != nil {
		return nil, err
	}
	return cfgData, nil
}
