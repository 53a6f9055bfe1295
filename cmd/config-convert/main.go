// config-convert migrates a YAML configuration file into the SQLite
// settings database the relay can load with -config-backend sqlite.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/wxwire/wxwire/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be written without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <wxwire.yaml> -sqlite <wxwire.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fatalf("YAML file does not exist: %s", *yamlFile)
	}
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fatalf("SQLite file already exists: %s (use -force to overwrite)", *sqliteFile)
	}

	cfg, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fatalf("loading YAML configuration: %v", err)
	}

	settings := cfg.Settings()
	if *dryRun {
		fmt.Printf("Dry run: would write %d settings to %s\n", countSettings(settings), *sqliteFile)
		printSettings(settings)
		return
	}

	if *force {
		_ = os.Remove(*sqliteFile)
	}

	provider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fatalf("creating SQLite database: %v", err)
	}
	defer provider.Close()

	written := 0
	for _, grp := range sortedKeys(settings) {
		for _, key := range sortedKeys(settings[grp]) {
			if err := provider.SetSetting(grp, key, settings[grp][key]); err != nil {
				fatalf("writing %s.%s: %v", grp, key, err)
			}
			written++
		}
	}

	// Round-trip check: the database must load back cleanly.
	if _, err := provider.LoadConfig(); err != nil {
		fatalf("verification failed: %v", err)
	}

	fmt.Printf("Wrote %d settings to %s\n", written, *sqliteFile)
}

func printSettings(settings map[string]map[string]string) {
	for _, grp := range sortedKeys(settings) {
		for _, key := range sortedKeys(settings[grp]) {
			value := settings[grp][key]
			if key == "password" {
				value = "********"
			}
			fmt.Printf("  %s.%s = %s\n", grp, key, value)
		}
	}
}

func countSettings(settings map[string]map[string]string) int {
	n := 0
	for _, grp := range settings {
		n += len(grp)
	}
	return n
}

func sortedKeys[M map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
