// config-test validates a configuration source and, when given both a
// YAML file and a SQLite database, verifies the two load identically.
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
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration database")
	)
	flag.Parse()

	if *yamlFile == "" && *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [-yaml <wxwire.yaml>] [-sqlite <wxwire.db>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	var yamlCfg, sqliteCfg *config.ConfigData

	if *yamlFile != "" {
		yamlCfg = load("YAML", config.NewYAMLProvider(*yamlFile))
	}
	if *sqliteFile != "" {
		provider, err := config.NewSQLiteProvider(*sqliteFile)
		if err != nil {
			fail("opening SQLite config: %v", err)
		}
		defer provider.Close()
		sqliteCfg = load("SQLite", provider)
	}

	if yamlCfg == nil || sqliteCfg == nil {
		fmt.Println("OK")
		return
	}

	diffs := diffSettings(yamlCfg.Settings(), sqliteCfg.Settings())
	if len(diffs) > 0 {
		fmt.Println("Configurations differ:")
		for _, d := range diffs {
			fmt.Printf("  %s\n", d)
		}
		os.Exit(1)
	}
	fmt.Println("Configurations match")
}

func load(label string, provider config.ConfigProvider) *config.ConfigData {
	cfg, err := provider.LoadConfig()
	if err != nil {
		fail("loading %s config: %v", label, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		fail("%s config invalid: %v", label, err)
	}
	fmt.Printf("%s configuration valid\n", label)
	return cfg
}

// diffSettings reports the flattened settings present or different
// between the two sources, as "group.key: a != b" lines.
func diffSettings(a, b map[string]map[string]string) []string {
	keys := map[string]struct{}{}
	for grp, kv := range a {
		for k := range kv {
			keys[grp+"."+k] = struct{}{}
		}
	}
	for grp, kv := range b {
		for k := range kv {
			keys[grp+"."+k] = struct{}{}
		}
	}

	flat := func(m map[string]map[string]string, grp, key string) string {
		if kv, ok := m[grp]; ok {
			return kv[key]
		}
		return ""
	}

	var diffs []string
	for full := range keys {
		var grp, key string
		for i := 0; i < len(full); i++ {
			if full[i] == '.' {
				grp, key = full[:i], full[i+1:]
				break
			}
		}
		av, bv := flat(a, grp, key), flat(b, grp, key)
		if av != bv {
			diffs = append(diffs, fmt.Sprintf("%s: %q != %q", full, av, bv))
		}
	}
	sort.Strings(diffs)
	return diffs
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
