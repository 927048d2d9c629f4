// Package config holds the camera parameter snapshot, the node option
// loader, and the snapshot file watcher.
//
// Precedence for node options: CLI flags beat environment variables,
// which beat the TOML file, which beats struct defaults. The snapshot
// file is a plain TOML rendering of Snapshot and has no environment
// layer; runtime changes arrive through the API or by editing the file.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/openuvc/uvcnode/internal/logging"
)

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "UVCNODE_"

// LoadOptions fills opts from the TOML file named by its Config field
// and from the environment, honoring `toml` and `env` struct tags.
// Fields whose CLI flags were explicitly set are left alone when cmd
// is provided.
func LoadOptions(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	locked := cliChangedFields(t, cmd)

	if doc, err := readTOML(configPath(v, t)); err != nil {
		return err
	} else if doc != nil {
		for i := 0; i < v.NumField(); i++ {
			if locked[t.Field(i).Name] {
				continue
			}
			path := t.Field(i).Tag.Get("toml")
			if path == "" {
				continue
			}
			if raw, ok := lookupTOML(doc, path); ok {
				assign(v.Field(i), raw)
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		if locked[t.Field(i).Name] {
			continue
		}
		key := t.Field(i).Tag.Get("env")
		if key == "" {
			continue
		}
		if raw := os.Getenv(EnvPrefix + key); raw != "" {
			assignString(v.Field(i), raw)
		}
	}
	return nil
}

// LoadSnapshot reads a snapshot TOML file. A missing file yields the
// defaults; a malformed one is an error so a bad edit never silently
// reverts a running camera.
func LoadSnapshot(path string) (Snapshot, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return s, nil
}

// LoadLoggingConfig extracts the [logging] table from the options
// file. Missing or malformed files fall back to defaults; logging has
// to come up no matter what.
func LoadLoggingConfig(path string) logging.Config {
	cfg := logging.Config{Level: "info", Format: "text", Modules: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var raw struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}
	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}

// cliChangedFields maps struct field names whose flags were set on the
// command line.
func cliChangedFields(t reflect.Type, cmd *cobra.Command) map[string]bool {
	locked := make(map[string]bool)
	if cmd == nil {
		return locked
	}
	changed := make(map[string]bool)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Name
		if changed[flagName(name)] {
			locked[name] = true
		}
	}
	return locked
}

// flagName converts a field name into its kebab-case flag the same way
// the CLI layer does. "LogLevel" becomes "log-level"; initialism runs
// stay one word, so "NATSUrl" becomes "nats-url".
func flagName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func configPath(v reflect.Value, t reflect.Type) string {
	if f, ok := t.FieldByName("Config"); ok && f.Type.Kind() == reflect.String {
		return v.FieldByIndex(f.Index).String()
	}
	return ""
}

func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil // optional file
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// lookupTOML walks a dotted path through nested tables.
func lookupTOML(doc map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	raw, ok := cur[parts[len(parts)-1]]
	return raw, ok
}

func assign(field reflect.Value, raw any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := raw.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		switch n := raw.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch n := raw.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		}
	}
}

func assignString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			field.SetFloat(f)
		}
	}
}
