// Package config loads YAML configuration with environment overrides.
//
// Before overrides are applied, .env files are loaded in priority order:
//
//  1. ENV_FILE (if set, only this file is loaded)
//  2. .env.local
//  3. .env
//
// Overrides come from `env` struct tags:
//
//	type ServiceConfig struct {
//	    Port int `yaml:"port" env:"HACKAI_PORT"`
//	}
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envFileVar    = "ENV_FILE"
	configPathVar = "CONFIG_PATH"
)

var durationType = reflect.TypeOf(time.Duration(0))

// dotenvFiles returns the .env files to load, highest priority first.
// godotenv never overwrites a variable that is already set.
func dotenvFiles() []string {
	if explicit := os.Getenv(envFileVar); explicit != "" {
		return []string{explicit}
	}
	return []string{".env.local", ".env"}
}

func loadDotenv() error {
	for _, name := range dotenvFiles() {
		err := godotenv.Load(name)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("dotenv %s: %w", name, err)
	}
	return nil
}

// LoadWithDefaults decodes the YAML at path into a fresh T, runs
// setDefaults, then applies env overrides. An empty path skips the file.
func LoadWithDefaults[T any](path string, setDefaults func(*T)) (*T, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	cfg := new(T)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err = yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if setDefaults != nil {
		setDefaults(cfg)
	}
	overrideFromEnv(reflect.ValueOf(cfg).Elem())
	return cfg, nil
}

// GetConfigPath returns CONFIG_PATH if set, otherwise defaultPath.
func GetConfigPath(defaultPath string) string {
	if p, ok := os.LookupEnv(configPathVar); ok && p != "" {
		return p
	}
	return defaultPath
}

// overrideFromEnv walks struct fields depth first. Nil struct pointers are
// allocated so nested env tags still apply.
func overrideFromEnv(v reflect.Value) {
	if v.Kind() != reflect.Struct {
		return
	}

	for i := range v.NumField() {
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		switch {
		case fv.Kind() == reflect.Struct:
			overrideFromEnv(fv)
		case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			overrideFromEnv(fv.Elem())
		default:
			name := v.Type().Field(i).Tag.Get("env")
			if name == "" {
				continue
			}
			if raw := os.Getenv(name); raw != "" {
				assign(fv, raw)
			}
		}
	}
}

// assign parses raw into fv. Unparseable values leave fv untouched.
func assign(fv reflect.Value, raw string) {
	switch kind := fv.Kind(); {
	case kind == reflect.String:
		fv.SetString(raw)

	case fv.Type() == durationType:
		if d, err := time.ParseDuration(raw); err == nil {
			fv.SetInt(int64(d))
		}

	case fv.CanInt():
		if n, err := strconv.ParseInt(raw, 10, fv.Type().Bits()); err == nil {
			fv.SetInt(n)
		}

	case fv.CanUint():
		if n, err := strconv.ParseUint(raw, 10, fv.Type().Bits()); err == nil {
			fv.SetUint(n)
		}

	case fv.CanFloat():
		if f, err := strconv.ParseFloat(raw, fv.Type().Bits()); err == nil {
			fv.SetFloat(f)
		}

	case kind == reflect.Bool:
		fv.SetBool(truthy(raw))

	case kind == reflect.Slice && fv.Type().Elem().Kind() == reflect.String:
		fv.Set(reflect.ValueOf(splitList(raw)))
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
