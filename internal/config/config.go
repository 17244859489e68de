// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/jeranaias/sphere-client/internal/util"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Config is the full set of client settings.
type Config struct {
	Store        StoreConfig              `toml:"store" json:"store"`
	CustomAgents CustomAgentConfig        `toml:"custom_agents" json:"custom_agents"`
	Agents       map[string]AgentOverride `toml:"agents" json:"agents,omitempty"` // keyed by agent id
	Archive      ArchiveConfig            `toml:"archive" json:"archive"`
	Log          LogConfig                `toml:"log" json:"log"`
}

// StoreConfig holds the chat store's user-facing copy and switches.
type StoreConfig struct {
	// Appended to the reply when its stream fails.
	ErrorNotice string `toml:"error_notice" json:"error_notice"`
	// Title for sessions opened without an agent.
	DefaultSessionTitle string `toml:"default_session_title" json:"default_session_title"`
	// Both formats take the agent name through a single %s.
	SessionTitleFormat     string `toml:"session_title_format" json:"session_title_format"`
	FallbackGreetingFormat string `toml:"fallback_greeting_format" json:"fallback_greeting_format"`
	// Register fenced code and tables in plain replies as artifacts.
	PromoteFencedBlocks bool `toml:"promote_fenced_blocks" json:"promote_fenced_blocks"`
	// Minimum spacing of content notifications per session; 0 disables it.
	NotifyIntervalMs int `toml:"notify_interval_ms" json:"notify_interval_ms"`
}

// CustomAgentConfig is how user-created agents look until renamed or
// recolored.
type CustomAgentConfig struct {
	DefaultColor string `toml:"default_color" json:"default_color"`
	ColorClass   string `toml:"color_class" json:"color_class"`
}

// AgentOverride rewrites a built-in agent's presentation. Blank fields are
// ignored.
type AgentOverride struct {
	Name     string `toml:"name" json:"name,omitempty"`
	Color    string `toml:"color" json:"color,omitempty"`
	Greeting string `toml:"greeting" json:"greeting,omitempty"`
}

type ArchiveConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

type LogConfig struct {
	Level  string `toml:"level" json:"level"`   // debug, info, warn or error
	Format string `toml:"format" json:"format"` // console or json
}

// Default is the configuration used when no file exists.
func Default() *Config {
	archive := "archive.db"
	if dir, err := Dir(); err == nil {
		archive = filepath.Join(dir, "archive.db")
	}
	return &Config{
		Store: StoreConfig{
			ErrorNotice:            "\n\n⚠️ **Error de conexión.**",
			DefaultSessionTitle:    "Nueva Sesión",
			SessionTitleFormat:     "Chat con %s",
			FallbackGreetingFormat: "Conectado con %s.",
			NotifyIntervalMs:       50,
		},
		CustomAgents: CustomAgentConfig{
			DefaultColor: "#00f2ff",
			ColorClass:   "bg-surface border-white/5",
		},
		Archive: ArchiveConfig{Path: archive},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Dir is ~/.sphere.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}
	return filepath.Join(home, ".sphere"), nil
}

// Path is the default location of the settings file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the default settings file when it exists and otherwise starts
// from Default. SPHERE_* variables win over both.
func Load() (*Config, error) {
	if path, err := Path(); err == nil {
		if _, err := os.Stat(path); err == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath reads path over the defaults. Unknown keys are an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if extra := md.Undecoded(); len(extra) > 0 {
		names := make([]string, len(extra))
		for i, k := range extra {
			names[i] = k.String()
		}
		return nil, errors.Errorf("%s: unknown keys %s", path, strings.Join(names, ", "))
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.fillBlanks()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// fillBlanks restores defaults for strings a file set to "". Booleans and
// the notify interval are taken as written.
func (c *Config) fillBlanks() {
	type blank struct {
		dst *string
		def string
	}
	d := Default()
	for _, f := range []blank{
		{&c.Store.ErrorNotice, d.Store.ErrorNotice},
		{&c.Store.DefaultSessionTitle, d.Store.DefaultSessionTitle},
		{&c.Store.SessionTitleFormat, d.Store.SessionTitleFormat},
		{&c.Store.FallbackGreetingFormat, d.Store.FallbackGreetingFormat},
		{&c.CustomAgents.DefaultColor, d.CustomAgents.DefaultColor},
		{&c.CustomAgents.ColorClass, d.CustomAgents.ColorClass},
		{&c.Archive.Path, d.Archive.Path},
		{&c.Log.Level, d.Log.Level},
		{&c.Log.Format, d.Log.Format},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	c.Archive.Path = expandHome(c.Archive.Path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ApplyEnvOverrides reads SPHERE_LOG_LEVEL, SPHERE_LOG_FORMAT,
// SPHERE_ARCHIVE_PATH, SPHERE_ARCHIVE_ENABLED and SPHERE_PROMOTE_FENCED.
// Booleans that do not parse are ignored.
func (c *Config) ApplyEnvOverrides() {
	for env, dst := range map[string]*string{
		"SPHERE_LOG_LEVEL":    &c.Log.Level,
		"SPHERE_LOG_FORMAT":   &c.Log.Format,
		"SPHERE_ARCHIVE_PATH": &c.Archive.Path,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	for env, dst := range map[string]*bool{
		"SPHERE_ARCHIVE_ENABLED": &c.Archive.Enabled,
		"SPHERE_PROMOTE_FENCED":  &c.Store.PromoteFencedBlocks,
	} {
		if v, err := strconv.ParseBool(os.Getenv(env)); err == nil {
			*dst = v
		}
	}
}

// Save writes c to path as TOML, creating parent directories. The file is
// private to the user.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString("# sphere client settings\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Wrap(err, "encode config")
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError names one bad setting by its TOML key.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string { return e.Field + ": " + e.Message }

// ValidateErrors is every problem Validate found.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Error()
	}
	return strings.Join(parts, "; ")
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate returns ValidateErrors when any setting is unusable.
func (c *Config) Validate() error {
	var bad ValidateErrors
	fail := func(field, format string, args ...interface{}) {
		bad = append(bad, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	for _, f := range []struct{ key, value string }{
		{"store.session_title_format", c.Store.SessionTitleFormat},
		{"store.fallback_greeting_format", c.Store.FallbackGreetingFormat},
	} {
		if strings.Count(f.value, "%s") != 1 || strings.Count(f.value, "%") != 1 {
			fail(f.key, "%q needs exactly one %%s and nothing else", f.value)
		}
	}
	if c.Store.NotifyIntervalMs < 0 {
		fail("store.notify_interval_ms", "negative interval %d", c.Store.NotifyIntervalMs)
	}

	if !hexColor.MatchString(c.CustomAgents.DefaultColor) {
		fail("custom_agents.default_color", "%q is not a hex color", c.CustomAgents.DefaultColor)
	}
	for id, o := range c.Agents {
		if o.Color != "" && !hexColor.MatchString(o.Color) {
			fail("agents."+id+".color", "%q is not a hex color", o.Color)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		fail("log.level", "unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		fail("log.format", "unknown format %q", c.Log.Format)
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		fail("archive.path", "required when the archive is enabled")
	}

	if len(bad) > 0 {
		return bad
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone copies c, including the override map.
func (c *Config) Clone() *Config {
	out := *c
	if c.Agents != nil {
		out.Agents = make(map[string]AgentOverride, len(c.Agents))
		for id, o := range c.Agents {
			out.Agents[id] = o
		}
	}
	return &out
}

// SessionTitle is the title of a new session opened with the named agent.
func (c *Config) SessionTitle(agentName string) string {
	if agentName == "" {
		return c.Store.DefaultSessionTitle
	}
	return fmt.Sprintf(c.Store.SessionTitleFormat, agentName)
}
