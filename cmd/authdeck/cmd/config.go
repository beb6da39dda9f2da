package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/authdeck/internal/config"
)

// configCmd is the parent command for config management.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage authdeck configuration",
	Long: `View and modify authdeck settings.

Configuration is stored at $AUTHDECK_HOME/config.yaml (default ~/.authdeck).
AUTHDECK_* environment variables override the file.

Examples:
  authdeck config show                         # Show effective config
  authdeck config init                         # Write a default config file
  authdeck config get forms.submit_policy      # Get specific value
  authdeck config set provider firebase        # Set value`,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
}

// configShowCmd shows the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# Configuration file: %s\n\n", configPath(cmd))
		fmt.Fprint(out, string(data))
		return nil
	},
}

// configPathCmd shows the configuration file path.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), configPath(cmd))
		return nil
	},
}

// configInitCmd writes the default configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(cmd)
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat config: %w", err)
		}

		if err := config.Defaults().SaveTo(path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

// configGetCmd gets a specific configuration value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its key path.

Key paths use dot notation: section.key. Run 'authdeck config get' with an
unknown key to list the available keys.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

// configSetCmd sets a configuration value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value and save the file.

Duration values: 10m, 1h, 30s, 2h30m
Boolean values: true, false, yes, no, 1, 0

Examples:
  authdeck config set provider firebase
  authdeck config set firebase.api_key AIza...
  authdeck config set forms.submit_policy submit-anyway
  authdeck config set runtime.file_watching false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		// Start from the file alone so environment overrides are not saved.
		path := configPath(cmd)
		fileCfg, err := loadFileOnly(path)
		if err != nil {
			return err
		}
		if err := setConfigValue(fileCfg, key, value); err != nil {
			return err
		}
		if err := fileCfg.Validate(); err != nil {
			return err
		}
		if err := fileCfg.SaveTo(path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		newValue, _ := getConfigValue(fileCfg, key)
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, newValue)
		return nil
	},
}

func loadFileOnly(path string) (*config.Config, error) {
	c := config.Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// configField reads and writes one setting.
type configField struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}

func stringField(ptr func(c *config.Config) *string) configField {
	return configField{
		get: func(c *config.Config) string { return *ptr(c) },
		set: func(c *config.Config, v string) error { *ptr(c) = v; return nil },
	}
}

func boolField(ptr func(c *config.Config) *bool) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *config.Config, v string) error {
			b, err := parseBool(v)
			if err != nil {
				return err
			}
			*ptr(c) = b
			return nil
		},
	}
}

func intField(ptr func(c *config.Config) *int) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer: %s", v)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func durationField(ptr func(c *config.Config) *config.Duration) configField {
	return configField{
		get: func(c *config.Config) string { return ptr(c).String() },
		set: func(c *config.Config, v string) error { return ptr(c).UnmarshalText([]byte(v)) },
	}
}

var configFields = map[string]configField{
	"version": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Version) },
	},
	"provider":                      stringField(func(c *config.Config) *string { return &c.Provider }),
	"locale":                        stringField(func(c *config.Config) *string { return &c.Locale }),
	"firebase.api_key":              stringField(func(c *config.Config) *string { return &c.Firebase.APIKey }),
	"firebase.identity_toolkit_url": stringField(func(c *config.Config) *string { return &c.Firebase.IdentityToolkitURL }),
	"firebase.secure_token_url":     stringField(func(c *config.Config) *string { return &c.Firebase.SecureTokenURL }),
	"local.db_path":                 stringField(func(c *config.Config) *string { return &c.Local.DBPath }),
	"local.allow_signup":            boolField(func(c *config.Config) *bool { return &c.Local.AllowSignup }),
	"local.max_failed_attempts":     intField(func(c *config.Config) *int { return &c.Local.MaxFailedAttempts }),
	"local.lockout_window":          durationField(func(c *config.Config) *config.Duration { return &c.Local.LockoutWindow }),
	"local.token_ttl":               durationField(func(c *config.Config) *config.Duration { return &c.Local.TokenTTL }),
	"local.reset_ttl":               durationField(func(c *config.Config) *config.Duration { return &c.Local.ResetTTL }),
	"forms.submit_policy":           stringField(func(c *config.Config) *string { return &c.Forms.SubmitPolicy }),
	"avatar.library_dir":            stringField(func(c *config.Config) *string { return &c.Avatar.LibraryDir }),
	"avatar.camera_command":         stringField(func(c *config.Config) *string { return &c.Avatar.CameraCommand }),
	"avatar.cache_dir":              stringField(func(c *config.Config) *string { return &c.Avatar.CacheDir }),
	"runtime.file_watching":         boolField(func(c *config.Config) *bool { return &c.Runtime.FileWatching }),
	"runtime.debounce_interval":     durationField(func(c *config.Config) *config.Duration { return &c.Runtime.DebounceInterval }),
	"runtime.request_timeout":       durationField(func(c *config.Config) *config.Duration { return &c.Runtime.RequestTimeout }),
	"log.level":                     stringField(func(c *config.Config) *string { return &c.Log.Level }),
	"log.path":                      stringField(func(c *config.Config) *string { return &c.Log.Path }),
}

// getConfigValue retrieves a value from the config by key path.
func getConfigValue(c *config.Config, key string) (string, error) {
	f, ok := configFields[key]
	if !ok {
		return "", unknownKey(key)
	}
	return f.get(c), nil
}

// setConfigValue sets a value in the config by key path.
func setConfigValue(c *config.Config, key, value string) error {
	f, ok := configFields[key]
	if !ok {
		return unknownKey(key)
	}
	if f.set == nil {
		return fmt.Errorf("%s is read-only", key)
	}
	return f.set(c, value)
}

func unknownKey(key string) error {
	keys := make([]string, 0, len(configFields))
	for k := range configFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Errorf("unknown key: %s (available: %s)", key, strings.Join(keys, ", "))
}

// parseBool parses a boolean value with common variations.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", s)
	}
}
