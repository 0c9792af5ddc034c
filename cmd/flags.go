package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cellarfs/cellarfs/internal/cfg"
)

// bindCommonFlags registers the flags shared by every subcommand that opens
// a database (--db, --key, --key-file, plus the logging flags) and binds
// them into v, from which loadConfig reads each value back by key. It also
// wires --config and the
// CELLARFS_ environment prefix, so a flag's value resolves in the order
// explicit flag > environment variable > config file > default.
func bindCommonFlags(c *cobra.Command, v *viper.Viper) {
	c.Flags().String("db", "", "path to the cellarfs database file")
	c.Flags().String("key", "", "encryption key, as literal text")
	c.Flags().String("key-file", "", "path to a file containing the encryption key")
	c.Flags().String("log-format", "text", "log output format: text or json")
	c.Flags().String("log-severity", "info", "log severity: trace, debug, info, warning, error, off")
	c.Flags().String("config", "", "path to a YAML or TOML file of default flag values")

	_ = v.BindPFlag("db", c.Flags().Lookup("db"))
	_ = v.BindPFlag("key", c.Flags().Lookup("key"))
	_ = v.BindPFlag("key-file", c.Flags().Lookup("key-file"))
	_ = v.BindPFlag("log-format", c.Flags().Lookup("log-format"))
	_ = v.BindPFlag("log-severity", c.Flags().Lookup("log-severity"))

	v.SetEnvPrefix("CELLARFS")
	v.AutomaticEnv()

	c.PreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfigFile(v, c.Flags().Lookup("config").Value.String())
	}
}

// loadConfigFile merges path (if non-empty) into v ahead of flag resolution.
func loadConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// loadConfig builds a Config from the flags bound to v and validates it.
func loadConfig(v *viper.Viper) (*cfg.Config, error) {
	c := &cfg.Config{
		DBPath:      v.GetString("db"),
		Key:         v.GetString("key"),
		KeyFile:     v.GetString("key-file"),
		LogFormat:   v.GetString("log-format"),
		LogSeverity: v.GetString("log-severity"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
