// Package config holds the server settings.
//
// Every setting is a command line flag and can also be given as an
// environment variable named CONNECTFOUR_ followed by the flag name in upper
// case with dashes replaced by underscores. Flags win over variables.
//
// Usage:
//
//	cfg := config.Default()
//	cfg.BindFlags(cmd.PersistentFlags())
//	if err := config.ApplyEnv(cmd.PersistentFlags(), config.NewViper()); err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// Archive backends:
//   - memory: bounded in-process list (default)
//   - file: one JSON file per match under archive-dir
//   - redis: a capped list at redis-key
//   - postgres: a matches table via gorm, needs postgres-dsn
package config
