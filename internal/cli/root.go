// Package cli implements the chatctl maintenance commands.
package cli

import (
	"fmt"

	"whatsjuju-chat/backend/pkg/config"
	"whatsjuju-chat/backend/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// OpenDB opens the database the commands work on
type OpenDB func(cfg *config.Config) (*gorm.DB, error)

// NewRootCmd builds the command tree. open is called lazily by each command.
func NewRootCmd(open OpenDB) *cobra.Command {
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Maintenance commands for the WhatsJuju chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	env := &environment{open: open}
	root.AddCommand(
		newMigrateCmd(env),
		newSeedCmd(env),
		newSettingsCmd(env),
	)
	return root
}

type environment struct {
	open OpenDB
	db   *gorm.DB
	log  *logger.Logger
}

func (e *environment) database() (*gorm.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	cfg := config.New()
	e.log = logger.New(logger.Config{Level: cfg.Logging.Level, JSON: cfg.Logging.Format != "text"})

	db, err := e.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.db = db
	return db, nil
}
