package cli

import (
	"fmt"

	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/internal/service"
	"whatsjuju-chat/backend/pkg/logger"

	"github.com/spf13/cobra"
)

func newMigrateCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := env.database()
			if err != nil {
				return err
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSeedCmd(env *environment) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the default characters",
		Long:  "Insert the default characters when the table is empty. --force refreshes them by slug.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := env.database()
			if err != nil {
				return err
			}
			n, err := repository.SeedCharacters(cmd.Context(), repository.NewGormCharacterRepository(db), force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d characters written\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Upsert the defaults even if characters exist")
	return cmd
}

func newSettingsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or write stored settings such as openai_api_key",
	}

	settings := func() (*service.SettingsService, error) {
		db, err := env.database()
		if err != nil {
			return nil, err
		}
		log := env.log
		if log == nil {
			log = logger.Discard()
		}
		return service.NewSettingsService(repository.NewGormSettingRepository(db), nil, nil, 0, log), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a stored setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := settings()
			if err != nil {
				return err
			}
			value, err := svc.GetSetting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if value == "" {
				return fmt.Errorf("setting %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := settings()
			if err != nil {
				return err
			}
			if err := svc.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", args[0])
			return nil
		},
	})
	return cmd
}
