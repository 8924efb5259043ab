package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/threadbot/internal/service"
)

func newServiceCmd() *cobra.Command {
	var envFile, user, path string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Generate or install a systemd unit for `threadbot run`",
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file the service loads")
	cmd.PersistentFlags().StringVar(&user, "user", "", "user the service runs as")

	unit := &cobra.Command{
		Use:   "unit",
		Short: "Print the unit file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := service.NewUnit(envFile, user)
			if err != nil {
				return err
			}
			text, err := u.Render()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	install := &cobra.Command{
		Use:   "install",
		Short: "Write the unit file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := service.NewUnit(envFile, user)
			if err != nil {
				return err
			}
			if err := u.Install(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\nrun: systemctl daemon-reload && systemctl enable --now %s\n", path, service.Name)
			return nil
		},
	}
	install.Flags().StringVar(&path, "path", service.DefaultUnitPath, "where to write the unit")

	cmd.AddCommand(unit, install)
	return cmd
}
