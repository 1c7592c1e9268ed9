package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/app"
	"github.com/vovakirdan/roomchat/internal/auth"
)

func newUserCmd(opts *rootOptions) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage chat accounts",
	}
	user.AddCommand(newUserAddCmd(opts), newUserHistoryCmd(opts))
	return user
}

// withAuth opens the configured store, runs fn and closes the store.
func withAuth(cmd *cobra.Command, opts *rootOptions, fn func(*auth.Service) error) error {
	cfg, _, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := app.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return fn(auth.NewService(st, app.JWTConfig(cfg)))
}

func newUserAddCmd(opts *rootOptions) *cobra.Command {
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "add <username> <password>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd, opts, func(svc *auth.Service) error {
				u, err := svc.Register(cmd.Context(), args[0], args[1], !noHistory)
				if err != nil {
					return err
				}
				cmd.Printf("created user %s (id %d, history %t)\n", u.Username, u.ID, u.ViewHistory)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not send recent history on login")
	return cmd
}

func newUserHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "history <username> on|off",
		Short:     "Toggle whether recent history is sent on login",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[1])
			}
			return withAuth(cmd, opts, func(svc *auth.Service) error {
				if err := svc.SetViewHistory(cmd.Context(), args[0], enabled); err != nil {
					return err
				}
				cmd.Printf("history for %s: %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
