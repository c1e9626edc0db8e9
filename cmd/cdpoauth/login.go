package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"cdpoauth/internal/layout"
	"cdpoauth/internal/protocol"
	"cdpoauth/internal/storage"
	"cdpoauth/pkg/api"
)

var showHistory bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the OAuth2 flow in the attached browser page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, log)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := api.NewService(log, store)
		id, err := svc.StartSession(ctx, cfg.SessionConfig())
		if err != nil {
			return err
		}
		props, err := api.SessionProps(svc, id, cfg.Auth.LoadingColor)
		if err != nil {
			_ = svc.StopSession(id)
			return err
		}

		renderErr := (&layout.Console{Out: cmd.OutOrStdout()}).Render(ctx, props)
		st, _ := svc.State(id)
		if err := svc.StopSession(id); err != nil {
			log.Err(err, "停止会话失败", "sessionID", string(id))
		}
		if renderErr != nil {
			return renderErr
		}

		if showHistory {
			hist, err := svc.History(context.Background(), id)
			if err != nil {
				return err
			}
			for _, ev := range hist {
				b, err := protocol.EncodeEvent(ev)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			}
		}

		if st.Outcome == nil || !st.Outcome.Success {
			msg := "no outcome"
			if st.Outcome != nil {
				msg = st.Outcome.Message
			}
			return fmt.Errorf("authentication failed: %s", msg)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&showHistory, "history", false, "print the recorded event history when done")
}
