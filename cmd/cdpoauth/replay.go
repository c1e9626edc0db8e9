package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cdpoauth/internal/authclient"
	"cdpoauth/internal/bridge"
	"cdpoauth/internal/config"
	"cdpoauth/internal/interceptor"
	"cdpoauth/internal/logger"
	"cdpoauth/internal/protocol"
	"cdpoauth/pkg/domain"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Feed host events as JSON lines from stdin through the interception controller",
	Long: `replay reads one host event per line, e.g.

  {"type":"navigation","url":"http://localhost/auth/oauth2/success?key=k&secret=s"}
  {"type":"loadError","description":"net::ERR_FAILED"}
  {"type":"cancel"}

and drives a controller whose cookies go to an in-process cookie jar.
Controller events and the final state are printed as JSON lines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runReplay(cmd.Context(), cfg, log, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runReplay(ctx context.Context, cfg *config.Config, log logger.Logger, in io.Reader, out io.Writer) error {
	client, err := authclient.NewAppwrite(cfg.Auth.Endpoint, cfg.Auth.Project)
	if err != nil {
		return err
	}
	jar, err := bridge.NewJar()
	if err != nil {
		return err
	}

	sc := cfg.SessionConfig()
	events := make(chan domain.Event, 64)
	ctrl, err := interceptor.New(interceptor.Options{
		Session:    "replay",
		Request:    sc.Request,
		Client:     client,
		Bridge:     jar,
		CookieData: sc.CookieData,
		Events:     events,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	if err := ctrl.SetAuthenticating(true); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() {
			ctrl.Wait()
			close(events)
		}()
		scanner := bufio.NewScanner(in)
		line := 0
		for scanner.Scan() {
			line++
			if err := gctx.Err(); err != nil {
				return err
			}
			payload := bytes.TrimSpace(scanner.Bytes())
			if len(payload) == 0 {
				continue
			}
			ev, err := protocol.Decode(payload)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			switch ev.Kind {
			case protocol.KindNavigation:
				allowed := ctrl.ShouldStartLoad(ev.Navigation)
				log.Debug("导航裁决", "line", line, "allowed", allowed)
			case protocol.KindLoadError:
				ctrl.LoadError(ev.LoadError)
			case protocol.KindCancel:
				ctrl.Cancel()
			case protocol.KindAuthenticating:
				if err := ctrl.SetAuthenticating(ev.Authenticating); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
			}
		}
		return scanner.Err()
	})
	g.Go(func() error {
		for ev := range events {
			b, err := protocol.EncodeEvent(ev)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if u, err := url.Parse(bridge.Origin(client.Endpoint())); err == nil {
		log.Info("回放结束", "cookies", len(jar.CookieJar().Cookies(u)))
	}
	b, err := protocol.EncodeState(ctrl.Snapshot())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}
