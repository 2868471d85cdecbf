// Package cli is the command line front end over the client core.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/smartselect/shortlist/internal/client"
	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/observers"
	"github.com/smartselect/shortlist/internal/tracer"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

// Opener builds a client for one command invocation.
type Opener func(ctx context.Context) (*client.Client, error)

type app struct {
	open   Opener
	quiet  bool
	asJSON bool
}

// NewRootCommand returns the shortlist command tree. Every subcommand opens
// its own client, restores persisted state, and closes it on return.
func NewRootCommand(cfg client.Config) *cobra.Command {
	return newRootCommand(func(ctx context.Context) (*client.Client, error) {
		return client.Build(ctx, cfg)
	})
}

func newRootCommand(open Opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "shortlist",
		Short: "Laptop recommendations from the terminal",
		Long: `shortlist answers a short questionnaire against the recommendation
backend, keeps the resulting candidate list, and manages your wishlist.

State (session, last result, questionnaire draft) persists between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.quiet {
				logx.Disable()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.quiet, "quiet", "q", false, "suppress log output")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print machine readable output")

	root.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.askCmd(),
		a.refineCmd(),
		a.resetCmd(),
		a.statusCmd(),
		a.laptopsCmd(),
		a.showCmd(),
		a.compareCmd(),
		a.wishlistCmd(),
		a.reviewsCmd(),
	)
	return root
}

// Execute runs the command tree and returns an error carrying the
// user-facing message.
func Execute(ctx context.Context, cfg client.Config, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand(cfg)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		logx.Debug().Err(err).Str("kind", string(errx.KindOf(err))).Msg("command failed")
		return errors.New(userMessage(err))
	}
	return nil
}

// userMessage keeps the server's wording for classified failures and falls
// back to the error text for local ones (flag parsing, bad arguments).
func userMessage(err error) string {
	if errx.KindOf(err) == errx.KindInternal {
		return err.Error()
	}
	return errx.MessageOf(err)
}

// run wraps a command body with client lifecycle, the event log observer
// and a span.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx, span := tracer.Tracer().Start(cmd.Context(), "cli."+cmd.CommandPath())
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, errx.MessageOf(err))
				span.SetAttributes(attribute.String("error.kind", string(errx.KindOf(err))))
			}
			span.End()
		}()

		c, err := a.open(ctx)
		if err != nil {
			return err
		}

		obsCtx, cancel := context.WithCancel(ctx)
		obs := observers.NewLogObserver(c.Bus)
		if err := obs.Start(obsCtx); err != nil {
			logx.Warn().Err(err).Msg("event observer not started")
		}
		defer func() {
			if cerr := c.Close(); cerr != nil {
				logx.Warn().Err(cerr).Msg("failed to close client")
			}
			cancel()
			obs.Wait()
		}()

		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start client: %w", err)
		}
		return fn(ctx, cmd, c, args)
	}
}
