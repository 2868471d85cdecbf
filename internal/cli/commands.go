package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartselect/shortlist/internal/catalog"
	"github.com/smartselect/shortlist/internal/client"
	errx "github.com/smartselect/shortlist/internal/core/error"
	"github.com/smartselect/shortlist/internal/model"
)

func (a *app) signupCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signup <username>",
		Short: "Create an account",
		Long:  "Create an account. The password is read from --password or the first line of stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			msg, err := c.Session.Signup(ctx, args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and keep the session for later commands",
		Long:  "Log in. The password is read from --password or the first line of stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			sess, err := c.Session.Login(ctx, args[0], pw)
			if err != nil {
				return err
			}
			c.Wait()
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", sess.Username)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session, wishlist and last result",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			if err := c.Session.Logout(ctx); err != nil {
				return err
			}
			c.Wait()
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		}),
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: a.run(func(_ context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			s := c.Session.Current()
			if a.asJSON {
				return printJSON(cmd, s)
			}
			if !s.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", s.Username, s.UserID)
			return nil
		}),
	}
}

func (a *app) askCmd() *cobra.Command {
	var answers, custom []string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer the questionnaire and get recommendations",
		Long: `Record answers into the questionnaire draft and submit it.

  --answer usage=gaming            single choice or free text
  --answer ports=USB-C,HDMI        multi choice (comma separated)
  --custom usage="video editing"   text for an "Other" choice

Answers accumulate in the draft across invocations until a submit succeeds
or you run reset.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			for _, raw := range answers {
				id, v, err := parseAnswer(raw)
				if err != nil {
					return err
				}
				if err := c.Drafts.SetAnswer(ctx, id, v); err != nil {
					return err
				}
			}
			for _, raw := range custom {
				id, text, ok := strings.Cut(raw, "=")
				id = strings.TrimSpace(id)
				if !ok || id == "" {
					return errx.Validation(fmt.Sprintf("custom input %q must look like question=text", raw))
				}
				kind := model.SingleChoice
				if c.Drafts.Draft().Answers[id].IsMulti {
					kind = model.MultiChoice
				}
				if err := c.Drafts.SetCustomInput(ctx, id, kind, text); err != nil {
					return err
				}
			}

			rec, err := c.Ask(ctx)
			if err != nil {
				return err
			}
			if err := c.Drafts.Clear(ctx); err != nil {
				return err
			}
			c.Wait()
			return a.printRecommendation(cmd, c, rec)
		}),
	}
	cmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "question=value[,value2]")
	cmd.Flags().StringArrayVar(&custom, "custom", nil, "question=text for an Other choice")
	return cmd
}

func (a *app) refineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refine <text>",
		Short: "Ask again in your own words",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			rec, err := c.Query.Refine(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to refine")
				return nil
			}
			c.Wait()
			return a.printRecommendation(cmd, c, rec)
		}),
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the last result and the questionnaire draft",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			if err := c.Query.Reset(ctx); err != nil {
				return err
			}
			if err := c.Drafts.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset")
			return nil
		}),
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarise session, query, catalog and wishlist state",
		Args:  cobra.NoArgs,
		RunE: a.run(func(_ context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			st := c.Status()
			if a.asJSON {
				return printJSON(cmd, st)
			}
			user := "-"
			if st.Session.Authenticated() {
				user = st.Session.Username
			}
			w := newTable(cmd)
			fmt.Fprintf(w, "user\t%s\n", user)
			fmt.Fprintf(w, "query\t%s\n", st.Query.Phase)
			if st.Query.ResultLabel != "" {
				fmt.Fprintf(w, "result\t%s\n", st.Query.ResultLabel)
			}
			if st.Query.Error != "" {
				fmt.Fprintf(w, "error\t%s\n", st.Query.Error)
			}
			fmt.Fprintf(w, "catalog\t%s (%d)\n", st.Catalog, st.CatalogItems)
			fmt.Fprintf(w, "wishlist\t%d\n", st.WishlistItems)
			return w.Flush()
		}),
	}
}

func (a *app) laptopsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "laptops",
		Short: "List the candidate laptops",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
			if err := ensureCatalog(ctx, c); err != nil {
				return err
			}
			return a.printItems(cmd, c.Items())
		}),
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|model>",
		Short: "Show one laptop",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			if err := ensureCatalog(ctx, c); err != nil {
				return err
			}
			l, ok := c.Catalog.Lookup(args[0])
			if !ok {
				return errx.NotFound(fmt.Sprintf("laptop %q is not in the current list", args[0]))
			}
			item := model.CatalogItem{Laptop: l, Wishlisted: c.Wishlist.Contains(l.Model)}
			if a.asJSON {
				return printJSON(cmd, item)
			}
			printLaptop(cmd, item)
			return nil
		}),
	}
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id> <id> [id...]",
		Short: "Compare laptops side by side",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			if err := ensureCatalog(ctx, c); err != nil {
				return err
			}
			laptops, err := c.Catalog.Compare(args...)
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd, laptops)
			}
			printComparison(cmd, laptops)
			return nil
		}),
	}
}

func (a *app) wishlistCmd() *cobra.Command {
	list := func(ctx context.Context, cmd *cobra.Command, c *client.Client, _ []string) error {
		if !c.Session.Authenticated() {
			return errx.Unauthenticated("")
		}
		entries := c.Wishlist.Entries()
		if a.asJSON {
			return printJSON(cmd, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "wishlist is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), e.Model)
		}
		return nil
	}

	root := &cobra.Command{
		Use:   "wishlist",
		Short: "Show or change your wishlist",
		Args:  cobra.NoArgs,
		RunE:  a.run(list),
	}

	var queryStr, laptopID string
	add := &cobra.Command{
		Use:   "add <model>",
		Short: "Save a laptop",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			q := queryStr
			if q == "" {
				q = c.Query.State().ResultLabel
			}
			id := laptopID
			if l, ok := c.Catalog.Lookup(args[0]); ok && id == "" {
				id = l.ID
			}
			if err := c.Wishlist.Add(ctx, id, args[0], q); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[0])
			return nil
		}),
	}
	add.Flags().StringVar(&queryStr, "query", "", "query the laptop was recommended for (defaults to the last result)")
	add.Flags().StringVar(&laptopID, "id", "", "laptop id")

	remove := &cobra.Command{
		Use:   "remove <model>",
		Short: "Remove a saved laptop",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			if err := c.Wishlist.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		}),
	}

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved laptops",
		Args:  cobra.NoArgs,
		RunE:  a.run(list),
	}, add, remove)
	return root
}

func (a *app) reviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <model>",
		Short: "Show the review sentiment analysis for a model",
		Long:  "Show the review sentiment analysis. Waits with backoff while the analysis is still being prepared.",
		Args:  cobra.MinimumNArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, c *client.Client, args []string) error {
			analysis, err := c.Reviews.Analysis(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd, analysis)
			}
			printAnalysis(cmd, analysis)
			return nil
		}),
	}
}

// ensureCatalog fetches the list when nothing was loaded during start.
func ensureCatalog(ctx context.Context, c *client.Client) error {
	if c.Catalog.Status() == catalog.StatusReady {
		return nil
	}
	return c.Catalog.Refresh(ctx)
}

// parseAnswer turns "id=a" into a single answer and "id=a,b" into a
// multi-choice one. "id=" clears the answer.
func parseAnswer(raw string) (string, model.AnswerValue, error) {
	id, value, ok := strings.Cut(raw, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", model.AnswerValue{}, errx.Validation(fmt.Sprintf("answer %q must look like question=value", raw))
	}
	if !strings.Contains(value, ",") {
		return id, model.Single(strings.TrimSpace(value)), nil
	}
	var choices []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			choices = append(choices, v)
		}
	}
	return id, model.Multi(choices...), nil
}

func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	if sc.Scan() {
		return strings.TrimRight(sc.Text(), "\r"), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return "", nil
}
