package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"msgbar/internal/dedup"
	"msgbar/internal/gmail"
	"msgbar/internal/model"
	"msgbar/internal/render"
	"msgbar/internal/runner"
	"msgbar/internal/tui"
)

// runOnce fetches every account, notifies and prints the menu. Setup
// failures are printed as menu markup too, so the host never shows a blank
// item.
func runOnce(cmd *cobra.Command, flags globalFlags) error {
	out := cmd.OutOrStdout()
	a, err := newApp(cmd.Context(), flags)
	if err != nil {
		return render.Failure(out, err)
	}
	defer a.Close()

	r, err := a.runner(false, nil)
	if err != nil {
		return render.Failure(out, err)
	}
	rep := r.Run(cmd.Context())
	return render.New(render.Options{
		MaxLineChars:      a.cfg.MaxLineChars,
		MaxParticipants:   a.cfg.MaxGroupParticipantDisplay,
		TimestampFontSize: a.cfg.TimestampFontSize,
	}).Render(out, rep)
}

func newBrowseCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse unread conversations in the terminal",
		Long: `Browse fetches the same unread conversations as the menubar run and shows
them in an interactive list. It neither notifies nor updates the processed
store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer a.Close()

			load := func(ctx context.Context, progress runner.Progress) runner.Report {
				r, err := a.runner(true, progress)
				if err != nil {
					// Surface configuration errors like any other account failure.
					return runner.Report{Accounts: []runner.AccountResult{{
						Err: &runner.AccountError{Kind: runner.KindFetch, Err: err},
					}}}
				}
				return r.Run(ctx)
			}

			appModel := tui.NewAppModel(load, a.cfg.MaxGroupParticipantDisplay)
			p := tea.NewProgram(&appModel, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			appModel.SetProgram(p)
			finalModel, err := p.Run()
			if err != nil {
				return fmt.Errorf("run browser: %w", err)
			}
			if m, ok := finalModel.(*tui.AppModel); ok && m.Err != nil {
				return m.Err
			}
			return nil
		},
	}
}

func newResetCmd(flags *globalFlags) *cobra.Command {
	var sourceTag, account string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget which messages were already notified",
		Long: `Reset drops notification history so the next run notifies about every
unread message again.

Examples:
  msgbar reset                                  # every source and account
  msgbar reset --source reddit                  # every reddit account
  msgbar reset --source slack --account me@Acme # one account`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if account != "" && sourceTag == "" {
				return fmt.Errorf("--account requires --source")
			}
			a, err := newApp(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer a.Close()
			return reset(cmd.Context(), a.store, sourceTag, account, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&sourceTag, "source", "", "source to reset (text, reddit, slack, gmail)")
	cmd.Flags().StringVar(&account, "account", "", "account identity within --source")
	return cmd
}

type purger interface {
	dedup.Store
	Purge(ctx context.Context, source model.SourceType) error
}

func reset(ctx context.Context, st purger, sourceTag, account string, w io.Writer) error {
	src := model.SourceType(strings.ToLower(sourceTag))
	switch src {
	case "", model.SourceText, model.SourceReddit, model.SourceSlack, model.SourceGmail:
	default:
		return fmt.Errorf("unknown source %q", sourceTag)
	}

	if account != "" {
		if err := st.Replace(ctx, src, strings.ToLower(account), nil); err != nil {
			return fmt.Errorf("reset %s %s: %w", src, account, err)
		}
		fmt.Fprintf(w, "Reset %s account %s\n", src, account)
		return nil
	}
	if err := st.Purge(ctx, src); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if src == "" {
		fmt.Fprintln(w, "Reset all sources")
	} else {
		fmt.Fprintf(w, "Reset all %s accounts\n", src)
	}
	return nil
}

func newGmailAuthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "gmail-auth",
		Short: "Authorize msgbar to read your Gmail inbox",
		Long: `gmail-auth runs the one-time OAuth flow for the gmail source. Place the
OAuth client_secret.json in the gmail credentials directory first; the
token is saved next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *flags)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := gmail.Authorize(cmd.Context(), a.cfg.Gmail.CredentialsDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Gmail authorized. Token saved in %s\n", a.cfg.Gmail.CredentialsDir)
			return nil
		},
	}
}
