package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/holdwatch/internal/holdsfile"
	"github.com/mesh-intelligence/holdwatch/internal/lifecycle"
	"github.com/mesh-intelligence/holdwatch/internal/notify"
	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

type readyOptions struct {
	notify   bool
	dryRun   bool
	fromFile bool
	all      bool
}

func newReadyCmd(a *app) *cobra.Command {
	var opts readyOptions

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Show books waiting for pickup and optionally call the family",
		Long: "Show books ready for pickup that the family has not been called about.\n" +
			"With --notify, place one outbound call listing them and remember that\n" +
			"they were announced so the next run stays quiet.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReady(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "place an outbound call about the ready books")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the call instead of placing it")
	cmd.Flags().BoolVar(&opts.fromFile, "from-file", false, "read ready books from the holds mirror instead of the store")
	cmd.Flags().BoolVar(&opts.all, "all", false, "include books the family was already called about")
	return cmd
}

func (a *app) runReady(cmd *cobra.Command, opts readyOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	s, err := a.open()
	if err != nil {
		return err
	}
	defer s.Close()

	var books []types.BookRecord
	switch {
	case opts.fromFile:
		path, err := a.holdsFile(s.cfg.DataDir)
		if err != nil {
			return sysError(err)
		}
		lines, err := holdsfile.Read(path)
		if err != nil {
			return sysError(err)
		}
		for _, l := range holdsfile.Ready(lines) {
			books = append(books, l.Record(s.cfg.FamilyID))
		}
	case opts.all:
		books, err = s.rec.Ready(ctx)
	default:
		books, err = s.rec.PendingNotifications(ctx)
	}
	if err != nil {
		return sysError(err)
	}

	if len(books) == 0 {
		if a.flags.jsonMode {
			return printJSON(out, []types.BookRecord{})
		}
		fmt.Fprintln(out, "No books are ready for pickup. No call needed.")
		return nil
	}

	if !opts.notify && !opts.dryRun {
		if a.flags.jsonMode {
			return printJSON(out, books)
		}
		fmt.Fprintf(out, "Found %d book(s) ready for pickup:\n", len(books))
		for _, b := range books {
			fmt.Fprintf(out, "  - %q by %s at %s\n", b.Title, b.Author, b.Branch)
		}
		return nil
	}

	call := notify.NewCall(a.v.GetString(cfgKeyPhoneNumber), books)
	var n notify.Notifier = notify.WriterNotifier{W: out}
	if !opts.dryRun {
		if call.PhoneNumber == "" {
			return userError(errors.New("no phone number configured (notify.phone_number)"))
		}
		hn, err := notify.NewHTTPNotifier(a.notifierConfig(), a.logger)
		if err != nil {
			return userError(err)
		}
		n = hn
	}
	if err := n.Notify(ctx, call); err != nil {
		return sysError(fmt.Errorf("notify: %w", err))
	}
	if opts.dryRun || opts.fromFile {
		return nil
	}

	res, err := a.markNotified(ctx, s, books)
	if err != nil {
		return err
	}
	if a.flags.jsonMode {
		return printJSON(out, res)
	}
	fmt.Fprintf(out, "Called about %d book(s).\n", res.Mutated)
	return nil
}

// markNotified stamps books as announced after a successful call. Books
// left unstamped by a failure are logged: the next run calls about them again.
func (a *app) markNotified(ctx context.Context, s *session, books []types.BookRecord) (lifecycle.Result, error) {
	res, err := s.rec.MarkNotified(ctx, books)
	if err == nil {
		return res, nil
	}
	missed := make([]string, 0, len(books)-res.Mutated)
	for _, b := range books[res.Mutated:] {
		missed = append(missed, b.DocID)
	}
	a.logger.Error("call placed but books not marked notified; they will be announced again",
		"doc_ids", missed, "error", err)
	return res, sysError(err)
}
