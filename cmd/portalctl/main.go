// portalctl is the operator CLI for the foundation portal. It reads the same
// environment as the server.
//
//	portalctl events                      upcoming events and their seat counters
//	portalctl draft -user 42              a member's saved application draft
//	portalctl outcomes [-user 42] [-limit 20]
//	portalctl token -id 42 -cms-token ... mint a session token for testing
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/config"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/database"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/model"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/repository"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/service"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/session"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/upload"
)

var errUsage = errors.New("usage: portalctl events | draft -user ID | outcomes [-user ID] [-limit N] | token -id ID -cms-token TOKEN")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg := config.Load()
	logger := config.NewLogger(cfg, os.Stderr)
	client := cms.New(cfg.CMSURL, cfg.CMSToken, cfg.CMSTimeout, logger)

	switch args[0] {
	case "events":
		return listEvents(ctx, client, out)
	case "draft":
		fs := flag.NewFlagSet("draft", flag.ContinueOnError)
		user := fs.Int("user", 0, "member id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *user <= 0 {
			return errors.New("draft: -user is required")
		}
		drafts := service.NewDraftService(client, upload.New(client, cfg.UploadReconcileDelay, logger), nil, logger)
		return showDraft(ctx, client, drafts, *user, out)
	case "outcomes":
		fs := flag.NewFlagSet("outcomes", flag.ContinueOnError)
		user := fs.Int("user", 0, "member id, 0 for all")
		limit := fs.Int("limit", 20, "rows to show")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("outcomes: DATABASE_URL is not set")
		}
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		return listOutcomes(ctx, repository.NewOutcomeRepository(pool), *user, *limit, out)
	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		id := fs.Int("id", 0, "member id")
		email := fs.String("email", "", "member email")
		name := fs.String("name", "", "member display name")
		cmsToken := fs.String("cms-token", "", "the member's content store token")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id <= 0 || *cmsToken == "" {
			return errors.New("token: -id and -cms-token are required")
		}
		tok, err := session.NewVerifier(cfg.SessionSecret).Issue(model.Principal{
			ID: *id, Email: *email, Name: *name, Token: *cmsToken,
		}, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tok)
		return nil
	default:
		return errUsage
	}
}

func listEvents(ctx context.Context, client *cms.Client, out io.Writer) error {
	events, err := client.ListEvents(ctx, model.EventStateUpcoming)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	color.New(color.FgCyan).Fprintf(out, "\nUpcoming events (%d)\n", len(events))
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Document ID", "Title", "Starts", "Seats", "Remaining", "Registrants"})
	var drifted []string
	for _, e := range events {
		starts := ""
		if !e.StartsAt.IsZero() {
			starts = e.StartsAt.Format("2006-01-02 15:04")
		}
		table.Append([]string{
			e.DocumentID,
			e.Title,
			starts,
			strconv.Itoa(e.Seats),
			strconv.Itoa(e.SeatsRemaining),
			strconv.Itoa(len(e.Registrants)),
		})
		if !e.Consistent() {
			drifted = append(drifted, e.DocumentID)
		}
	}
	table.Render()

	for _, id := range drifted {
		color.New(color.FgYellow).Fprintf(out, "warning: %s seat counter does not match its registrant list\n", id)
	}
	return nil
}

func showDraft(ctx context.Context, client *cms.Client, drafts *service.DraftService, userID int, out io.Writer) error {
	entries, err := client.FindDrafts(ctx, userID)
	if err != nil {
		return fmt.Errorf("find drafts: %w", err)
	}
	if len(entries) == 0 {
		color.New(color.FgYellow).Fprintf(out, "member %d has no saved draft\n", userID)
		return nil
	}
	if len(entries) > 1 {
		color.New(color.FgYellow).Fprintf(out, "member %d has %d drafts; showing %s\n", userID, len(entries), entries[0].DocumentID())
	}

	draft, err := drafts.Load(ctx, model.Principal{ID: userID})
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}

	keys := make([]string, 0, len(draft))
	for k := range draft {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Value"})
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprint(draft[k])})
	}
	table.Render()
	return nil
}

// outcomeLister is the read side of the save outcome journal.
type outcomeLister interface {
	ListRecent(ctx context.Context, userID, limit int) ([]model.SaveOutcome, error)
}

func listOutcomes(ctx context.Context, repo outcomeLister, userID, limit int, out io.Writer) error {
	outcomes, err := repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"When", "Member", "Outcome", "Draft", "Failed uploads", "Reason"})
	lost := 0
	for _, o := range outcomes {
		if o.Outcome == string(service.OutcomeNotPersisted) {
			lost++
		}
		table.Append([]string{
			o.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(o.UserID),
			o.Outcome,
			o.DraftID,
			fmt.Sprint(o.FailedUploads),
			o.Reason,
		})
	}
	table.Render()

	if lost > 0 {
		color.New(color.FgRed).Fprintf(out, "%d of %d saves were not persisted\n", lost, len(outcomes))
	}
	return nil
}
