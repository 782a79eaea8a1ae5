package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/matching"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/session"
	"rallymatch/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  migrate                     apply database migrations
  rank <user_id>              print the ranked feed of a user
  resolve <user_a> <user_b>   open (or find) the chat session of a pair
  history <session_id> [seq]  print messages after seq
  sessions <user_id>          list a user's chats`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	db, err := storage.OpenPostgres(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// No Redis: the CLI never watches live messages.
	storageSvc := storage.NewStorageService(db, nil, logging.New(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command, args := os.Args[1], os.Args[2:]
	if err := run(ctx, storageSvc, cfg, command, args); err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func need(args []string, n int, form string) error {
	if len(args) != n {
		return fmt.Errorf("usage: admin %s", form)
	}
	return nil
}

func run(ctx context.Context, s *storage.Service, cfg *config.Config, command string, args []string) error {
	out := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer out.Flush()

	switch command {
	case "migrate":
		if err := s.Migrate(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")

	case "rank":
		if err := need(args, 1, "rank <user_id>"); err != nil {
			return err
		}
		feed := matching.NewService(s, matching.RankOptions{Mutual: cfg.MutualLevels}, nil)
		ranked, err := feed.Feed(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "ID\tNAME\tLEVEL\tOVERLAP\tDAYS")
		for _, r := range ranked {
			fmt.Fprintf(out, "%s\t%s\t%s\t%d\t%s\n", r.Profile.ID, r.Profile.Name, r.Profile.Level,
				r.AvailabilityOverlap, strings.Join(r.Profile.AvailableDays, ","))
		}

	case "resolve":
		if err := need(args, 2, "resolve <user_a> <user_b>"); err != nil {
			return err
		}
		cs, err := session.NewResolver(s).Resolve(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "session\t%s\nusers\t%s %s\ncreated\t%s\n", cs.ID, cs.User1ID, cs.User2ID, cs.CreatedAt.Format(time.RFC3339))

	case "history":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: admin history <session_id> [seq]")
		}
		var after int64
		if len(args) == 2 {
			var err error
			if after, err = strconv.ParseInt(args[1], 10, 64); err != nil {
				return fmt.Errorf("invalid seq %q", args[1])
			}
		}
		msgs, err := messaging.NewCoordinator(s).History(ctx, args[0], after)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "SEQ\tSENDER\tAT\tTEXT")
		for _, m := range msgs {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", m.Seq, m.SenderID, m.CreatedAt.Format(time.RFC3339), m.Text)
		}

	case "sessions":
		if err := need(args, 1, "sessions <user_id>"); err != nil {
			return err
		}
		chats, err := session.NewResolver(s).ListForUser(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "SESSION\tPEER\tNAME\tLAST")
		for _, c := range chats {
			fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", c.SessionID, c.PeerID, c.PeerName, c.LastMessage)
		}

	default:
		return fmt.Errorf("unknown command\n\n%s", usage)
	}
	return nil
}
