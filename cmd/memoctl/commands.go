package main

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/agentuity/memocache/cache"
	"github.com/agentuity/memocache/tui"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errNoSQL = errors.New("backend has no SQL tier")

// status names where an entry sits in its lifetime.
func (s *session) status(e *cache.Entry, now time.Time) string {
	switch {
	case cache.IsExpired(e, now, s.cache.Timeout()):
		return "expired"
	case cache.NeedsRefresh(e, now, s.cache.Timeout(), s.cache.Grace()):
		return "stale"
	}
	return "fresh"
}

func (s *session) row(e *cache.Entry, now time.Time) []string {
	return []string{
		e.Key,
		e.Created.Format(time.RFC3339),
		humanize.RelTime(e.Created, now, "ago", "from now"),
		s.status(e, now),
	}
}

func (s *session) table(rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(s.out, tui.Muted("no entries"))
		return
	}
	tui.Table(s.out, s.styled, []string{"KEY", "CREATED", "AGE", "STATUS"}, rows)
}

// entryTable prints every entry of seq, stopping at the first error.
func (s *session) entryTable(seq iter.Seq2[*cache.Entry, error]) error {
	now := time.Now().UTC()
	var rows [][]string
	for e, err := range seq {
		if err != nil {
			return err
		}
		rows = append(rows, s.row(e, now))
	}
	s.table(rows)
	return nil
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every entry in the namespace",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			keys, err := s.backend.Keys(ctx)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				e, err := s.backend.Get(ctx, key)
				if err != nil {
					return errors.Wrapf(err, "reading %s", key)
				}
				if e == nil {
					continue
				}
				e.Key = key
				rows = append(rows, s.row(e, now))
			}
			s.table(rows)
			return nil
		}),
	}
}

type entryView struct {
	Key     string         `json:"key"`
	Created time.Time      `json:"created"`
	Age     string         `json:"age"`
	Status  string         `json:"status"`
	Args    []any          `json:"args"`
	Kwargs  map[string]any `json:"kwargs"`
	Value   any            `json:"value"`
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print one entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			e, err := s.backend.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if e == nil {
				return errors.Newf("no entry for %s", args[0])
			}
			value := e.Value
			if raw, ok := value.(cache.RawValue); ok {
				var decoded any
				if err := raw.Decode(&decoded); err != nil {
					return err
				}
				value = decoded
			}
			now := time.Now().UTC()
			out, err := json.MarshalIndent(entryView{
				Key:     args[0],
				Created: e.Created,
				Age:     humanize.RelTime(e.Created, now, "ago", "from now"),
				Status:  s.status(e, now),
				Args:    e.Args,
				Kwargs:  e.Kwargs,
				Value:   value,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(s.out, string(out))
			return nil
		}),
	}
}

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists KEY",
		Short: "Report whether an entry is stored",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			ok, err := s.backend.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(s.out, ok)
			return nil
		}),
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY...",
		Short: "Delete entries by key",
		Args:  cobra.MinimumNArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			for _, key := range args {
				if err := s.backend.Delete(ctx, key); err != nil {
					return errors.Wrapf(err, "deleting %s", key)
				}
			}
			fmt.Fprintf(s.out, "deleted %d %s\n", len(args), plural(len(args), "entry", "entries"))
			return nil
		}),
	}
}

func newExpiredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expired",
		Short: "List entries older than the timeout",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			return s.entryTable(s.cache.Expired(ctx))
		}),
	}
}

func newStaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "List entries inside the grace window or expired",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			return s.entryTable(s.cache.NeedingRefresh(ctx))
		}),
	}
}

// sqlTiers returns the SQL backends in b, looking inside composites.
func sqlTiers(b cache.Backend) []*cache.SQLBackend {
	switch t := b.(type) {
	case *cache.SQLBackend:
		return []*cache.SQLBackend{t}
	case *cache.CompositeBackend:
		var out []*cache.SQLBackend
		for _, tier := range t.Tiers() {
			out = append(out, sqlTiers(tier)...)
		}
		return out
	}
	return nil
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired entries",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			n, err := s.cache.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			total := int64(n)
			// rows past their expiration column may belong to other prefixes
			for _, sb := range sqlTiers(s.backend) {
				purged, err := sb.PurgeExpired(ctx)
				if err != nil {
					return err
				}
				total += purged
			}
			fmt.Fprintf(s.out, "deleted %d expired %s\n", total, plural(int(total), "entry", "entries"))
			return nil
		}),
	}
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry in the namespace",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			n, err := s.cache.DeleteAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "deleted %d %s\n", n, plural(n, "entry", "entries"))
			return nil
		}),
	}
	cmd.Flags().Bool("yes", false, "confirm deleting everything")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("clear deletes every entry in the namespace; pass --yes to confirm")
		}
		return nil
	}
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the caches table on SQL backends",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			tiers := sqlTiers(s.backend)
			if len(tiers) == 0 {
				return errors.Wrapf(errNoSQL, "%s backend", s.cfg.Backend.Type)
			}
			for _, sb := range tiers {
				if err := sb.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintf(s.out, "migrated %s\n", sb.Dialect())
			}
			return nil
		}),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
