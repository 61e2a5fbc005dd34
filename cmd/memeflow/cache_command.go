package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"memeflow/internal/cache"
)

const fingerprintWidth = 12

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached node results",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmdContext(cmd))
			if err != nil {
				return err
			}
			now := time.Now()
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.Key,
					string(entry.Policy),
					formatAge(entry.Age(now)),
					entryTTL(entry),
					shortFingerprint(entry.Fingerprint),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Policy", "Age", "TTL", "Fingerprint"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [key]",
		Short: "Remove one cache entry, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				key := strings.TrimSpace(args[0])
				removed, err := store.Delete(cmdContext(cmd), key)
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintf(out, "No cache entry named %s\n", key)
					return nil
				}
				fmt.Fprintf(out, "Removed %s\n", key)
				return nil
			}
			count, err := store.Clear(cmdContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d cache entries\n", count)
			return nil
		},
	}
}

func entryTTL(entry cache.Entry) string {
	if entry.Policy != cache.PolicyTTL {
		return "-"
	}
	return formatAge(entry.TTL())
}

func shortFingerprint(fingerprint string) string {
	if fingerprint == "" {
		return "-"
	}
	if len(fingerprint) > fingerprintWidth {
		return fingerprint[:fingerprintWidth]
	}
	return fingerprint
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	}
}
