package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/grouping"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: `Search stones ("red & ruby" matches all terms, "emerald | spinel" any)`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.Join(args, " ")
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				stones, err := e.Search(ctx, orgID, q)
				if err != nil {
					return err
				}
				return printStones(stones)
			})
		},
	}
}

func historyCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Stones grouped by purchase or sale day",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := grouping.ParseMode(mode)
			if !ok {
				return fmt.Errorf("invalid --mode %q (want purchased or sold)", mode)
			}
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				groups, err := e.History(ctx, orgID, m)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				if len(groups) == 0 {
					fmt.Println("No stones yet")
					return nil
				}
				for _, g := range groups {
					tw := newTable()
					tw.SetTitle(fmt.Sprintf("%s (%d)", g.Title, len(g.Items)))
					appendStoneRows(tw, g.Items)
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(grouping.Purchased), "purchased or sold")
	return cmd
}

func exportCmd() *cobra.Command {
	var from, to, status, owner, format, out string
	var selected []string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stones to CSV or XLSX",
		Long: `Export filters the organization's stones and writes one document.
--select exports exactly the listed stones and ignores every other filter.
The document is delivered to the S3 bucket when --s3-endpoint is set,
otherwise to --export-dir; --out also copies it to a local path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			soldStatus, err := export.ParseSoldStatus(status)
			if err != nil {
				return err
			}
			var f export.Format
			if format != "" {
				var ok bool
				if f, ok = export.ParseFormat(format); !ok {
					return fmt.Errorf("invalid --format %q (want csv or xlsx)", format)
				}
			}
			return withOrg(cmd.Context(), auth.PermStoneExport, func(ctx context.Context, e engine.Engine, orgID string) error {
				cfg, err := e.OrgConfig(ctx, orgID)
				if err != nil {
					return err
				}
				loc, err := cfg.Location()
				if err != nil {
					return err
				}
				start, err := export.ParseDay(from, loc)
				if err != nil {
					return err
				}
				end, err := export.ParseDay(to, loc)
				if err != nil {
					return err
				}
				if e.Sink, err = exportSink(); err != nil {
					return err
				}
				res, err := e.Export(ctx, orgID, actorID(), engine.ExportRequest{
					Filters: export.Filters{
						StartDate:   start,
						EndDate:     end,
						SoldStatus:  soldStatus,
						Owner:       owner,
						SelectedIDs: selected,
					},
					Format: f,
				})
				if err != nil {
					return err
				}
				if res.Success && out != "" {
					path := out
					if st, statErr := os.Stat(out); statErr == nil && st.IsDir() {
						path = filepath.Join(out, res.FileName)
					}
					if err := os.WriteFile(path, res.Document, 0o644); err != nil {
						return err
					}
					res.Location = path
				}
				if viper.GetBool("json") {
					res.Document = nil
					if err := printJSON(res); err != nil {
						return err
					}
				} else {
					fmt.Println(res.Message)
					if res.Location != "" {
						fmt.Println(res.Location)
					}
				}
				if res.Message == export.MsgFailed {
					return fmt.Errorf("export failed")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "all", "all, sold or unsold")
	cmd.Flags().StringVar(&owner, "owner", export.AllOwners, "owner or all")
	cmd.Flags().StringSliceVar(&selected, "select", nil, "stone ids to export, ignoring other filters")
	cmd.Flags().StringVar(&format, "format", "", "csv or xlsx (default from org config)")
	cmd.Flags().StringVar(&out, "out", "", "file or directory to write the document to")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every change to the organization: stones created, sold, deleted, exports and config updates.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				f.OrgID = orgID
				items, err := e.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show organization status",
		Long:  "Stone counts for the active organization, split by owner and sold state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				o, err := e.Repo.GetOrganization(ctx, orgID)
				if err != nil {
					return err
				}
				stones, err := e.ListStones(ctx, repo.StoneFilters{OrgID: orgID})
				if err != nil {
					return err
				}
				sold := 0
				byOwner := map[string]int{}
				for _, s := range stones {
					if s.Sold() {
						sold++
					}
					owner := "(none)"
					if s.Owner != nil && *s.Owner != "" {
						owner = *s.Owner
					}
					byOwner[owner]++
				}
				out := map[string]any{
					"org_id":   o.ID,
					"status":   o.Status,
					"total":    len(stones),
					"sold":     sold,
					"unsold":   len(stones) - sold,
					"by_owner": byOwner,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Organization: %s (%s)\n", o.ID, o.Status)
				fmt.Printf("Stones: %d (%d sold, %d unsold)\n", len(stones), sold, len(stones)-sold)
				for owner, c := range byOwner {
					fmt.Printf("  %s: %d\n", owner, c)
				}
				return nil
			})
		},
	}
}
