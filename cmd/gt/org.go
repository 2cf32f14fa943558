package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/app"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/config"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage organizations"}
	org.AddCommand(orgCreateCmd())
	org.AddCommand(orgListCmd())
	org.AddCommand(orgShowCmd())
	org.AddCommand(orgUseCmd())
	org.AddCommand(orgConfigCmd())
	org.AddCommand(orgMemberCmd())
	return org
}

func orgCreateCmd() *cobra.Command {
	var id, name, file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an organization owned by the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			if file != "" {
				var err error
				if cfg, err = config.FromFile(file); err != nil {
					return err
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.InitOrganization(ctx, id, name, actorID(), cfg)
				if err != nil {
					return err
				}
				return printOrgs([]domain.Organization{o})
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "organization id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&file, "config", "", "YAML config to start from")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func orgListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListOrganizations(ctx)
				if err != nil {
					return err
				}
				return printOrgs(items)
			})
		},
	}
}

func orgShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				o, err := e.Repo.GetOrganization(ctx, orgID)
				if err != nil {
					return err
				}
				return printOrgs([]domain.Organization{o})
			})
		},
	}
}

func orgUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set the default organization for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID := strings.TrimSpace(args[0])
			err := withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				_, err := r.GetOrganization(ctx, orgID)
				return err
			})
			if err != nil {
				return fmt.Errorf("organization %s: %w", orgID, err)
			}
			workspace := viper.GetString("workspace")
			if err := app.UseOrg(workspace, orgID); err != nil {
				return err
			}
			fmt.Printf("Set %s=%s in %s\n", app.OrgEnvKey, orgID, app.EnvFile(workspace))
			return nil
		},
	}
}

func orgConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage organization config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the config stored in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				c, err := e.OrgConfig(ctx, orgID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(c)
			})
		},
	})
	cfg.AddCommand(orgConfigImportCmd())
	cfg.AddCommand(orgConfigValidateCmd())
	return cfg
}

func orgConfigImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the organization config with a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withOrg(cmd.Context(), auth.PermOrgAdmin, func(ctx context.Context, e engine.Engine, orgID string) error {
				if c.Organization.ID != "" && c.Organization.ID != orgID {
					return fmt.Errorf("config is for organization %s, not %s", c.Organization.ID, orgID)
				}
				if err := e.UpdateOrgConfig(ctx, orgID, actorID(), c); err != nil {
					return err
				}
				fmt.Printf("Imported %s into %s\n", file, orgID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func orgConfigValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a YAML file, or the stored config when --file is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				err = withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
					c, err := e.OrgConfig(ctx, orgID)
					if err != nil {
						return err
					}
					return c.Validate()
				})
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to YAML config")
	return cmd
}

func orgMemberCmd() *cobra.Command {
	member := &cobra.Command{Use: "member", Short: "Manage organization members"}
	var target, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Grant a role to an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermOrgAdmin, func(ctx context.Context, e engine.Engine, orgID string) error {
				return e.AddMember(ctx, orgID, target, role)
			})
		},
	}
	add.Flags().StringVar(&target, "actor", "", "actor id")
	add.Flags().StringVar(&role, "role", "member", "role id")
	_ = add.MarkFlagRequired("actor")
	member.AddCommand(add)
	member.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				items, err := e.Repo.ListMembers(ctx, orgID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Actor", "Role", "Since"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ActorID, m.Role, m.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return member
}

func printOrgs(items []domain.Organization) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Created"})
	for _, o := range items {
		tw.AppendRow(table.Row{o.ID, o.Name, o.Status, o.CreatedAt})
	}
	tw.Render()
	return nil
}
