package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

// OrgEnvKey holds the default organization in the workspace .env file.
const OrgEnvKey = "GEMSTONES_ORG"

// EnvFile is the path of the workspace .env file.
func EnvFile(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".env")
}

// LoadEnv exports the workspace .env into the process environment without
// overriding variables that are already set.
func LoadEnv(workspace string) error {
	err := godotenv.Load(EnvFile(workspace))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ResolveOrg picks the active organization: the override (flag or
// GEMSTONES_ORG), then the only organization in the database.
func ResolveOrg(ctx context.Context, override string, r repo.Repo) (string, error) {
	orgID := strings.TrimSpace(override)
	if orgID == "" {
		o, err := r.SingleOrganization(ctx)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", fmt.Errorf("no organization found; run gt org create")
			}
			return "", err
		}
		return o.ID, nil
	}
	if _, err := r.GetOrganization(ctx, orgID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", fmt.Errorf("organization %s not found", orgID)
		}
		return "", err
	}
	return orgID, nil
}

// UseOrg records orgID as GEMSTONES_ORG in the workspace .env, keeping the
// other entries.
func UseOrg(workspace, orgID string) error {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return fmt.Errorf("organization id is required")
	}
	path := EnvFile(workspace)
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}
	env[OrgEnvKey] = orgID
	return godotenv.Write(env, path)
}
