package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/config"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/events"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/logging"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

var (
	ErrAlreadySold = errors.New("stone is already sold")
	ErrNotSold     = errors.New("stone is not sold")
)

// ValidationError carries per-field failures for a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, k := range sortedKeys(e.Fields) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Log      logrus.FieldLogger
	Sink     export.Sink
	Validate *validator.Validate
	Now      func() time.Time
}

func New(db *sql.DB, logger logrus.FieldLogger) Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Auth:     auth.Service{DB: db},
		Log:      logger,
		Validate: newValidator(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) validate(v any) error {
	val := e.Validate
	if val == nil {
		val = newValidator()
	}
	if err := val.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := map[string]string{}
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return ValidationError{Fields: fields}
		}
		return err
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("stonedate", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		_, ok := domain.ParseDate(&s, time.UTC)
		return ok
	})
	return v
}

func newID() string {
	return strings.ToLower(ulid.Make().String())
}

// OrgConfig returns the stored configuration of an organization.
func (e Engine) OrgConfig(ctx context.Context, orgID string) (*config.Config, error) {
	if _, err := e.Repo.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return e.Repo.GetOrgConfig(ctx, orgID)
}

// InitOrganization creates an organization with its config, seeds roles from
// the config and makes actorID its owner.
func (e Engine) InitOrganization(ctx context.Context, orgID, name, actorID string, cfg *config.Config) (domain.Organization, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return domain.Organization{}, ValidationError{Fields: map[string]string{"id": "required"}}
	}
	if actorID == "" {
		return domain.Organization{}, ValidationError{Fields: map[string]string{"actor_id": "required"}}
	}
	if name == "" {
		name = orgID
	}
	if cfg == nil {
		cfg = config.Default(orgID)
	}
	cfg.Organization.ID = orgID
	if cfg.Organization.Name == "" || cfg.Organization.Name == orgID {
		cfg.Organization.Name = name
	}
	if err := cfg.Validate(); err != nil {
		return domain.Organization{}, err
	}
	now := e.stamp()
	org := domain.Organization{ID: orgID, Name: name, Status: "active", CreatedAt: now}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertOrganization(ctx, tx, org); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	if err := e.Repo.UpsertOrgConfig(ctx, tx, orgID, cfg); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization config: %w", err)
	}
	if err := e.seedRoles(ctx, tx, orgID, cfg); err != nil {
		return domain.Organization{}, err
	}
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return domain.Organization{}, fmt.Errorf("ensure actor: %w", err)
	}
	if err := e.Repo.AssignMember(ctx, tx, orgID, actorID, "owner", now); err != nil {
		return domain.Organization{}, fmt.Errorf("assign owner: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.OrgCreated, orgID, "organization", orgID, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	e.logger().WithFields(logrus.Fields{"org": orgID, "actor": actorID}).Info("organization created")
	return org, nil
}

func (e Engine) seedRoles(ctx context.Context, tx *sql.Tx, orgID string, cfg *config.Config) error {
	roles := cfg.RBAC.Roles
	if len(roles) == 0 {
		roles = config.Default(orgID).RBAC.Roles
	}
	for _, roleID := range sortedKeys(roles) {
		role := roles[roleID]
		if err := e.Repo.InsertRole(ctx, tx, roleID, role.Description); err != nil {
			return fmt.Errorf("insert role %s: %w", roleID, err)
		}
		if err := e.Repo.SetRolePermissions(ctx, tx, orgID, roleID, role.Permissions); err != nil {
			return fmt.Errorf("role %s permissions: %w", roleID, err)
		}
	}
	return nil
}

// UpdateOrgConfig replaces the organization config and reseeds its roles.
func (e Engine) UpdateOrgConfig(ctx context.Context, orgID, actorID string, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config nil")
	}
	if _, err := e.Repo.GetOrganization(ctx, orgID); err != nil {
		return err
	}
	cfg.Organization.ID = orgID
	if err := cfg.Validate(); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertOrgConfig(ctx, tx, orgID, cfg); err != nil {
		return err
	}
	if err := e.seedRoles(ctx, tx, orgID, cfg); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.OrgConfigUpdated, orgID, "organization", orgID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AddMember grants roleID in the organization to actorID.
func (e Engine) AddMember(ctx context.Context, orgID, actorID, roleID string) error {
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return err
	}
	if _, ok := cfg.RBAC.Roles[roleID]; !ok && len(cfg.RBAC.Roles) > 0 {
		return ValidationError{Fields: map[string]string{"role": "unknown"}}
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return err
	}
	if err := e.Repo.AssignMember(ctx, tx, orgID, actorID, roleID, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) logger() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logging.Discard()
}
