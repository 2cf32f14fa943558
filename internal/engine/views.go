package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/events"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/grouping"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/logging"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/query"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

// Search returns the live stones of the organization matching q, newest first.
func (e Engine) Search(ctx context.Context, orgID, q string) ([]domain.Stone, error) {
	stones, err := e.liveStones(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return query.Filter(stones, q), nil
}

// History groups the organization's live stones by purchase or sale day in
// the organization's timezone. Sold mode only considers sold stones.
func (e Engine) History(ctx context.Context, orgID string, mode grouping.Mode) ([]grouping.Group, error) {
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	stones, err := e.Repo.ListStones(ctx, repo.StoneFilters{OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if mode == grouping.Sold {
		sold := stones[:0:0]
		for _, s := range stones {
			if s.Sold() {
				sold = append(sold, s)
			}
		}
		stones = sold
	}
	return grouping.Grouper{Location: loc}.Group(stones, mode), nil
}

// ExportRequest selects what to export and how.
type ExportRequest struct {
	Filters export.Filters
	// Format overrides the organization's default format.
	Format export.Format
}

// Export runs the filter-and-export pipeline over the organization's live
// stones. The returned error covers loading only; export outcomes, failures
// included, are reported in the Result.
func (e Engine) Export(ctx context.Context, orgID, actorID string, req ExportRequest) (export.Result, error) {
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return export.Result{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return export.Result{}, err
	}
	stones, err := e.Repo.ListStones(ctx, repo.StoneFilters{OrgID: orgID})
	if err != nil {
		return export.Result{}, err
	}
	format := req.Format
	if format == "" {
		format = export.Format(cfg.Export.DefaultFormat)
	}
	log := e.logger().WithFields(logrus.Fields{"org": orgID, "actor": actorID})
	exp := export.Engine{
		Owners:   cfg.Inventory.Owners,
		Location: loc,
		Format:   format,
		Sink:     e.Sink,
		Log:      log,
		Now:      e.now,
	}
	res := exp.Export(ctx, stones, req.Filters)
	e.recordExport(ctx, orgID, actorID, req.Filters, res)
	return res, nil
}

func (e Engine) recordExport(ctx context.Context, orgID, actorID string, f export.Filters, res export.Result) {
	evtType := events.ExportCompleted
	payload := events.EventPayload{"count": res.Count, "message": res.Message}
	switch {
	case res.Success:
		payload["file_name"] = res.FileName
		payload["location"] = res.Location
	case res.Message == export.MsgFailed:
		payload["failed"] = true
	default:
		evtType = events.ExportEmpty
	}
	if f.HasSelection() {
		payload["selected"] = len(f.SelectedIDs)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err == nil {
		defer tx.Rollback()
		err = e.events().Append(ctx, tx, evtType, orgID, "export", res.FileName, actorID, payload)
		if err == nil {
			err = tx.Commit()
		}
	}
	if err != nil {
		logging.LogError(e.Log, "engine", "Export", orgID, payload, err)
	}
}
