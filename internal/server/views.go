package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/grouping"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

func registerViews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "search-stones",
		Method:      http.MethodGet,
		Path:        "/orgs/{org}/search",
		Summary:     "Search stones",
		Description: "Terms joined with & must all match, terms joined with | may match any. Matching is case-insensitive.",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Org string `path:"org"`
		Q   string `query:"q"`
	}) (*struct {
		Body []StoneResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, input.Org, auth.PermStoneRead); err != nil {
			return nil, handleError(err)
		}
		stones, err := e.Search(ctx, input.Org, input.Q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []StoneResponse `json:"body"`
		}{Body: mapStones(stones)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stone-history",
		Method:      http.MethodGet,
		Path:        "/orgs/{org}/history",
		Summary:     "Stones grouped by purchase or sale day",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Org  string `path:"org"`
		Mode string `query:"mode" enum:"purchased,sold" default:"purchased"`
	}) (*struct {
		Body []HistoryGroupResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, input.Org, auth.PermStoneRead); err != nil {
			return nil, handleError(err)
		}
		mode, ok := grouping.ParseMode(input.Mode)
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid mode", map[string]any{"mode": input.Mode})
		}
		groups, err := e.History(ctx, input.Org, mode)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []HistoryGroupResponse `json:"body"`
		}{Body: historyResponse(groups)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-stones",
		Method:      http.MethodPost,
		Path:        "/orgs/{org}/exports",
		Summary:     "Export stones",
		Description: "Always answers 200 with the outcome in the body; success=false carries the message to show.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Org  string        `path:"org"`
		Body ExportRequest `json:"body"`
	}) (*struct {
		Body ExportResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, input.Org, auth.PermStoneExport)
		if err != nil {
			return nil, handleError(err)
		}
		req, err := exportRequest(ctx, e, input.Org, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.Export(ctx, input.Org, principal.ActorID, req)
		if err != nil {
			return nil, handleError(err)
		}
		resp := ExportResponse{
			Success:     res.Success,
			Message:     res.Message,
			FileName:    res.FileName,
			Location:    res.Location,
			Count:       res.Count,
			ContentType: res.ContentType,
			Document:    res.Document,
		}
		return &struct {
			Body ExportResponse `json:"body"`
		}{Body: resp}, nil
	})
}

// exportRequest parses the day bounds in the organization's timezone.
func exportRequest(ctx context.Context, e engine.Engine, orgID string, body ExportRequest) (engine.ExportRequest, error) {
	cfg, err := e.OrgConfig(ctx, orgID)
	if err != nil {
		return engine.ExportRequest{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return engine.ExportRequest{}, err
	}
	fields := map[string]string{}
	from, err := export.ParseDay(body.From, loc)
	if err != nil {
		fields["from"] = "date"
	}
	to, err := export.ParseDay(body.To, loc)
	if err != nil {
		fields["to"] = "date"
	}
	status, err := export.ParseSoldStatus(body.Status)
	if err != nil {
		fields["status"] = "oneof"
	}
	var format export.Format
	if body.Format != "" {
		f, ok := export.ParseFormat(body.Format)
		if !ok {
			fields["format"] = "oneof"
		}
		format = f
	}
	if len(fields) > 0 {
		return engine.ExportRequest{}, engine.ValidationError{Fields: fields}
	}
	return engine.ExportRequest{
		Filters: export.Filters{
			StartDate:   from,
			EndDate:     to,
			SoldStatus:  status,
			Owner:       body.Owner,
			SelectedIDs: body.SelectedIDs,
		},
		Format: format,
	}, nil
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/orgs/{org}/events",
		Summary:     "Activity log, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Org        string `path:"org"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, input.Org, auth.PermStoneRead); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, repo.EventFilters{
			OrgID:      input.Org,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      limit + 1,
			Cursor:     cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, ev := range items {
			resp.Items = append(resp.Items, eventResponse(ev))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create an API key for the current actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body" required:"false"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, plain, err := e.CreateAPIKey(ctx, principal.ActorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		resp := apiKeyResponse(key)
		resp.Key = plain
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "API keys of the current actor",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-api-key",
		Method:        http.MethodDelete,
		Path:          "/apikeys/{id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAPIKey(ctx, input.ID, principal.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
