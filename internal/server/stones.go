package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

func registerStones(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stones",
		Method:      http.MethodGet,
		Path:        "/orgs/{org}/stones",
		Summary:     "List stones, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Org    string `path:"org"`
		Owner  string `query:"owner"`
		Status string `query:"status" enum:"all,sold,unsold" default:"all"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedStones `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, input.Org, auth.PermStoneRead); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		filter := repo.StoneFilters{
			OrgID:           input.Org,
			Owner:           input.Owner,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		}
		switch input.Status {
		case "sold":
			sold := true
			filter.Sold = &sold
		case "unsold":
			sold := false
			filter.Sold = &sold
		}
		stones, err := e.ListStones(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedStones{Items: []StoneResponse{}}
		if len(stones) > limit {
			stones = stones[:limit]
			last := stones[limit-1]
			resp.NextCursor = composeCursor(domain.Deref(last.CreatedAt), last.ID)
		}
		resp.Items = mapStones(stones)
		return &struct {
			Body paginatedStones `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-stone",
		Method:        http.MethodPost,
		Path:          "/orgs/{org}/stones",
		Summary:       "Add a stone",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Org  string            `path:"org"`
		Body engine.StoneInput `json:"body"`
	}) (*struct {
		Body StoneResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, input.Org, auth.PermStoneWrite)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.CreateStone(ctx, input.Org, principal.ActorID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoneResponse `json:"body"`
		}{Body: stoneResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stone",
		Method:      http.MethodGet,
		Path:        "/orgs/{org}/stones/{id}",
		Summary:     "Get stone",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Org string `path:"org"`
		ID  string `path:"id"`
	}) (*struct {
		Body StoneResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, input.Org, auth.PermStoneRead); err != nil {
			return nil, handleError(err)
		}
		s, err := e.GetStone(ctx, input.Org, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoneResponse `json:"body"`
		}{Body: stoneResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stone",
		Method:      http.MethodPatch,
		Path:        "/orgs/{org}/stones/{id}",
		Summary:     "Update stone attributes",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Org  string            `path:"org"`
		ID   string            `path:"id"`
		Body engine.StonePatch `json:"body"`
	}) (*struct {
		Body StoneResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, input.Org, auth.PermStoneWrite)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.UpdateStone(ctx, input.Org, principal.ActorID, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoneResponse `json:"body"`
		}{Body: stoneResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-stone",
		Method:        http.MethodDelete,
		Path:          "/orgs/{org}/stones/{id}",
		Summary:       "Delete stone",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Org string `path:"org"`
		ID  string `path:"id"`
	}) (*struct{}, error) {
		principal, err := requirePermission(ctx, e, input.Org, auth.PermStoneWrite)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteStone(ctx, input.Org, principal.ActorID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sell-stone",
		Method:      http.MethodPost,
		Path:        "/orgs/{org}/stones/{id}/sell",
		Summary:     "Mark stone as sold",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Org  string      `path:"org"`
		ID   string      `path:"id"`
		Body *engine.Sale `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body StoneResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, input.Org, auth.PermStoneWrite)
		if err != nil {
			return nil, handleError(err)
		}
		var sale engine.Sale
		if input.Body != nil {
			sale = *input.Body
		}
		s, err := e.MarkSold(ctx, input.Org, principal.ActorID, input.ID, sale)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoneResponse `json:"body"`
		}{Body: stoneResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unsell-stone",
		Method:      http.MethodDelete,
		Path:        "/orgs/{org}/stones/{id}/sell",
		Summary:     "Revert a sale",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Org string `path:"org"`
		ID  string `path:"id"`
	}) (*struct {
		Body StoneResponse `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, input.Org, auth.PermStoneWrite)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.MarkUnsold(ctx, input.Org, principal.ActorID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StoneResponse `json:"body"`
		}{Body: stoneResponse(s)}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
