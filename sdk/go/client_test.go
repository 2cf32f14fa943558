package gemstonesdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/db"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/migrate"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	e := engine.New(conn, nil)
	e.Sink = &export.MemorySink{}
	ctx := context.Background()
	_, err = e.InitOrganization(ctx, "acme", "Acme", "alice", nil)
	require.NoError(t, err)
	_, plain, err := e.CreateAPIKey(ctx, "alice", "sdk")
	require.NoError(t, err)

	handler, err := server.New(server.Config{Engine: e})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	c := New(srv.URL, "acme")
	c.APIKey = plain
	return c
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	ruby, err := c.CreateStone(ctx, StoneInput{Name: "Ruby", Color: "Red", Weight: "1.50", Owner: "Company", PurchaseDate: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, "1.5", ruby.Weight)
	_, err = c.CreateStone(ctx, StoneInput{Name: "Emerald", Color: "Green"})
	require.NoError(t, err)

	page, err := c.ListStones(ctx, "", 1, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.NotEmpty(t, page.NextCursor)
	page, err = c.ListStones(ctx, "", 1, page.NextCursor)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	hits, err := c.Search(ctx, "red & ruby")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ruby.ID, hits[0].ID)

	sold, err := c.Sell(ctx, ruby.ID, "900", "USD", "Jane")
	require.NoError(t, err)
	assert.True(t, sold.Sold)

	groups, err := c.History(ctx, "sold")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	res, err := c.Export(ctx, ExportRequest{Status: "sold"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Count)
	assert.Contains(t, string(res.Document), "Ruby - Red")

	res, err = c.Export(ctx, ExportRequest{Owner: "Partner"})
	require.NoError(t, err)
	assert.False(t, res.Success)

	evts, err := c.Events(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, evts, 3)
}

func TestClientErrors(t *testing.T) {
	c := newClient(t)
	c.APIKey = "gt_wrong"
	_, err := c.Search(context.Background(), "ruby")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
