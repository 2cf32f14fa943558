package engine_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/db"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/events"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/grouping"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/migrate"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Sink   *export.MemorySink
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	sink := &export.MemorySink{}
	eng := engine.New(conn, nil)
	eng.Sink = sink
	eng.Now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	_, err = eng.InitOrganization(ctx, "acme", "Acme Gems", "alice", nil)
	require.NoError(t, err)
	return testEnv{Engine: eng, Sink: sink, Ctx: ctx}
}

func (env testEnv) add(t *testing.T, in engine.StoneInput) string {
	t.Helper()
	s, err := env.Engine.CreateStone(env.Ctx, "acme", "alice", in)
	require.NoError(t, err)
	return s.ID
}

func TestInitOrganizationGrantsOwner(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.Auth.Require(env.Ctx, "acme", "alice", auth.PermOrgAdmin))
	err := env.Engine.Auth.Require(env.Ctx, "acme", "mallory", auth.PermStoneRead)
	var fe auth.ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, auth.PermStoneRead, fe.Permission)

	require.NoError(t, env.Engine.AddMember(env.Ctx, "acme", "bob", "viewer"))
	require.NoError(t, env.Engine.Auth.Require(env.Ctx, "acme", "bob", auth.PermStoneRead))
	assert.Error(t, env.Engine.Auth.Require(env.Ctx, "acme", "bob", auth.PermStoneExport))

	_, err = env.Engine.InitOrganization(env.Ctx, "acme", "dup", "alice", nil)
	assert.Error(t, err)
}

func TestCreateStoneValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateStone(env.Ctx, "acme", "alice", engine.StoneInput{Weight: "abc"})
	var ve engine.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields["Name"])
	assert.Equal(t, "numeric", ve.Fields["Weight"])

	_, err = env.Engine.CreateStone(env.Ctx, "acme", "alice", engine.StoneInput{Name: "Ruby", Owner: "Stranger", BuyCurrency: "XYZ"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "oneof", ve.Fields["Owner"])
	assert.Equal(t, "oneof", ve.Fields["BuyCurrency"])

	_, err = env.Engine.CreateStone(env.Ctx, "acme", "alice", engine.StoneInput{Name: "Ruby", Date: "yesterday"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "stonedate", ve.Fields["Date"])

	_, err = env.Engine.CreateStone(env.Ctx, "missing", "alice", engine.StoneInput{Name: "Ruby"})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestStoneLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.add(t, engine.StoneInput{Name: "Sapphire", Color: "Blue", Weight: "2.10", BuyPrice: "900", BuyCurrency: "USD", Owner: "Company", PurchaseDate: "2024-06-01"})

	s, err := env.Engine.GetStone(env.Ctx, "acme", id)
	require.NoError(t, err)
	assert.Equal(t, "2.1", s.Weight.String())
	assert.False(t, s.Sold())

	comment := "heated"
	s, err = env.Engine.UpdateStone(env.Ctx, "acme", "alice", id, engine.StonePatch{Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, "heated", *s.Comment)

	s, err = env.Engine.MarkSold(env.Ctx, "acme", "alice", id, engine.Sale{SellPrice: "1500", SellCurrency: "USD", Buyer: "Jane"})
	require.NoError(t, err)
	require.True(t, s.Sold())
	assert.Equal(t, "2024-06-15T12:00:00Z", *s.SoldAt)

	_, err = env.Engine.MarkSold(env.Ctx, "acme", "alice", id, engine.Sale{})
	assert.ErrorIs(t, err, engine.ErrAlreadySold)

	s, err = env.Engine.MarkUnsold(env.Ctx, "acme", "alice", id)
	require.NoError(t, err)
	assert.False(t, s.Sold())
	assert.Equal(t, "Jane", *s.Buyer)
	_, err = env.Engine.MarkUnsold(env.Ctx, "acme", "alice", id)
	assert.ErrorIs(t, err, engine.ErrNotSold)

	require.NoError(t, env.Engine.DeleteStone(env.Ctx, "acme", "alice", id))
	_, err = env.Engine.GetStone(env.Ctx, "acme", id)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.ErrorIs(t, env.Engine.DeleteStone(env.Ctx, "acme", "alice", id), repo.ErrNotFound)

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventFilters{OrgID: "acme", EntityID: id, Limit: 10})
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{events.StoneDeleted, events.StoneUnsold, events.StoneSold, events.StoneUpdated, events.StoneCreated}, types)
}

func TestSearchAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ruby := env.add(t, engine.StoneInput{Name: "Ruby", Color: "Red", PurchaseDate: "2024-05-01"})
	env.add(t, engine.StoneInput{Name: "Emerald", Color: "Green", PurchaseDate: "2024-05-02"})
	spinel := env.add(t, engine.StoneInput{Name: "Spinel", Color: "Red"})
	garnet := env.add(t, engine.StoneInput{Name: "Garnet", Color: "Red", PurchaseDate: "2024-05-03"})
	_, err := env.Engine.MarkSold(env.Ctx, "acme", "alice", garnet, engine.Sale{SoldAt: "2024-06-11T09:00:00Z"})
	require.NoError(t, err)
	require.NoError(t, env.Engine.DeleteStone(env.Ctx, "acme", "alice", garnet))

	hits, err := env.Engine.Search(env.Ctx, "acme", "red & ruby")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ruby, hits[0].ID)

	hits, err = env.Engine.Search(env.Ctx, "acme", "red")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.ElementsMatch(t, []string{ruby, spinel}, []string{hits[0].ID, hits[1].ID})

	hits, err = env.Engine.Search(env.Ctx, "acme", "garnet")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = env.Engine.Search(env.Ctx, "acme", "emerald | spinel")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	groups, err := env.Engine.History(env.Ctx, "acme", grouping.Purchased)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "02-05-2024", groups[0].Title)
	assert.Equal(t, "01-05-2024", groups[1].Title)
	assert.Equal(t, grouping.UndatedTitle, groups[2].Title)

	_, err = env.Engine.MarkSold(env.Ctx, "acme", "alice", ruby, engine.Sale{SoldAt: "2024-06-10T09:00:00Z"})
	require.NoError(t, err)
	sold, err := env.Engine.History(env.Ctx, "acme", grouping.Sold)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, "10-06-2024", sold[0].Title)
	assert.Equal(t, ruby, sold[0].Items[0].ID)
}

func TestExportDeliversAndRecords(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, engine.StoneInput{Name: "Ruby", Color: "Red", Owner: "Company", BuyPrice: "100", BuyCurrency: "USD", Date: "2024-06-01"})
	env.add(t, engine.StoneInput{Name: "Opal", Owner: "Partner", Date: "2024-01-01"})
	gone := env.add(t, engine.StoneInput{Name: "Garnet", Owner: "Company", Date: "2024-06-05"})
	require.NoError(t, env.Engine.DeleteStone(env.Ctx, "acme", "alice", gone))

	res, err := env.Engine.Export(env.Ctx, "acme", "alice", engine.ExportRequest{Filters: export.Filters{
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "gemstones_20240615_20240601-20240630.csv", res.FileName)
	doc, ok := env.Sink.Get(res.Location)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(doc), "Date,Bill Number,Stone Name + Color"))
	assert.Contains(t, string(doc), "Ruby - Red")
	assert.NotContains(t, string(doc), "Garnet")

	res, err = env.Engine.Export(env.Ctx, "acme", "alice", engine.ExportRequest{Filters: export.Filters{SelectedIDs: []string{gone}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, export.MsgNoSelection, res.Message)

	res, err = env.Engine.Export(env.Ctx, "acme", "alice", engine.ExportRequest{Filters: export.Filters{SoldStatus: export.StatusSold}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, export.MsgNoMatches, res.Message)

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, repo.EventFilters{OrgID: "acme", EntityKind: "export", Limit: 5})
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, events.ExportEmpty, evts[0].Type)
	assert.Equal(t, events.ExportEmpty, evts[1].Type)
	assert.Equal(t, events.ExportCompleted, evts[2].Type)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(evts[2].Payload), &payload))
	assert.Equal(t, float64(1), payload["count"])
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, "alice", "ci")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plain, "gt_"))
	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(plain))
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)

	keys, err := env.Engine.ListAPIKeys(env.Ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	require.NoError(t, env.Engine.RevokeAPIKey(env.Ctx, key.ID, "alice"))
	keys, err = env.Engine.ListAPIKeys(env.Ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, keys)
}
