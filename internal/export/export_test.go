package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/export"
)

func strp(s string) *string { return &s }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var owners = []string{"Company", "Partner", "Consignment"}

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// fiveStones spans January and February 2024; b and d are sold.
func fiveStones() []domain.Stone {
	return []domain.Stone{
		{ID: "a", Name: "Ruby", PurchaseDate: strp("2024-01-03"), Owner: strp("Company")},
		{ID: "b", Name: "Sapphire", PurchaseDate: strp("2024-01-15"), SoldAt: strp("2024-02-01T10:00:00Z"), Owner: strp("Partner")},
		{ID: "c", Name: "Emerald", Date: strp("2024-01-31"), Owner: strp("Partner")},
		{ID: "d", Name: "Spinel", PurchaseDate: strp("2024-02-02"), SoldAt: strp("2024-02-20T10:00:00Z"), Owner: strp("Company")},
		{ID: "e", Name: "Garnet", PurchaseDate: strp("2024-02-14"), Owner: strp("Company")},
	}
}

func ids(stones []domain.Stone) []string {
	out := make([]string, 0, len(stones))
	for _, s := range stones {
		out = append(out, s.ID)
	}
	return out
}

func TestApplyUnsoldWithinMonth(t *testing.T) {
	got := export.Apply(fiveStones(), export.Filters{
		StartDate:  day("2024-01-01"),
		EndDate:    day("2024-01-31"),
		SoldStatus: export.StatusUnsold,
		Owner:      export.AllOwners,
	}, fixedNow, time.UTC)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestApplySoldAndOwner(t *testing.T) {
	f := export.Filters{StartDate: day("2024-01-01"), EndDate: day("2024-02-29"), SoldStatus: export.StatusSold, Owner: export.AllOwners}
	assert.Equal(t, []string{"b", "d"}, ids(export.Apply(fiveStones(), f, fixedNow, time.UTC)))

	f.Owner = "Company"
	assert.Equal(t, []string{"d"}, ids(export.Apply(fiveStones(), f, fixedNow, time.UTC)))

	f.Owner = "company"
	assert.Empty(t, export.Apply(fiveStones(), f, fixedNow, time.UTC))
}

func TestApplySelectionBypassesEveryFilter(t *testing.T) {
	got := export.Apply(fiveStones(), export.Filters{
		StartDate:   day("2030-01-01"),
		EndDate:     day("2030-01-31"),
		SoldStatus:  export.StatusSold,
		Owner:       "Nobody",
		SelectedIDs: []string{"a", "e"},
	}, fixedNow, time.UTC)
	assert.Equal(t, []string{"a", "e"}, ids(got))
}

func TestApplyRangeIsInclusiveByDay(t *testing.T) {
	stones := []domain.Stone{
		{ID: "start", Date: strp("2024-01-01T00:00:00Z")},
		{ID: "end", Date: strp("2024-01-31T23:59:59Z")},
		{ID: "after", Date: strp("2024-02-01T00:00:00Z")},
	}
	f := export.Filters{StartDate: day("2024-01-01"), EndDate: time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)}
	assert.Equal(t, []string{"start", "end"}, ids(export.Apply(stones, f, fixedNow, time.UTC)))
}

func TestApplyDateFallbacks(t *testing.T) {
	stones := []domain.Stone{
		{ID: "date-wins", Date: strp("2024-01-10"), PurchaseDate: strp("2023-05-01")},
		{ID: "bad-date-uses-purchase", Date: strp("garbage"), PurchaseDate: strp("2024-01-11")},
		{ID: "undated-uses-now"},
	}
	f := export.Filters{StartDate: day("2024-01-01"), EndDate: day("2024-01-31")}
	assert.Equal(t, []string{"date-wins", "bad-date-uses-purchase"}, ids(export.Apply(stones, f, fixedNow, time.UTC)))

	f = export.Filters{StartDate: day("2024-03-01"), EndDate: day("2024-03-31")}
	assert.Equal(t, []string{"undated-uses-now"}, ids(export.Apply(stones, f, fixedNow, time.UTC)))
}

func TestParseSoldStatus(t *testing.T) {
	for in, want := range map[string]export.SoldStatus{"": export.StatusAll, "all": export.StatusAll, "sold": export.StatusSold, "unsold": export.StatusUnsold} {
		got, err := export.ParseSoldStatus(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := export.ParseSoldStatus("maybe")
	assert.Error(t, err)
}

func TestEscapeField(t *testing.T) {
	cases := map[string]string{
		"plain":          "plain",
		"":               "",
		"a,b":            `"a,b"`,
		`Smith, "Jr."`:   `"Smith, ""Jr."""`,
		"line\nbreak":    `"line break"`,
		"crlf\r\nbreak":  `"crlf break"`,
		"cr\rbreak":      `"cr break"`,
		"a\rb":           `"a b"`,
		"cr\r\rtwice":    `"cr  twice"`,
		"lf\n\r":         `"lf  "`,
		`say "hi"`:       `"say ""hi"""`,
		" leading space": " leading space",
	}
	for in, want := range cases {
		assert.Equal(t, want, export.EscapeField(in), "input %q", in)
	}
}

func TestEscapedFieldRoundTrips(t *testing.T) {
	raw := `Smith, "Jr."`
	r := csv.NewReader(strings.NewReader(export.EscapeField(raw) + ",x\n"))
	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{raw, "x"}, rec)
}

func TestEncodeCSV(t *testing.T) {
	stones := []domain.Stone{
		{
			ID:           "a",
			Name:         "Ruby",
			Color:        "Pigeon Blood",
			Weight:       dec("1.25"),
			BuyPrice:     dec("1000"),
			BuyCurrency:  strp("USD"),
			SellPrice:    dec("1500.50"),
			SellCurrency: strp("EUR"),
			Owner:        strp("Partner"),
			PurchaseDate: strp("2024-03-05"),
			BillNumber:   strp("B-17"),
			Buyer:        strp(`Smith, "Jr."`),
			BuyerAddress: strp("1 Gem St\nBangkok"),
			Comment:      strp("heated"),
			SoldAt:       strp("2024-03-07T10:00:00Z"),
		},
		{ID: "b", Name: "Spinel", BuyPrice: dec("20")},
	}
	doc := string(export.EncodeCSV(stones, owners, time.UTC))
	lines := strings.Split(doc, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Bill Number,Stone Name + Color,Weight,Buyer Name,Buyer Address,Sell Price,Buy Price,Note,Company,Partner,Consignment", lines[0])
	assert.Equal(t, `05-03-2024,B-17,Ruby - Pigeon Blood,1.25,"Smith, ""Jr.""","1 Gem St Bangkok",EUR 1500.5,USD 1000,heated,,USD 1000,`, lines[1])
	assert.Equal(t, ",,Spinel,,,,,20,,,,", lines[2])

	recs, err := csv.NewReader(strings.NewReader(doc)).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Len(t, recs[0], 12)
	assert.Equal(t, `Smith, "Jr."`, recs[1][4])
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)
	base := export.Filters{StartDate: day("2024-01-01"), EndDate: day("2024-03-31"), SoldStatus: export.StatusAll, Owner: export.AllOwners}
	assert.Equal(t, "gemstones_20240402_20240101-20240331.csv", export.FileName(base, at, export.FormatCSV, time.UTC))

	f := base
	f.SoldStatus = export.StatusUnsold
	f.Owner = "Gem Co."
	assert.Equal(t, "gemstones_20240402_20240101-20240331_unsold_Gem-Co.csv", export.FileName(f, at, export.FormatCSV, time.UTC))

	f.SelectedIDs = []string{"x"}
	assert.Equal(t, "gemstones_20240402.xlsx", export.FileName(f, at, export.FormatXLSX, time.UTC))
}

type failingSink struct{}

func (failingSink) Deliver(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func newEngine(sink export.Sink) export.Engine {
	return export.Engine{
		Owners:   owners,
		Location: time.UTC,
		Sink:     sink,
		Now:      func() time.Time { return fixedNow },
	}
}

func TestExportSuccess(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(export.LocalSink{Dir: dir})
	res := e.Export(context.Background(), fiveStones(), export.Filters{
		StartDate:  day("2024-01-01"),
		EndDate:    day("2024-01-31"),
		SoldStatus: export.StatusUnsold,
		Owner:      export.AllOwners,
	})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "gemstones_20240310_20240101-20240131_unsold.csv", res.FileName)
	assert.Equal(t, "Exported 2 stones to gemstones_20240310_20240101-20240131_unsold.csv", res.Message)

	written, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	assert.Equal(t, res.Document, written)
	assert.Equal(t, dir, filepath.Dir(filepath.Dir(res.Location)))
}

func TestExportIsRepeatable(t *testing.T) {
	e := newEngine(&export.MemorySink{})
	f := export.Filters{StartDate: day("2024-01-01"), EndDate: day("2024-02-29")}
	first := e.Export(context.Background(), fiveStones(), f)
	second := e.Export(context.Background(), fiveStones(), f)
	require.True(t, first.Success)
	assert.Equal(t, first.Document, second.Document)
	assert.Equal(t, first.FileName, second.FileName)
	assert.NotEqual(t, first.Location, second.Location)
}

func TestExportSelection(t *testing.T) {
	e := newEngine(&export.MemorySink{})
	res := e.Export(context.Background(), fiveStones(), export.Filters{
		StartDate:   day("2030-01-01"),
		EndDate:     day("2030-01-31"),
		SoldStatus:  export.StatusSold,
		SelectedIDs: []string{"a", "c"},
	})
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "gemstones_20240310.csv", res.FileName)
}

func TestExportNoMatches(t *testing.T) {
	e := newEngine(&export.MemorySink{})
	res := e.Export(context.Background(), fiveStones(), export.Filters{StartDate: day("2020-01-01"), EndDate: day("2020-01-31")})
	assert.False(t, res.Success)
	assert.Equal(t, export.MsgNoMatches, res.Message)
	assert.Nil(t, res.Document)

	res = e.Export(context.Background(), fiveStones(), export.Filters{SelectedIDs: []string{"missing"}})
	assert.False(t, res.Success)
	assert.Equal(t, export.MsgNoSelection, res.Message)
	assert.Nil(t, res.Document)
}

func TestExportSinkFailure(t *testing.T) {
	e := newEngine(failingSink{})
	res := e.Export(context.Background(), fiveStones(), export.Filters{})
	assert.False(t, res.Success)
	assert.Equal(t, export.MsgFailed, res.Message)
}

func TestExportXLSX(t *testing.T) {
	e := newEngine(&export.MemorySink{})
	res := e.ExportAs(context.Background(), fiveStones(), export.Filters{SelectedIDs: []string{"a"}}, export.FormatXLSX)
	require.True(t, res.Success, res.Message)
	assert.True(t, strings.HasSuffix(res.FileName, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(res.Document))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Stones")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Stone Name + Color", rows[0][2])
	assert.Equal(t, "Ruby", rows[1][2])
}

func TestEncodeXLSXCellTypes(t *testing.T) {
	stone := domain.Stone{ID: "w", Name: "Topaz", Weight: dec("2.5"), BuyPrice: dec("900"), BuyCurrency: strp("USD"), Owner: strp("Company")}
	doc, err := export.EncodeXLSX([]domain.Stone{stone}, owners, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(doc))
	require.NoError(t, err)
	defer f.Close()

	weight, err := f.GetCellValue("Stones", "D2")
	require.NoError(t, err)
	assert.Equal(t, "2.5", weight)
	typ, err := f.GetCellType("Stones", "D2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)

	buy, err := f.GetCellValue("Stones", "H2")
	require.NoError(t, err)
	assert.Equal(t, "USD 900", buy)
	typ, err = f.GetCellType("Stones", "H2")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeSharedString, typ)
}
