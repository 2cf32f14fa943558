package export

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

// DateLayout formats the Date column.
const DateLayout = "02-01-2006"

var baseColumns = []string{
	"Date",
	"Bill Number",
	"Stone Name + Color",
	"Weight",
	"Buyer Name",
	"Buyer Address",
	"Sell Price",
	"Buy Price",
	"Note",
}

// Header returns the column titles: the fixed columns followed by one column
// per owner.
func Header(owners []string) []string {
	h := make([]string, 0, len(baseColumns)+len(owners))
	h = append(h, baseColumns...)
	return append(h, owners...)
}

// Row flattens a stone into raw (unescaped) field values matching Header.
func Row(s domain.Stone, owners []string, loc *time.Location) []string {
	date := ""
	if t, ok := RecordDate(s, loc); ok {
		date = t.In(loc).Format(DateLayout)
	}
	weight := ""
	if s.Weight != nil {
		weight = s.Weight.String()
	}
	buy := formatPrice(s.BuyCurrency, s.BuyPrice)
	row := []string{
		date,
		domain.Deref(s.BillNumber),
		stoneLabel(s),
		weight,
		domain.Deref(s.Buyer),
		domain.Deref(s.BuyerAddress),
		formatPrice(s.SellCurrency, s.SellPrice),
		buy,
		domain.Deref(s.Comment),
	}
	owner := domain.Deref(s.Owner)
	for _, o := range owners {
		if owner != "" && o == owner {
			row = append(row, buy)
		} else {
			row = append(row, "")
		}
	}
	return row
}

func stoneLabel(s domain.Stone) string {
	if s.Color == "" {
		return s.Name
	}
	return s.Name + " - " + s.Color
}

func formatPrice(currency *string, amount *decimal.Decimal) string {
	if amount == nil {
		return ""
	}
	cur := strings.TrimSpace(domain.Deref(currency))
	if cur == "" {
		return amount.String()
	}
	return cur + " " + amount.String()
}

// EscapeField quotes a value only when it holds a comma, a double quote or a
// line break. Quoted values double their inner quotes and have every line
// break (CRLF, CR or LF) replaced with a single space.
func EscapeField(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	v = strings.ReplaceAll(v, `"`, `""`)
	v = lineBreaks.Replace(v)
	return `"` + v + `"`
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// EncodeCSV renders the header and one line per stone, joined by "\n".
func EncodeCSV(stones []domain.Stone, owners []string, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	lines := make([]string, 0, len(stones)+1)
	lines = append(lines, joinRow(Header(owners)))
	for _, s := range stones {
		lines = append(lines, joinRow(Row(s, owners, loc)))
	}
	return []byte(strings.Join(lines, "\n"))
}

func joinRow(fields []string) string {
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = EscapeField(f)
	}
	return strings.Join(escaped, ",")
}
