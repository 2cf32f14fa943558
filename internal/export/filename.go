package export

import (
	"strings"
	"time"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format at the boundary. Empty means CSV.
func ParseFormat(v string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case "", FormatCSV:
		return FormatCSV, true
	case FormatXLSX:
		return FormatXLSX, true
	default:
		return "", false
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

func (f Format) extension() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

const fileDateLayout = "20060102"

// FileName builds gemstones_<export date>[_<from>-<to>][_<status>][_<owner>].
// The filter suffixes are only added when the selection override is off.
func FileName(f Filters, exportedAt time.Time, format Format, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString("gemstones_")
	b.WriteString(exportedAt.In(loc).Format(fileDateLayout))
	if !f.HasSelection() {
		b.WriteString("_")
		b.WriteString(rangeDate(f.StartDate, loc))
		b.WriteString("-")
		b.WriteString(rangeDate(f.EndDate, loc))
		if status := f.status(); status != StatusAll {
			b.WriteString("_")
			b.WriteString(string(status))
		}
		if owner := f.owner(); owner != AllOwners {
			b.WriteString("_")
			b.WriteString(sanitize(owner))
		}
	}
	b.WriteString(format.extension())
	return b.String()
}

func rangeDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "any"
	}
	return t.In(loc).Format(fileDateLayout)
}

// sanitize keeps ASCII letters, digits and '-'; runs of anything else become
// a single '-'.
func sanitize(v string) string {
	var b strings.Builder
	dash := false
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
