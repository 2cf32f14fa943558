// Package export filters a stone set and renders it as a flat CSV (or XLSX)
// document with a filter-derived file name, then hands the document to a Sink.
//
// Export never returns an error: every outcome, including an empty result or
// a failed hand-off, is reported through Result.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
)

const (
	MsgNoSelection = "None of the selected stones are available to export"
	MsgNoMatches   = "No stones match the selected filters"
	MsgFailed      = "Export failed. Please try again."
)

// Result is what the caller shows the user.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FileName    string `json:"file_name,omitempty"`
	Location    string `json:"location,omitempty"`
	Count       int    `json:"count"`
	// ContentType is set on success.
	ContentType string `json:"content_type,omitempty"`
	Document    []byte `json:"document,omitempty"`
}

// Engine holds the per-organization export settings. It keeps no state
// between calls.
type Engine struct {
	Owners   []string
	Location *time.Location
	Format   Format
	Sink     Sink
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) loc() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.UTC
}

func (e Engine) log() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// Export filters stones and renders them in the engine's default format.
func (e Engine) Export(ctx context.Context, stones []domain.Stone, f Filters) Result {
	return e.ExportAs(ctx, stones, f, e.Format)
}

// ExportAs filters stones and renders them in format.
func (e Engine) ExportAs(ctx context.Context, stones []domain.Stone, f Filters, format Format) Result {
	if format == "" {
		format = FormatCSV
	}
	now := e.now()
	loc := e.loc()
	selected := Apply(stones, f, now, loc)
	if len(selected) == 0 {
		msg := MsgNoMatches
		if f.HasSelection() {
			msg = MsgNoSelection
		}
		return Result{Success: false, Message: msg}
	}

	var doc []byte
	switch format {
	case FormatXLSX:
		var err error
		doc, err = EncodeXLSX(selected, e.Owners, loc)
		if err != nil {
			e.log().WithFields(logrus.Fields{"module": "export", "format": format}).Error(err.Error())
			return Result{Success: false, Message: MsgFailed}
		}
	default:
		doc = EncodeCSV(selected, e.Owners, loc)
	}
	name := FileName(f, now, format, loc)

	location := ""
	if e.Sink != nil {
		var err error
		location, err = e.Sink.Deliver(ctx, name, format.ContentType(), doc)
		if err != nil {
			e.log().WithFields(logrus.Fields{
				"module":    "export",
				"file_name": name,
			}).Error(err.Error())
			return Result{Success: false, Message: MsgFailed}
		}
	}
	e.log().WithFields(logrus.Fields{
		"module":    "export",
		"file_name": name,
		"count":     len(selected),
		"location":  location,
	}).Info("export delivered")
	return Result{
		Success:     true,
		Message:     successMessage(len(selected), name),
		FileName:    name,
		Location:    location,
		Count:       len(selected),
		ContentType: format.ContentType(),
		Document:    doc,
	}
}

func successMessage(n int, name string) string {
	noun := "stones"
	if n == 1 {
		noun = "stone"
	}
	return fmt.Sprintf("Exported %d %s to %s", n, noun, name)
}
