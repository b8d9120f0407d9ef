// Package sheets stores enriched records in a Google Sheets worksheet so
// editors can approve posts before they go out.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/deusflow/chnews/internal/pipeline"
)

const worksheet = "News"

// Column layout of the News worksheet. Editors flip Approved to TRUE;
// the publisher flips Published after a confirmed post.
var headerRow = []interface{}{
	"Date", "Title", "Summary", "Body", "Source URL", "Source", "Language", "Approved", "Published",
}

const (
	colDate = iota
	colTitle
	colSummary
	colBody
	colSourceURL
	colSourceName
	colLanguage
	colApproved
	colPublished
)

// Row is one moderation entry together with its sheet position.
type Row struct {
	Index  int // 1-based row number in the worksheet
	Record pipeline.EnrichedRecord
}

type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	log           *slog.Logger
}

// New builds a store from a service account credentials file.
func New(ctx context.Context, credentialsPath, spreadsheetID string) (*Store, error) {
	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		log:           slog.With("component", "sheets"),
	}, nil
}

// AppendRecords adds rows for moderation with Approved and Published unset.
func (s *Store) AppendRecords(ctx context.Context, records []pipeline.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureHeader(ctx); err != nil {
		return err
	}

	var rows [][]interface{}
	now := time.Now().UTC().Format("2006-01-02 15:04")
	for _, rec := range records {
		rows = append(rows, []interface{}{
			now,
			rec.Title,
			rec.Summary,
			rec.Body,
			rec.SourceURL,
			rec.SourceName,
			rec.OriginalLanguage,
			"FALSE",
			"FALSE",
		})
	}

	_, err := s.svc.Spreadsheets.Values.Append(
		s.spreadsheetID,
		worksheet+"!A:I",
		&sheetsapi.ValueRange{Values: rows},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	s.log.Info("records appended for moderation", "count", len(rows))
	return nil
}

// ApprovedUnpublished returns rows an editor approved that have not been
// posted yet.
func (s *Store) ApprovedUnpublished(ctx context.Context) ([]Row, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, worksheet+"!A:I").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read worksheet: %w", err)
	}

	var out []Row
	for i, row := range resp.Values {
		if i == 0 {
			continue // header
		}
		if !cellTrue(row, colApproved) || cellTrue(row, colPublished) {
			continue
		}
		out = append(out, Row{
			Index: i + 1,
			Record: pipeline.EnrichedRecord{
				Title:            cell(row, colTitle),
				Summary:          cell(row, colSummary),
				Body:             cell(row, colBody),
				SourceURL:        cell(row, colSourceURL),
				SourceName:       cell(row, colSourceName),
				OriginalLanguage: cell(row, colLanguage),
			},
		})
	}
	return out, nil
}

// MarkPublished flips the Published cell of one row to TRUE.
func (s *Store) MarkPublished(ctx context.Context, rowIndex int) error {
	rangeRef := fmt.Sprintf("%s!I%d", worksheet, rowIndex)
	_, err := s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		rangeRef,
		&sheetsapi.ValueRange{Values: [][]interface{}{{"TRUE"}}},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark row %d published: %w", rowIndex, err)
	}
	return nil
}

// ensureHeader writes the header row once on an empty worksheet.
func (s *Store) ensureHeader(ctx context.Context) error {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, worksheet+"!A1:I1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("check header: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}
	_, err = s.svc.Spreadsheets.Values.Update(
		s.spreadsheetID,
		worksheet+"!A1:I1",
		&sheetsapi.ValueRange{Values: [][]interface{}{headerRow}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func cell(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	s, _ := row[idx].(string)
	return s
}

func cellTrue(row []interface{}, idx int) bool {
	return strings.EqualFold(strings.TrimSpace(cell(row, idx)), "TRUE")
}
