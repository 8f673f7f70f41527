// Package importer creates user accounts in bulk from CSV. Every row is attempted on its own;
// failures are collected per row and never stop the rest of the batch.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/legit-games/user-registry/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many rows are created at once when no limit is configured.
const DefaultConcurrency = 4

// Column names recognised in the header row, matched case-insensitively.
const (
	ColUsername = "username"
	ColEmail    = "email"
	ColFirst    = "first"
	ColMiddle   = "middle"
	ColLast     = "last"
	ColPassword = "password"
)

// Row is one user to create.
type Row struct {
	Username string `validate:"required,max=255,excludesall= /"`
	Email    string `validate:"required,email,max=255"`
	First    string `validate:"max=255"`
	Middle   string `validate:"max=255"`
	Last     string `validate:"max=255"`
	Password string `validate:"omitempty,min=6,max=72"`
}

// RowError reports why a data row was not imported. Row counts data rows from 1.
type RowError struct {
	Row      int    `json:"row"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// Result summarizes an import.
type Result struct {
	Total   int        `json:"total"`
	Success int        `json:"successCount"`
	Errors  []RowError `json:"errors"`
}

// Creator creates the account for a validated row.
type Creator interface {
	CreateImported(ctx context.Context, row Row) error
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context, row Row) error

func (f CreatorFunc) CreateImported(ctx context.Context, row Row) error { return f(ctx, row) }

// Importer parses CSV input and feeds rows to a Creator with bounded concurrency.
type Importer struct {
	creator     Creator
	concurrency int
	validate    *validator.Validate
	logger      *slog.Logger
}

func New(creator Creator, concurrency int, logger *slog.Logger) *Importer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		creator:     creator,
		concurrency: concurrency,
		validate:    validator.New(),
		logger:      logger,
	}
}

type parsedRow struct {
	n   int
	row Row
	err error
}

// Import reads r and creates one user per data row. An error is returned only when the
// input cannot be read as CSV at all (for example a missing header).
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := im.parse(r)
	if err != nil {
		return nil, err
	}

	failures := make([]error, len(rows))
	var success atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, pr := range rows {
		if pr.err != nil {
			failures[i] = pr.err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				failures[i] = fmt.Errorf("import cancelled: %w", err)
				return nil
			}
			if err := im.creator.CreateImported(gctx, pr.row); err != nil {
				failures[i] = err
				return nil
			}
			success.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Total: len(rows), Success: int(success.Load()), Errors: []RowError{}}
	for i, err := range failures {
		if err == nil {
			continue
		}
		res.Errors = append(res.Errors, RowError{Row: rows[i].n, Username: rows[i].row.Username, Message: rowMessage(err)})
	}
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Row < res.Errors[j].Row })
	im.logger.InfoContext(ctx, "user import finished", "total", res.Total, "success", res.Success, "errors", len(res.Errors))
	return res, nil
}

// rowMessage hides internal failure details from the report.
func rowMessage(err error) string {
	if errors.StatusCode(err) >= 500 {
		return "internal server error"
	}
	return err.Error()
}

// parse reads every record, validating each and flagging duplicates within the file.
func (im *Importer) parse(r io.Reader) ([]parsedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv is empty: %w", errors.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %v: %w", err, errors.ErrValidation)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{ColUsername, ColEmail} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("csv header is missing the %q column: %w", required, errors.ErrValidation)
		}
	}

	var rows []parsedRow
	usernames := map[string]int{}
	emails := map[string]int{}
	for n := 1; ; n++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return nil, fmt.Errorf("read csv row %d: %v: %w", n, err, errors.ErrValidation)
		}
		pr := parsedRow{n: n}
		switch {
		case err != nil:
			pr.err = fmt.Errorf("malformed row: %v", err)
		case len(record) != len(header):
			pr.err = fmt.Errorf("malformed row: expected %d columns, got %d", len(header), len(record))
			pr.row.Username = field(record, cols, ColUsername)
		default:
			pr.row = Row{
				Username: field(record, cols, ColUsername),
				Email:    field(record, cols, ColEmail),
				First:    field(record, cols, ColFirst),
				Middle:   field(record, cols, ColMiddle),
				Last:     field(record, cols, ColLast),
				Password: field(record, cols, ColPassword),
			}
			pr.err = im.check(pr.row, n, usernames, emails)
		}
		rows = append(rows, pr)
	}
	return rows, nil
}

func (im *Importer) check(row Row, n int, usernames, emails map[string]int) error {
	if err := im.validate.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("invalid row: %s", strings.Join(msgs, ", "))
		}
		return err
	}
	if first, ok := usernames[row.Username]; ok {
		return fmt.Errorf("duplicate username %q (row %d)", row.Username, first)
	}
	email := strings.ToLower(row.Email)
	if first, ok := emails[email]; ok {
		return fmt.Errorf("duplicate email %q (row %d)", row.Email, first)
	}
	usernames[row.Username] = n
	emails[email] = n
	return nil
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
