package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shunichi-ikebuchi/tb-variance/pkg/pipeline"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/reconcile"
	"github.com/shunichi-ikebuchi/tb-variance/pkg/variance"
)

// MetadataLastReport holds the ID of the most recently saved report.
const MetadataLastReport = "last_report_id"

// ErrNotReady is returned when saving a result that is still waiting for input.
var ErrNotReady = errors.New("report has no computed output")

// ReportSummary represents a saved report without its rows.
type ReportSummary struct {
	ID            string
	Label         string
	Principal     string
	CurrentSource string
	PriorSource   string
	Thresholds    variance.Thresholds
	AccountCount  int
	FlaggedCount  int
	CreatedAt     time.Time
}

// ReportArchive manages saved reports.
// The archive is written only by explicit save requests; computation never reads it.
type ReportArchive struct {
	conn *Connection
	now  func() time.Time
}

// NewReportArchive creates a new ReportArchive instance.
func NewReportArchive(conn *Connection) *ReportArchive {
	return &ReportArchive{conn: conn, now: time.Now}
}

// SaveReport stores a computed result under a new ID.
func (a *ReportArchive) SaveReport(ctx context.Context, label, principal string, result pipeline.Result) (*ReportSummary, error) {
	if !result.Ready() {
		return nil, ErrNotReady
	}

	summary := &ReportSummary{
		ID:            uuid.NewString(),
		Label:         label,
		Principal:     principal,
		CurrentSource: result.CurrentSource,
		PriorSource:   result.PriorSource,
		Thresholds:    result.Thresholds,
		AccountCount:  len(result.Rows),
		FlaggedCount:  result.FlaggedCount(),
		CreatedAt:     a.now().UTC(),
	}
	if summary.Label == "" {
		summary.Label = summary.CreatedAt.Format("2006-01-02 15:04")
	}

	err := a.conn.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reports (id, label, principal, current_source, prior_source, policy,
				threshold_percent, absolute_threshold, account_count, flagged_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			summary.ID,
			summary.Label,
			summary.Principal,
			summary.CurrentSource,
			summary.PriorSource,
			string(summary.Thresholds.Policy),
			summary.Thresholds.ThresholdPercent,
			summary.Thresholds.AbsoluteThreshold,
			summary.AccountCount,
			summary.FlaggedCount,
			summary.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO report_rows (report_id, position, account_code, account_name,
				account_name_current, account_name_prior, in_current, in_prior,
				balance_current, balance_prior, variance_amount, variance_percent, flagged)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare row insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range result.Rows {
			if _, err := stmt.ExecContext(ctx,
				summary.ID,
				i,
				row.AccountCode,
				row.AccountName,
				row.AccountNameCurrent,
				row.AccountNamePrior,
				row.InCurrent,
				row.InPrior,
				row.BalanceCurrent,
				row.BalancePrior,
				row.VarianceAmount,
				row.VariancePercent,
				row.Flagged,
			); err != nil {
				return fmt.Errorf("failed to insert row %s: %w", row.AccountCode, err)
			}
		}

		return setMetadata(ctx, tx, MetadataLastReport, summary.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	return summary, nil
}

const summaryColumns = `id, label, principal, current_source, prior_source, policy,
	threshold_percent, absolute_threshold, account_count, flagged_count, created_at`

// ListReports returns saved reports, newest first. A limit of 0 returns all of them.
func (a *ReportArchive) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM reports ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []ReportSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, nil
}

// GetReport retrieves a report summary by ID. It returns nil when no such report exists.
func (a *ReportArchive) GetReport(ctx context.Context, id string) (*ReportSummary, error) {
	row := a.conn.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM reports WHERE id = ?`, id)

	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// GetRows retrieves the reconciled rows of a report in their original order.
func (a *ReportArchive) GetRows(ctx context.Context, id string) ([]reconcile.Row, error) {
	rows, err := a.conn.QueryContext(ctx, `
		SELECT account_code, account_name, account_name_current, account_name_prior,
			in_current, in_prior, balance_current, balance_prior, variance_amount,
			variance_percent, flagged
		FROM report_rows
		WHERE report_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report rows: %w", err)
	}
	defer rows.Close()

	var result []reconcile.Row
	for rows.Next() {
		var r reconcile.Row
		if err := rows.Scan(
			&r.AccountCode,
			&r.AccountName,
			&r.AccountNameCurrent,
			&r.AccountNamePrior,
			&r.InCurrent,
			&r.InPrior,
			&r.BalanceCurrent,
			&r.BalancePrior,
			&r.VarianceAmount,
			&r.VariancePercent,
			&r.Flagged,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get report rows: %w", err)
	}

	return result, nil
}

// DeleteReport deletes a report and its rows.
func (a *ReportArchive) DeleteReport(ctx context.Context, id string) (bool, error) {
	result, err := a.conn.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

// Stats represents archive statistics.
type Stats struct {
	TotalReports  int
	TotalAccounts int
	TotalFlagged  int
	LastSaved     sql.NullString
}

// GetStats retrieves archive statistics.
func (a *ReportArchive) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := a.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(account_count), 0), COALESCE(SUM(flagged_count), 0)
		FROM reports
	`).Scan(&stats.TotalReports, &stats.TotalAccounts, &stats.TotalFlagged)
	if err != nil {
		return nil, fmt.Errorf("failed to get report counts: %w", err)
	}

	// Get last save time
	err = a.conn.QueryRowContext(ctx, `SELECT MAX(created_at) FROM reports`).Scan(&stats.LastSaved)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last save time: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value.
func (a *ReportArchive) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := a.conn.QueryRowContext(ctx, `SELECT value FROM archive_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// setMetadata upserts a metadata value through ex, which is either the connection or
// an open transaction.
func setMetadata(ctx context.Context, ex execer, key, value string) error {
	query := `
		INSERT INTO archive_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := ex.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(s scanner) (*ReportSummary, error) {
	var summary ReportSummary
	var policy string

	err := s.Scan(
		&summary.ID,
		&summary.Label,
		&summary.Principal,
		&summary.CurrentSource,
		&summary.PriorSource,
		&policy,
		&summary.Thresholds.ThresholdPercent,
		&summary.Thresholds.AbsoluteThreshold,
		&summary.AccountCount,
		&summary.FlaggedCount,
		&summary.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	summary.Thresholds.Policy = variance.Policy(policy)
	return &summary, nil
}
