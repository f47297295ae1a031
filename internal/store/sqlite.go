// Package store archives finished simulations in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/session"
)

// Archive stores simulation exports. It implements session.Archiver.
type Archive struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ session.Archiver = (*Archive)(nil)

// Entry is one archived simulation as shown in listings.
type Entry struct {
	SimulationID string                  `json:"simulation_id"`
	Config       models.SimulationConfig `json:"config"`
	Summary      session.Summary         `json:"summary"`
	ExportedAt   time.Time               `json:"exported_at"`
	ArchivedAt   time.Time               `json:"archived_at"`
}

// Open opens (or creates) the archive at path. ":memory:" opens a private
// in-memory archive.
func Open(ctx context.Context, path string) (*Archive, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db, path: path, now: time.Now}, nil
}

// Path returns the database location.
func (a *Archive) Path() string { return a.path }

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveExport stores exp, replacing any earlier export of the same simulation.
func (a *Archive) SaveExport(ctx context.Context, exp session.Export) error {
	if exp.SimulationID == "" {
		return models.NewValidationError("simulation_id", "required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Cascades to rounds.
	if _, err := tx.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, exp.SimulationID); err != nil {
		return fmt.Errorf("failed to replace simulation: %w", err)
	}

	sum := exp.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO simulations (
			id, num_rounds, information_mode, am_strategy, mc_strategy, status,
			total_rounds, am_total_payoff, mc_total_payoff, total_welfare,
			avg_welfare_per_round, avg_am_investment, avg_mc_investment, cooperation_index,
			exported_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.SimulationID, exp.Config.NumRounds, string(exp.Config.InformationMode),
		string(exp.Config.AMStrategy), string(exp.Config.MCStrategy), string(sum.Status),
		sum.TotalRounds, sum.AMTotalPayoff, sum.MCTotalPayoff, sum.TotalWelfare,
		sum.AvgWelfarePerRound, sum.AvgAMInvestment, sum.AvgMCInvestment, sum.CooperationIndex,
		formatTime(exp.ExportedAt), formatTime(a.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rounds (
			simulation_id, round, am_investment, mc_investment,
			am_payoff, mc_payoff, total_welfare, am_reasoning, mc_reasoning, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare round insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range exp.Rounds {
		if _, err := stmt.ExecContext(ctx,
			exp.SimulationID, r.Round, r.AMInvestment, r.MCInvestment,
			r.AMPayoff, r.MCPayoff, r.TotalWelfare, r.AMReasoning, r.MCReasoning,
			formatTime(r.Timestamp),
		); err != nil {
			return fmt.Errorf("failed to insert round %d: %w", r.Round, err)
		}
	}

	return tx.Commit()
}

// GetExport loads an archived export.
func (a *Archive) GetExport(ctx context.Context, id string) (session.Export, error) {
	row := a.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Export{}, models.NewNotFoundError(id)
	}
	if err != nil {
		return session.Export{}, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT round, am_investment, mc_investment, am_payoff, mc_payoff, total_welfare,
		       am_reasoning, mc_reasoning, timestamp
		FROM rounds WHERE simulation_id = ? ORDER BY round`, id)
	if err != nil {
		return session.Export{}, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	exp := session.Export{
		SimulationID: e.SimulationID,
		ExportedAt:   e.ExportedAt,
		Config:       e.Config,
		Summary:      e.Summary,
		Rounds:       []models.RoundRecord{},
	}
	for rows.Next() {
		var r models.RoundRecord
		var amReasoning, mcReasoning sql.NullString
		var ts string
		if err := rows.Scan(&r.Round, &r.AMInvestment, &r.MCInvestment, &r.AMPayoff, &r.MCPayoff,
			&r.TotalWelfare, &amReasoning, &mcReasoning, &ts); err != nil {
			return session.Export{}, fmt.Errorf("failed to scan round: %w", err)
		}
		r.AMReasoning = amReasoning.String
		r.MCReasoning = mcReasoning.String
		r.Timestamp = parseTime(ts)
		exp.Rounds = append(exp.Rounds, r)
	}
	if err := rows.Err(); err != nil {
		return session.Export{}, fmt.Errorf("failed to read rounds: %w", err)
	}
	return exp, nil
}

// ListExports returns archived simulations, most recently exported first.
// A limit of zero or less returns all of them.
func (a *Archive) ListExports(ctx context.Context, limit int) ([]Entry, error) {
	query := selectEntry + ` ORDER BY exported_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulations: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteExport removes an archived simulation.
func (a *Archive) DeleteExport(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	res, err := a.db.ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete simulation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError(id)
	}
	return nil
}

const selectEntry = `
	SELECT id, num_rounds, information_mode, am_strategy, mc_strategy, status,
	       total_rounds, am_total_payoff, mc_total_payoff, total_welfare,
	       avg_welfare_per_round, avg_am_investment, avg_mc_investment, cooperation_index,
	       exported_at, archived_at
	FROM simulations`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var mode, am, mc, status, exportedAt, archivedAt string
	err := row.Scan(&e.SimulationID, &e.Config.NumRounds, &mode, &am, &mc, &status,
		&e.Summary.TotalRounds, &e.Summary.AMTotalPayoff, &e.Summary.MCTotalPayoff, &e.Summary.TotalWelfare,
		&e.Summary.AvgWelfarePerRound, &e.Summary.AvgAMInvestment, &e.Summary.AvgMCInvestment,
		&e.Summary.CooperationIndex, &exportedAt, &archivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("failed to scan simulation: %w", err)
	}
	e.Config.InformationMode = models.InformationMode(mode)
	e.Config.AMStrategy = models.Strategy(am)
	e.Config.MCStrategy = models.Strategy(mc)
	e.Summary.Status = models.Status(status)
	e.ExportedAt = parseTime(exportedAt)
	e.ArchivedAt = parseTime(archivedAt)
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
