// Package export writes analysis results to DuckDB for ad-hoc querying.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/vjranagit/electrode-tester/pkg/types"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Row is one exported point. Quantities that were not computed are nil.
type Row struct {
	Frequency        float64
	ElapsedSeconds   float64
	Resistance       *float64
	ResistanceError  *float64
	Resistivity      *float64
	ResistivityError *float64
}

// Rows flattens result into one row per (frequency, point), in frequency
// first-seen order.
func Rows(result *types.ExperimentResult) []Row {
	var primary *types.SeriesSet
	switch {
	case result.Resistance != nil:
		primary = result.Resistance
	case result.Resistivity != nil:
		primary = result.Resistivity
	default:
		return nil
	}

	var rows []Row
	for _, f := range primary.Frequencies() {
		series, _ := primary.Get(f)
		for i, sample := range series.Samples {
			row := Row{Frequency: f, ElapsedSeconds: sample.Elapsed.Seconds()}
			if s, ok := sampleAt(result.Resistance, f, i); ok {
				row.Resistance, row.ResistanceError = &s.Value, &s.Error
			}
			if s, ok := sampleAt(result.Resistivity, f, i); ok {
				row.Resistivity, row.ResistivityError = &s.Value, &s.Error
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func sampleAt(set *types.SeriesSet, f float64, i int) (types.Sample, bool) {
	if set == nil {
		return types.Sample{}, false
	}
	series, ok := set.Get(f)
	if !ok || i >= len(series.Samples) {
		return types.Sample{}, false
	}
	return series.Samples[i], true
}

// WriteDuckDB appends result to table in the DuckDB database at dsn,
// creating the table when missing. It returns the number of rows written.
func WriteDuckDB(ctx context.Context, dsn, table string, result *types.ExperimentResult) (int, error) {
	if !identifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return 0, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		frequency DOUBLE,
		elapsed_seconds DOUBLE,
		resistance DOUBLE,
		resistance_error DOUBLE,
		resistivity DOUBLE,
		resistivity_error DOUBLE
	)`, table)
	if _, err := db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?)", table))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := Rows(result)
	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, r.Frequency, r.ElapsedSeconds,
			nullable(r.Resistance), nullable(r.ResistanceError),
			nullable(r.Resistivity), nullable(r.ResistivityError))
		if err != nil {
			return 0, fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(rows), nil
}

// nullable binds a missing quantity as SQL NULL.
func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
