package export

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/electrode-tester/pkg/types"
)

func testResult() *types.ExperimentResult {
	res := &types.ExperimentResult{
		Elapsed:     []time.Duration{0, time.Hour},
		Resistance:  types.NewSeriesSet(types.Resistance),
		Resistivity: types.NewSeriesSet(types.Resistivity),
	}
	for i, elapsed := range res.Elapsed {
		for _, f := range []float64{10, 100} {
			r := 100 + float64(i) + f/100
			res.Resistance.Append(f, elapsed, types.Value{Value: r, Error: 0.5})
			res.Resistivity.Append(f, elapsed, types.Value{Value: 4 * r, Error: 2})
		}
	}
	return res
}

func TestRows(t *testing.T) {
	rows := Rows(testResult())
	require.Len(t, rows, 4)

	assert.Equal(t, 10.0, rows[0].Frequency)
	assert.Equal(t, 0.0, rows[0].ElapsedSeconds)
	assert.Equal(t, 3600.0, rows[1].ElapsedSeconds)
	assert.Equal(t, 100.0, rows[2].Frequency)
	assert.InDelta(t, 101.1, *rows[1].Resistance, 1e-12)
	assert.InDelta(t, 4*101.1, *rows[1].Resistivity, 1e-12)

	onlyResistivity := testResult()
	onlyResistivity.Resistance = nil
	rows = Rows(onlyResistivity)
	require.Len(t, rows, 4)
	assert.Nil(t, rows[0].Resistance)
	assert.NotNil(t, rows[0].Resistivity)

	assert.Empty(t, Rows(&types.ExperimentResult{}))
}

func TestWriteDuckDB(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "results.duckdb")
	ctx := context.Background()

	n, err := WriteDuckDB(ctx, dsn, "impedance", testResult())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Appends to the existing table
	_, err = WriteDuckDB(ctx, dsn, "impedance", testResult())
	require.NoError(t, err)

	db, err := sql.Open("duckdb", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	var maxResistance float64
	err = db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(resistance) FROM impedance").Scan(&count, &maxResistance)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
	assert.InDelta(t, 102, maxResistance, 1e-9)
}

func TestWriteDuckDBRejectsTableName(t *testing.T) {
	_, err := WriteDuckDB(context.Background(), "", "x; DROP TABLE y", testResult())
	assert.Error(t, err)
}
