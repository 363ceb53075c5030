package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	streams "paystream-cloud/internal/streams/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// The lifecycle controller writes the stream row first and the ledger
// second, without a shared transaction. A crash between the two leaves the
// stream ahead of the ledger; this tool finds that drift so an operator can
// repair it.

const driftTolerance = 1e-6

type config struct {
	dbURL    string
	tenantID string
	outDir   string
}

type streamRow struct {
	ID             string
	TenantID       string
	SenderID       string
	Status         string
	Rate           float64
	FundedAmount   float64
	BufferAmount   float64
	TotalStreamed  float64
	TotalWithdrawn float64
	TotalPausedSec int64
	StartedAt      time.Time
}

type holdRow struct {
	StreamID  string
	AccountID string
	Principal float64
	Buffer    float64
	Withdrawn float64
	Released  bool
}

type drift struct {
	StreamID    string
	Kind        string
	Detail      string
	StreamValue string
	LedgerValue string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	rows, err := loadStreams(ctx, db, cfg.tenantID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load streams:", err)
		os.Exit(2)
	}
	holds, err := loadHolds(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load holds:", err)
		os.Exit(2)
	}

	drifts := compare(rows, holds, time.Now().UTC())
	if err := writeDrifts(cfg.outDir, drifts); err != nil {
		fmt.Fprintln(os.Stderr, "write drift report:", err)
		os.Exit(2)
	}

	fmt.Printf("checked %d streams against %d holds, %d drifts; report written to %s\n",
		len(rows), len(holds), len(drifts), cfg.outDir)
	if len(drifts) > 0 {
		os.Exit(1)
	}
}

func compare(rows []streamRow, holds map[string]holdRow, now time.Time) []drift {
	var drifts []drift
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		seen[row.ID] = true
		hold, ok := holds[row.ID]
		if !ok {
			drifts = append(drifts, drift{
				StreamID:    row.ID,
				Kind:        "missing_hold",
				Detail:      "stream row exists but the ledger has no hold",
				StreamValue: formatAmount(row.FundedAmount),
			})
			continue
		}
		if math.Abs(hold.Principal-row.FundedAmount) > driftTolerance {
			drifts = append(drifts, drift{
				StreamID:    row.ID,
				Kind:        "principal_mismatch",
				Detail:      "held principal does not match funded amount",
				StreamValue: formatAmount(row.FundedAmount),
				LedgerValue: formatAmount(hold.Principal),
			})
		}
		if math.Abs(hold.Buffer-row.BufferAmount) > driftTolerance {
			drifts = append(drifts, drift{
				StreamID:    row.ID,
				Kind:        "buffer_mismatch",
				Detail:      "held buffer does not match stream buffer",
				StreamValue: formatAmount(row.BufferAmount),
				LedgerValue: formatAmount(hold.Buffer),
			})
		}
		if math.Abs(hold.Withdrawn-row.TotalWithdrawn) > driftTolerance {
			drifts = append(drifts, drift{
				StreamID:    row.ID,
				Kind:        "withdrawn_mismatch",
				Detail:      "hold withdrawals do not match stream withdrawals",
				StreamValue: formatAmount(row.TotalWithdrawn),
				LedgerValue: formatAmount(hold.Withdrawn),
			})
		}
		if row.Status == streams.StatusCancelled && !hold.Released {
			drifts = append(drifts, drift{
				StreamID: row.ID,
				Kind:     "unreleased_hold",
				Detail:   "stream is cancelled but the hold was never released",
			})
		}
		if row.Status != streams.StatusCancelled && hold.Released {
			drifts = append(drifts, drift{
				StreamID: row.ID,
				Kind:     "premature_release",
				Detail:   "hold released while the stream is not cancelled",
			})
		}

		state := streams.ComputeState(toStream(row), now)
		if row.TotalWithdrawn-state.Total > driftTolerance {
			drifts = append(drifts, drift{
				StreamID:    row.ID,
				Kind:        "overdrawn",
				Detail:      "withdrawn exceeds accrued total",
				StreamValue: formatAmount(row.TotalWithdrawn),
				LedgerValue: formatAmount(state.Total),
			})
		}
	}

	for streamID := range holds {
		if !seen[streamID] {
			drifts = append(drifts, drift{
				StreamID: streamID,
				Kind:     "orphaned_hold",
				Detail:   "ledger hold references a missing stream",
			})
		}
	}
	return drifts
}

func toStream(row streamRow) *streams.Stream {
	return &streams.Stream{
		ID:                 row.ID,
		TenantID:           row.TenantID,
		SenderAccountID:    row.SenderID,
		Status:             row.Status,
		FlowRatePerSecond:  row.Rate,
		FundedAmount:       row.FundedAmount,
		BufferAmount:       row.BufferAmount,
		TotalStreamed:      row.TotalStreamed,
		TotalWithdrawn:     row.TotalWithdrawn,
		TotalPausedSeconds: row.TotalPausedSec,
		StartedAt:          row.StartedAt,
	}
}

func loadStreams(ctx context.Context, db *sql.DB, tenantID string) ([]streamRow, error) {
	query := `
SELECT id, tenant_id, sender_account_id, status, flow_rate_per_second,
	funded_amount, buffer_amount, total_streamed, total_withdrawn,
	total_paused_seconds, started_at
FROM streams`
	args := []any{}
	if tenantID != "" {
		query += ` WHERE tenant_id = $1`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []streamRow
	for rows.Next() {
		var row streamRow
		if err := rows.Scan(&row.ID, &row.TenantID, &row.SenderID, &row.Status, &row.Rate,
			&row.FundedAmount, &row.BufferAmount, &row.TotalStreamed, &row.TotalWithdrawn,
			&row.TotalPausedSec, &row.StartedAt); err != nil {
			return nil, err
		}
		row.StartedAt = row.StartedAt.UTC()
		result = append(result, row)
	}
	return result, rows.Err()
}

func loadHolds(ctx context.Context, db *sql.DB) (map[string]holdRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT stream_id, account_id, principal, buffer, withdrawn, released
FROM stream_holds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]holdRow)
	for rows.Next() {
		var row holdRow
		if err := rows.Scan(&row.StreamID, &row.AccountID, &row.Principal, &row.Buffer,
			&row.Withdrawn, &row.Released); err != nil {
			return nil, err
		}
		result[row.StreamID] = row
	}
	return result, rows.Err()
}

func writeDrifts(outDir string, drifts []drift) error {
	file, err := os.Create(filepath.Join(outDir, "stream_ledger_drift.csv"))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"stream_id", "kind", "detail", "stream_value", "ledger_value"}); err != nil {
		return err
	}
	for _, d := range drifts {
		if err := writer.Write([]string{d.StreamID, d.Kind, d.Detail, d.StreamValue, d.LedgerValue}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.tenantID, "tenant", getenvDefault("TENANT_ID", ""), "tenant id (empty scans all tenants)")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', 6, 64)
}
