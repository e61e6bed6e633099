package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"FlowSentry/internal/model"
)

// Repository implements model.RecordStore on Postgres. Claims are leases:
// a record claimed by one batch run is invisible to others until the lease
// expires or the claim is released.
type Repository struct {
	Store    *Store
	LeaseTTL time.Duration
}

// NewRepository creates a repository with the given claim lease TTL.
func NewRepository(store *Store, leaseTTL time.Duration) *Repository {
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}
	return &Repository{Store: store, LeaseTTL: leaseTTL}
}

const recordColumns = `id, src_ip, dst_ip, src_port, dst_port, protocol, packet_size,
	duration, flow_bytes_per_sec, flow_packets_per_sec, fwd_packets, bwd_packets,
	label, confidence, processed, captured_at, origin_file, claimed_by, claimed_at`

// InsertRecords persists newly ingested flows in PENDING state.
func (r *Repository) InsertRecords(ctx context.Context, records []model.TrafficRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		label := rec.Label
		if label == "" {
			label = model.LabelPending
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO traffic_records (id, src_ip, dst_ip, src_port, dst_port, protocol,
				packet_size, duration, flow_bytes_per_sec, flow_packets_per_sec,
				fwd_packets, bwd_packets, label, processed, captured_at, origin_file)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,false,$14,$15)`,
			id, rec.SrcIP, rec.DstIP, rec.SrcPort, rec.DstPort, rec.Protocol,
			rec.PacketSize, rec.Duration, rec.FlowBytesPerSec, rec.FlowPacketsPerSec,
			rec.FwdPackets, rec.BwdPackets, label, rec.CapturedAt, rec.OriginFile,
		)
		if err != nil {
			return fmt.Errorf("failed to insert traffic record: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// FetchTrainingSample returns up to limit records ordered by capture time,
// newest first.
func (r *Repository) FetchTrainingSample(ctx context.Context, limit int) ([]model.TrafficRecord, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM traffic_records
		ORDER BY captured_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training sample: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ClaimUnprocessed leases unprocessed records to claimant. Expired leases
// from crashed runs are reclaimed. The subselect with FOR UPDATE SKIP LOCKED
// guarantees at most one concurrent run owns a given record.
func (r *Repository) ClaimUnprocessed(ctx context.Context, claimant string, ids []string, limit int) ([]model.TrafficRecord, error) {
	query := `
		UPDATE traffic_records
		SET claimed_by = $1, claimed_at = now()
		WHERE id IN (
			SELECT id FROM traffic_records
			WHERE processed = false
			  AND (claimed_at IS NULL OR claimed_at < now() - $2::interval)`
	args := []any{claimant, fmt.Sprintf("%f seconds", r.LeaseTTL.Seconds())}

	if len(ids) > 0 {
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args)+1)
		args = append(args, ids)
	}
	query += " ORDER BY captured_at"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}
	query += `
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + recordColumns

	rows, err := r.Store.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to claim unprocessed records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ReleaseClaims returns leased records to the unprocessed pool.
func (r *Repository) ReleaseClaims(ctx context.Context, claimant string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.Store.Pool.Exec(ctx, `
		UPDATE traffic_records
		SET claimed_by = NULL, claimed_at = NULL
		WHERE claimed_by = $1 AND id = ANY($2)`, claimant, ids)
	if err != nil {
		return fmt.Errorf("failed to release claims: %w", err)
	}
	return nil
}

// ApplyPredictions writes label, confidence and processed=true on each
// record and creates its audit row, in one transaction per call.
func (r *Repository) ApplyPredictions(ctx context.Context, updates []model.PredictionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.Store.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin prediction transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		_, err := tx.Exec(ctx, `
			UPDATE traffic_records
			SET label = $1, confidence = $2, processed = true,
			    claimed_by = NULL, claimed_at = NULL
			WHERE id = $3`,
			u.Label, u.Confidence, u.RecordID,
		)
		if err != nil {
			return fmt.Errorf("failed to update record %s: %w", u.RecordID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO predictions (id, traffic_id, label, confidence, model_version, predicted_at)
			VALUES ($1,$2,$3,$4,$5,now())`,
			uuid.NewString(), u.RecordID, u.Label, u.Confidence, u.ModelVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to insert prediction for record %s: %w", u.RecordID, err)
		}
	}
	return tx.Commit(ctx)
}

// CountByLabel returns record counts grouped by label.
func (r *Repository) CountByLabel(ctx context.Context) (map[model.Label]int64, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT label, COUNT(*) FROM traffic_records GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records by label: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Label]int64)
	for rows.Next() {
		var label model.Label
		var count int64
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		counts[label] = count
	}
	return counts, rows.Err()
}

func scanRecords(rows pgx.Rows) ([]model.TrafficRecord, error) {
	var records []model.TrafficRecord
	for rows.Next() {
		var rec model.TrafficRecord
		var claimedBy *string
		if err := rows.Scan(
			&rec.ID, &rec.SrcIP, &rec.DstIP, &rec.SrcPort, &rec.DstPort, &rec.Protocol,
			&rec.PacketSize, &rec.Duration, &rec.FlowBytesPerSec, &rec.FlowPacketsPerSec,
			&rec.FwdPackets, &rec.BwdPackets, &rec.Label, &rec.Confidence, &rec.Processed,
			&rec.CapturedAt, &rec.OriginFile, &claimedBy, &rec.ClaimedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan traffic record: %w", err)
		}
		if claimedBy != nil {
			rec.ClaimedBy = *claimedBy
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
