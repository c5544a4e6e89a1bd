package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrWalletNotFound indicates an unknown wallet address.
	ErrWalletNotFound = errors.New("storage: wallet not found")
	// ErrAlertNotFound indicates an unknown alert id.
	ErrAlertNotFound = errors.New("storage: alert not found")
)

const (
	listActiveWalletsSQL = `SELECT
        address, owner_label, threshold, is_active, cursor, created_at, updated_at
    FROM watched_wallets
    WHERE is_active
    ORDER BY address;`

	getWalletSQL = `SELECT
        address, owner_label, threshold, is_active, cursor, created_at, updated_at
    FROM watched_wallets
    WHERE address = $1;`

	advanceCursorSQL = `UPDATE watched_wallets
    SET cursor = $2, updated_at = now()
    WHERE address = $1
      AND cursor < $2;`

	insertTransactionSQL = `INSERT INTO transactions (
        hash, wallet_address, amount, currency, direction, tx_type,
        destination, destination_tag, ledger_index, executed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (hash) DO NOTHING;`

	walletActivitySinceSQL = `SELECT
        COUNT(*), COALESCE(SUM(amount), 0)
    FROM transactions
    WHERE wallet_address = $1
      AND executed_at >= $2;`

	getTransactionSQL = `SELECT
        hash, wallet_address, amount, currency, direction, tx_type,
        destination, destination_tag, ledger_index, executed_at, created_at
    FROM transactions
    WHERE hash = $1;`

	insertAlertSQL = `INSERT INTO whale_alerts (
        tx_hash, owner_label, amount, currency, category, severity, metadata
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (tx_hash) DO NOTHING
    RETURNING id, created_at;`

	getAlertSQL = `SELECT
        id, tx_hash, owner_label, amount, currency, category, severity,
        sent, sent_at, metadata, created_at
    FROM whale_alerts
    WHERE id = $1;`

	listUnsentAlertsSQL = `SELECT
        id, tx_hash, owner_label, amount, currency, category, severity,
        sent, sent_at, metadata, created_at
    FROM whale_alerts
    WHERE NOT sent
    ORDER BY created_at
    LIMIT $1;`

	listRecentAlertsSQL = `SELECT
        id, tx_hash, owner_label, amount, currency, category, severity,
        sent, sent_at, metadata, created_at
    FROM whale_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	listAlertsBetweenSQL = `SELECT
        id, tx_hash, owner_label, amount, currency, category, severity,
        sent, sent_at, metadata, created_at
    FROM whale_alerts
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at
    LIMIT $3;`

	markAlertSentSQL = `UPDATE whale_alerts
    SET sent = TRUE, sent_at = $2, metadata = $3
    WHERE id = $1;`

	countAlertsSinceSQL = `SELECT COUNT(*) FROM whale_alerts WHERE created_at >= $1;`

	insertAttemptSQL = `INSERT INTO notification_attempts (
        alert_id, channel, attempt, status, error, dispatch_id
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	insertHealthSampleSQL = `INSERT INTO health_samples (
        service, status, latency_ms, error, checked_at
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	downCountsSinceSQL = `SELECT service, COUNT(*)
    FROM health_samples
    WHERE status = 'down'
      AND checked_at >= $1
    GROUP BY service;`

	countSlowSinceSQL = `SELECT COUNT(*)
    FROM health_samples
    WHERE checked_at >= $1
      AND latency_ms > $2;`

	lastSampleTimeSQL = `SELECT MAX(checked_at) FROM health_samples WHERE service = $1;`

	latestSampleTimeSQL = `SELECT MAX(checked_at) FROM health_samples;`

	listHealthSamplesBetweenSQL = `SELECT
        id, service, status, latency_ms, error, checked_at
    FROM health_samples
    WHERE checked_at >= $1
      AND checked_at < $2
    ORDER BY checked_at;`

	pingSQL = `SELECT 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// WalletStore defines operations on the watched wallet registry.
type WalletStore interface {
	ListActiveWallets(ctx context.Context) ([]WatchedWallet, error)
	GetWallet(ctx context.Context, address string) (WatchedWallet, error)
	AdvanceCursor(ctx context.Context, address string, cursor int64) error
}

// TransactionStore defines operations for transaction persistence.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx Transaction) (bool, error)
	GetTransaction(ctx context.Context, hash string) (Transaction, error)
	WalletActivitySince(ctx context.Context, address string, since time.Time) (WalletActivity, error)
}

// AlertStore defines operations for whale alert persistence.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert WhaleAlert) (WhaleAlert, bool, error)
	GetAlert(ctx context.Context, id int64) (WhaleAlert, error)
	ListUnsentAlerts(ctx context.Context, limit int) ([]WhaleAlert, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]WhaleAlert, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time, limit int) ([]WhaleAlert, error)
	MarkAlertSent(ctx context.Context, id int64, sentAt time.Time, metadata json.RawMessage) error
	CountAlertsSince(ctx context.Context, since time.Time) (int64, error)
}

// AttemptStore records the delivery audit trail.
type AttemptStore interface {
	InsertAttempt(ctx context.Context, attempt NotificationAttempt) error
}

// HealthSampleStore defines operations for health sample persistence.
type HealthSampleStore interface {
	InsertHealthSample(ctx context.Context, sample HealthSample) error
	DownCountsSince(ctx context.Context, since time.Time) (map[string]int, error)
	CountSlowSince(ctx context.Context, since time.Time, latencyMS int64) (int64, error)
	LastSampleTime(ctx context.Context, service string) (*time.Time, error)
	LatestSampleTime(ctx context.Context) (*time.Time, error)
	ListHealthSamplesBetween(ctx context.Context, from, to time.Time) ([]HealthSample, error)
	Ping(ctx context.Context) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to all pipeline entities.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Unlock is best effort; the session lock dies with the connection.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// ListActiveWallets returns all wallets enrolled for polling.
func (s *Store) ListActiveWallets(ctx context.Context) ([]WatchedWallet, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveWalletsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active wallets: %w", queryErr)
	}
	defer rows.Close()

	wallets := make([]WatchedWallet, 0)
	for rows.Next() {
		wallet, scanErr := scanWallet(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		wallets = append(wallets, wallet)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return wallets, nil
}

// GetWallet fetches one wallet by address.
func (s *Store) GetWallet(ctx context.Context, address string) (WatchedWallet, error) {
	pool, err := s.getPool()
	if err != nil {
		return WatchedWallet{}, err
	}

	rows, queryErr := pool.Query(ctx, getWalletSQL, address)
	if queryErr != nil {
		return WatchedWallet{}, fmt.Errorf("get wallet: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return WatchedWallet{}, rows.Err()
		}
		return WatchedWallet{}, ErrWalletNotFound
	}
	return scanWallet(rows)
}

// AdvanceCursor moves a wallet cursor forward. The conditional write keeps
// the cursor monotonic under concurrent or repeated polls; advancing to a
// position at or below the current cursor is a no-op.
func (s *Store) AdvanceCursor(ctx context.Context, address string, cursor int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, advanceCursorSQL, address, cursor); execErr != nil {
		return fmt.Errorf("advance cursor: %w", execErr)
	}
	return nil
}

// InsertTransaction persists a transaction. Returns false when the hash
// was already stored, which callers treat as a normal no-op.
func (s *Store) InsertTransaction(ctx context.Context, tx Transaction) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var destination interface{}
	if tx.Destination != nil {
		destination = *tx.Destination
	}
	var destinationTag interface{}
	if tx.DestinationTag != nil {
		destinationTag = int64(*tx.DestinationTag)
	}

	cmdTag, execErr := pool.Exec(ctx, insertTransactionSQL,
		tx.Hash,
		tx.WalletAddress,
		tx.Amount.String(),
		tx.Currency,
		tx.Direction,
		tx.TxType,
		destination,
		destinationTag,
		tx.LedgerIndex,
		tx.ExecutedAt,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert transaction: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// GetTransaction fetches one transaction by hash.
func (s *Store) GetTransaction(ctx context.Context, hash string) (Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return Transaction{}, err
	}

	var (
		tx             Transaction
		amountStr      string
		destination    sql.NullString
		destinationTag sql.NullInt64
	)
	if scanErr := pool.QueryRow(ctx, getTransactionSQL, hash).Scan(
		&tx.Hash,
		&tx.WalletAddress,
		&amountStr,
		&tx.Currency,
		&tx.Direction,
		&tx.TxType,
		&destination,
		&destinationTag,
		&tx.LedgerIndex,
		&tx.ExecutedAt,
		&tx.CreatedAt,
	); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Transaction{}, pgx.ErrNoRows
		}
		return Transaction{}, fmt.Errorf("get transaction: %w", scanErr)
	}

	amount, convErr := decimal.NewFromString(amountStr)
	if convErr != nil {
		return Transaction{}, fmt.Errorf("parse transaction amount: %w", convErr)
	}
	tx.Amount = amount
	if destination.Valid {
		value := destination.String
		tx.Destination = &value
	}
	if destinationTag.Valid {
		value := uint32(destinationTag.Int64)
		tx.DestinationTag = &value
	}
	return tx, nil
}

// WalletActivitySince aggregates a wallet's transaction count and volume.
func (s *Store) WalletActivitySince(ctx context.Context, address string, since time.Time) (WalletActivity, error) {
	pool, err := s.getPool()
	if err != nil {
		return WalletActivity{}, err
	}

	var count int64
	var volumeStr string
	if scanErr := pool.QueryRow(ctx, walletActivitySinceSQL, address, since).Scan(&count, &volumeStr); scanErr != nil {
		return WalletActivity{}, fmt.Errorf("wallet activity since: %w", scanErr)
	}

	volume, convErr := decimal.NewFromString(volumeStr)
	if convErr != nil {
		return WalletActivity{}, fmt.Errorf("parse activity volume: %w", convErr)
	}
	return WalletActivity{TxCount: count, Volume: volume}, nil
}

// InsertAlert persists a whale alert. The second return value is false when
// an alert already existed for the transaction hash.
func (s *Store) InsertAlert(ctx context.Context, alert WhaleAlert) (WhaleAlert, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return WhaleAlert{}, false, err
	}

	metadata := alert.Metadata
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.TxHash,
		alert.OwnerLabel,
		alert.Amount.String(),
		alert.Currency,
		alert.Category,
		alert.Severity,
		[]byte(metadata),
	)

	rec := alert
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return WhaleAlert{}, false, nil
		}
		return WhaleAlert{}, false, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, true, nil
}

// GetAlert fetches one alert by id.
func (s *Store) GetAlert(ctx context.Context, id int64) (WhaleAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return WhaleAlert{}, err
	}

	rows, queryErr := pool.Query(ctx, getAlertSQL, id)
	if queryErr != nil {
		return WhaleAlert{}, fmt.Errorf("get alert: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return WhaleAlert{}, rows.Err()
		}
		return WhaleAlert{}, ErrAlertNotFound
	}
	return scanAlert(rows)
}

// ListUnsentAlerts lists alerts still awaiting delivery, oldest first.
func (s *Store) ListUnsentAlerts(ctx context.Context, limit int) ([]WhaleAlert, error) {
	return s.listAlerts(ctx, listUnsentAlertsSQL, limit)
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]WhaleAlert, error) {
	return s.listAlerts(ctx, listRecentAlertsSQL, limit)
}

// ListAlertsBetween lists alerts created within [from, to), oldest first.
func (s *Store) ListAlertsBetween(ctx context.Context, from, to time.Time, limit int) ([]WhaleAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]WhaleAlert, 0, limit)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func (s *Store) listAlerts(ctx context.Context, query string, limit int) ([]WhaleAlert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]WhaleAlert, 0, limit)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// MarkAlertSent flips the sent flag after a confirmed delivery. Re-marking
// an already sent alert is harmless.
func (s *Store) MarkAlertSent(ctx context.Context, id int64, sentAt time.Time, metadata json.RawMessage) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}

	cmdTag, execErr := pool.Exec(ctx, markAlertSentSQL, id, sentAt, []byte(metadata))
	if execErr != nil {
		return fmt.Errorf("mark alert sent: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// CountAlertsSince counts alerts created after the given instant.
func (s *Store) CountAlertsSince(ctx context.Context, since time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAlertsSinceSQL, since).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts since: %w", scanErr)
	}
	return count, nil
}

// InsertAttempt appends one delivery attempt to the audit trail.
func (s *Store) InsertAttempt(ctx context.Context, attempt NotificationAttempt) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if attempt.Error != nil {
		errMsg = *attempt.Error
	}

	if _, execErr := pool.Exec(ctx, insertAttemptSQL,
		attempt.AlertID,
		attempt.Channel,
		attempt.Attempt,
		attempt.Status,
		errMsg,
		attempt.DispatchID,
	); execErr != nil {
		return fmt.Errorf("insert attempt: %w", execErr)
	}
	return nil
}

// InsertHealthSample appends one health observation.
func (s *Store) InsertHealthSample(ctx context.Context, sample HealthSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	checkedAt := sample.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	if _, execErr := pool.Exec(ctx, insertHealthSampleSQL,
		sample.Service,
		sample.Status,
		sample.LatencyMS,
		errMsg,
		checkedAt,
	); execErr != nil {
		return fmt.Errorf("insert health sample: %w", execErr)
	}
	return nil
}

// DownCountsSince counts 'down' samples per service within the window.
func (s *Store) DownCountsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, downCountsSinceSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("down counts since: %w", queryErr)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var service string
		var count int
		if scanErr := rows.Scan(&service, &count); scanErr != nil {
			return nil, scanErr
		}
		counts[service] = count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

// CountSlowSince counts samples slower than the latency threshold.
func (s *Store) CountSlowSince(ctx context.Context, since time.Time, latencyMS int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSlowSinceSQL, since, latencyMS).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count slow since: %w", scanErr)
	}
	return count, nil
}

// LastSampleTime returns the newest sample timestamp for one service, or
// nil when none exists.
func (s *Store) LastSampleTime(ctx context.Context, service string) (*time.Time, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	var ts sql.NullTime
	if scanErr := pool.QueryRow(ctx, lastSampleTimeSQL, service).Scan(&ts); scanErr != nil {
		return nil, fmt.Errorf("last sample time: %w", scanErr)
	}
	if !ts.Valid {
		return nil, nil
	}
	value := ts.Time
	return &value, nil
}

// LatestSampleTime returns the newest sample timestamp across all services.
func (s *Store) LatestSampleTime(ctx context.Context) (*time.Time, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	var ts sql.NullTime
	if scanErr := pool.QueryRow(ctx, latestSampleTimeSQL).Scan(&ts); scanErr != nil {
		return nil, fmt.Errorf("latest sample time: %w", scanErr)
	}
	if !ts.Valid {
		return nil, nil
	}
	value := ts.Time
	return &value, nil
}

// ListHealthSamplesBetween lists samples within a time window.
func (s *Store) ListHealthSamplesBetween(ctx context.Context, from, to time.Time) ([]HealthSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listHealthSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list health samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]HealthSample, 0)
	for rows.Next() {
		var sample HealthSample
		var errMsg sql.NullString
		if scanErr := rows.Scan(
			&sample.ID,
			&sample.Service,
			&sample.Status,
			&sample.LatencyMS,
			&errMsg,
			&sample.CheckedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		if errMsg.Valid {
			msg := errMsg.String
			sample.Error = &msg
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// Ping performs a trivial read against the store.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	var one int
	if scanErr := pool.QueryRow(ctx, pingSQL).Scan(&one); scanErr != nil {
		return fmt.Errorf("ping store: %w", scanErr)
	}
	return nil
}

func scanWallet(rows pgx.Rows) (WatchedWallet, error) {
	var (
		wallet       WatchedWallet
		thresholdStr string
	)
	if err := rows.Scan(
		&wallet.Address,
		&wallet.OwnerLabel,
		&thresholdStr,
		&wallet.IsActive,
		&wallet.Cursor,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	); err != nil {
		return WatchedWallet{}, err
	}

	threshold, convErr := decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return WatchedWallet{}, fmt.Errorf("parse wallet threshold: %w", convErr)
	}
	wallet.Threshold = threshold
	return wallet, nil
}

func scanAlert(rows pgx.Rows) (WhaleAlert, error) {
	var (
		alert     WhaleAlert
		amountStr string
		sentAt    sql.NullTime
		metadata  json.RawMessage
	)
	if err := rows.Scan(
		&alert.ID,
		&alert.TxHash,
		&alert.OwnerLabel,
		&amountStr,
		&alert.Currency,
		&alert.Category,
		&alert.Severity,
		&alert.Sent,
		&sentAt,
		&metadata,
		&alert.CreatedAt,
	); err != nil {
		return WhaleAlert{}, err
	}

	amount, convErr := decimal.NewFromString(amountStr)
	if convErr != nil {
		return WhaleAlert{}, fmt.Errorf("parse alert amount: %w", convErr)
	}
	alert.Amount = amount
	alert.Metadata = metadata
	if sentAt.Valid {
		value := sentAt.Time
		alert.SentAt = &value
	}
	return alert, nil
}

var (
	_ WalletStore       = (*Store)(nil)
	_ TransactionStore  = (*Store)(nil)
	_ AlertStore        = (*Store)(nil)
	_ AttemptStore      = (*Store)(nil)
	_ HealthSampleStore = (*Store)(nil)
	_ AdvisoryLocker    = (*Store)(nil)
)
