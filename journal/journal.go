// Package journal persiste un registro de las operaciones enviadas al
// trade server en PostgreSQL.
//
// El journal es best-effort: un fallo de persistencia se loguea pero
// nunca bloquea ni revierte la operación de trading que lo originó.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq" // Driver PostgreSQL
	"go.opentelemetry.io/otel/attribute"

	"github.com/xKoRx/mt5/telemetry"
	"github.com/xKoRx/mt5/telemetry/semconv"
	"github.com/xKoRx/mt5/utils"
)

// Entry es una fila del journal de operaciones.
type Entry struct {
	CommandID    string  `json:"command_id"`
	Action       string  `json:"action"`
	Symbol       string  `json:"symbol"`
	OrderType    string  `json:"order_type"`
	Volume       float64 `json:"volume"`
	Price        float64 `json:"price"`
	StopLoss     float64 `json:"sl"`
	TakeProfit   float64 `json:"tp"`
	Magic        int64   `json:"magic"`
	Deviation    int64   `json:"deviation"`
	Retcode      int     `json:"retcode"`
	Deal         int64   `json:"deal"`
	Order        int64   `json:"order"`
	FilledPrice  float64 `json:"filled_price"`
	FilledVolume float64 `json:"filled_volume"`
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"error_message"`
	Attempt      int     `json:"attempt"`
	ExecutedAtMs int64   `json:"executed_at_ms"`
}

// Journal escribe entries en la tabla mt5.trade_journal.
//
// La conexión se abre lazy en el primer Record; un *Journal nil es un
// no-op válido, así el caller no necesita condicionar cada llamada.
type Journal struct {
	dsn       string
	telemetry *telemetry.Client

	mu sync.Mutex
	db *sql.DB
}

// New crea un Journal sobre el DSN de PostgreSQL dado.
//
// No abre la conexión; eso ocurre en el primer Record. Un DSN inválido
// se reporta recién en ese momento.
func New(dsn string, tel *telemetry.Client) *Journal {
	if tel == nil {
		tel = telemetry.NewNop()
	}
	return &Journal{dsn: dsn, telemetry: tel}
}

func (j *Journal) conn(ctx context.Context) (*sql.DB, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db != nil {
		return j.db, nil
	}

	db, err := sql.Open("postgres", j.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	j.db = db
	return db, nil
}

// Record persiste una entry. Best-effort: el error se loguea y se
// retorna, pero el caller típico lo ignora.
func (j *Journal) Record(ctx context.Context, entry *Entry) error {
	if j == nil {
		return nil
	}
	if entry.ExecutedAtMs == 0 {
		entry.ExecutedAtMs = utils.NowUnixMilli()
	}

	db, err := j.conn(ctx)
	if err != nil {
		j.warn(ctx, entry, err)
		return err
	}

	query := `
		INSERT INTO mt5.trade_journal (
			command_id, action, symbol, order_type,
			volume, price, stop_loss, take_profit, magic, deviation,
			retcode, deal, order_ticket, filled_price, filled_volume,
			success, error_message, attempt, executed_at_ms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`
	_, err = db.ExecContext(ctx, query,
		entry.CommandID,
		entry.Action,
		entry.Symbol,
		entry.OrderType,
		entry.Volume,
		entry.Price,
		entry.StopLoss,
		entry.TakeProfit,
		entry.Magic,
		entry.Deviation,
		entry.Retcode,
		entry.Deal,
		entry.Order,
		entry.FilledPrice,
		entry.FilledVolume,
		entry.Success,
		entry.ErrorMessage,
		entry.Attempt,
		entry.ExecutedAtMs,
	)
	if err != nil {
		err = fmt.Errorf("failed to record journal entry: %w", err)
		j.warn(ctx, entry, err)
		return err
	}
	return nil
}

func (j *Journal) warn(ctx context.Context, entry *Entry, err error) {
	j.telemetry.Warn(ctx, "Journal write failed",
		semconv.Mt5.CommandID.String(entry.CommandID),
		semconv.Mt5.Symbol.String(entry.Symbol),
		attribute.String("error", err.Error()),
	)
}

// Recent retorna las últimas limit entries, más reciente primero.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if j == nil {
		return nil, nil
	}
	db, err := j.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT command_id, action, symbol, order_type,
		       volume, price, stop_loss, take_profit, magic, deviation,
		       retcode, deal, order_ticket, filled_price, filled_volume,
		       success, error_message, attempt, executed_at_ms
		FROM mt5.trade_journal
		ORDER BY executed_at_ms DESC
		LIMIT $1
	`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.CommandID,
			&e.Action,
			&e.Symbol,
			&e.OrderType,
			&e.Volume,
			&e.Price,
			&e.StopLoss,
			&e.TakeProfit,
			&e.Magic,
			&e.Deviation,
			&e.Retcode,
			&e.Deal,
			&e.Order,
			&e.FilledPrice,
			&e.FilledVolume,
			&e.Success,
			&e.ErrorMessage,
			&e.Attempt,
			&e.ExecutedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// BySymbol retorna las últimas limit entries de un símbolo.
func (j *Journal) BySymbol(ctx context.Context, symbol string, limit int) ([]*Entry, error) {
	if j == nil {
		return nil, nil
	}
	db, err := j.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT command_id, action, symbol, order_type,
		       volume, price, stop_loss, take_profit, magic, deviation,
		       retcode, deal, order_ticket, filled_price, filled_volume,
		       success, error_message, attempt, executed_at_ms
		FROM mt5.trade_journal
		WHERE symbol = $1
		ORDER BY executed_at_ms DESC
		LIMIT $2
	`
	rows, err := db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal by symbol: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.CommandID,
			&e.Action,
			&e.Symbol,
			&e.OrderType,
			&e.Volume,
			&e.Price,
			&e.StopLoss,
			&e.TakeProfit,
			&e.Magic,
			&e.Deviation,
			&e.Retcode,
			&e.Deal,
			&e.Order,
			&e.FilledPrice,
			&e.FilledVolume,
			&e.Success,
			&e.ErrorMessage,
			&e.Attempt,
			&e.ExecutedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// Close cierra la conexión si fue abierta.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
