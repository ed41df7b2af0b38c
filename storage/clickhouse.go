package storage

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"argus/config"
	"argus/hunt"
)

// ClickHouse holds the incident store connection. It is the relational
// backend the hunt engine executes translated queries against; the engine
// treats it as opaque text-in/records-out.
type ClickHouse struct {
	Conn   driver.Conn
	Logger *zap.SugaredLogger
}

// NewClickHouse opens a connection to the incident store.
func NewClickHouse(cfg *config.Config, logger *zap.SugaredLogger) (*ClickHouse, error) {
	options := &clickhouse.Options{
		Addr: []string{cfg.ClickHouse.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.Username,
			Password: cfg.ClickHouse.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.Query.TimeoutSeconds),
		},
		DialTimeout: 10 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:     cfg.ClickHouse.MaxPoolSize,
		MaxIdleConns:     cfg.ClickHouse.MaxPoolSize / 2,
		ConnMaxLifetime:  1 * time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			// TCP keepalive detects broken connections
			var d net.Dialer
			d.Timeout = 10 * time.Second
			d.KeepAlive = 30 * time.Second
			return d.DialContext(ctx, "tcp", addr)
		},
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Infow("ClickHouse connected", "addr", cfg.ClickHouse.Addr, "database", cfg.ClickHouse.Database)
	return &ClickHouse{Conn: conn, Logger: logger}, nil
}

// Query implements hunt.Backend. Columns are whatever the query produced;
// values are scanned generically via the driver's reported scan types.
// ClickHouse does not report the pre-LIMIT matched total, so Matched stays 0
// and the executor falls back to the returned length.
func (c *ClickHouse) Query(ctx context.Context, sql string) (*hunt.Recordset, error) {
	rows, err := c.Conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := rows.Columns()
	types := rows.ColumnTypes()

	rs := &hunt.Recordset{Columns: columns, Rows: make([]map[string]interface{}, 0)}
	for rows.Next() {
		dests := make([]interface{}, len(types))
		for i, ct := range types {
			dests[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = reflect.ValueOf(dests[i]).Elem().Interface()
		}
		rs.Rows = append(rs.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

// Close closes the connection.
func (c *ClickHouse) Close() error {
	return c.Conn.Close()
}
