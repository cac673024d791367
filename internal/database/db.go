// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open はDATABASE_URLのスキームに応じてPostgreSQLまたはSQLiteの接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
//
// SQLiteは単一コネクションに制限する。:memory: データベースをコネクション間で共有し、
// 書き込みロックの競合を避けるため。
func Open(databaseURL string) (*sql.DB, Driver, error) {
	driver, dsn, err := ParseDSN(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, driver, nil
}
