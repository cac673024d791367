package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver はdatabase/sqlに登録されたドライバ名を表す。
type Driver string

const (
	// DriverPostgres はlib/pqドライバ。
	DriverPostgres Driver = "postgres"
	// DriverSQLite はmodernc.org/sqliteドライバ。
	DriverSQLite Driver = "sqlite"
)

// sqliteDSNFormat はmodernc sqlite用のDSN。外部キー制約を有効化し、ロック待ちを5秒に設定する。
const sqliteDSNFormat = "file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// ParseDSN はDATABASE_URLのスキームからドライバとdatabase/sql用のDSNを決定する。
//
//	postgres://... / postgresql://...  → DriverPostgres（URLをそのまま使用）
//	sqlite://path.db / sqlite:///abs/path.db / sqlite://:memory:  → DriverSQLite
func ParseDSN(databaseURL string) (Driver, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite URL has no path: %q", databaseURL)
		}
		return DriverSQLite, fmt.Sprintf(sqliteDSNFormat, path), nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %q", schemeOf(databaseURL))
	}
}

// Rebind は '?' プレースホルダをドライバ固有の形式に変換する。
// PostgreSQLでは $1, $2, ... に書き換え、SQLiteではそのまま返す。
func (d Driver) Rebind(query string) string {
	if d != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func schemeOf(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i > 0 {
		return databaseURL[:i]
	}
	return ""
}
