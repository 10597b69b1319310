package rdbms

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	sf "github.com/snowflakedb/gosnowflake"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
)

// NewSnowflakeConnection opens the Snowflake database connection specified in d.
// The DSN may carry the optional scheme prefix "snowflake://".
func NewSnowflakeConnection(log logger.Logger, d *shared.DsnConnectionDetails) (shared.Connector, error) {
	dsn := strings.TrimPrefix(d.Dsn, "snowflake://")
	if _, err := sf.ParseDSN(dsn); err != nil {
		return nil, errors.Wrapf(err, "bad Snowflake DSN supplied")
	}
	conn := &shared.SqlConnection{
		Dml:    &shared.DmlGeneratorTxtBatch{},
		DbType: "snowflake",
	}
	var err error
	conn.DbSql, err = sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	if err = conn.DbSql.Ping(); err != nil {
		return nil, errors.Wrap(err, "unable to ping Snowflake")
	}
	log.Info("Successful database connection to Snowflake.")
	return conn, nil
}

// SnowflakeParseDSN validates a Snowflake DSN with or without the scheme prefix.
func SnowflakeParseDSN(dsn string) (*sf.Config, error) {
	return sf.ParseDSN(strings.TrimPrefix(dsn, "snowflake://"))
}
