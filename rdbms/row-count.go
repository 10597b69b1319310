package rdbms

import (
	"fmt"

	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/pkg/errors"
)

// GetTableRowCount returns the number of rows in the given table.
func GetTableRowCount(log logger.Logger, db shared.Connector, table SchemaTable) (int64, error) {
	sqlText := fmt.Sprintf("select count(1) from %v", table)
	log.Debug("GetTableRowCount executing: ", sqlText)
	rows, err := db.Query(sqlText)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to count rows in table %v", table)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return 0, errors.Errorf("no rows returned counting table %v", table)
	}
	var v interface{}
	if err := rows.Scan(&v); err != nil {
		return 0, errors.Wrapf(err, "unable to scan row count for table %v", table)
	}
	n, err := helper.GetInt64FromInterface(v)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected row count value for table %v", table)
	}
	return n, nil
}
