package actions

import (
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/pkg/errors"
)

// ErrNoStagingRows is returned by RunStageGate when the staging table is
// empty, which stops the reconcile from running against a bad or missing
// batch. Callers can test for it with errors.Is.
var ErrNoStagingRows = errors.New("staging table has no rows to reconcile")

// RunStageGate checks the staging table holds at least minRows rows before
// the reconcile is allowed to run. minRows values below 1 mean 1.
// It returns the observed row count alongside any error.
func RunStageGate(log logger.Logger, db shared.Connector, table rdbms.SchemaTable, minRows int64) (int64, error) {
	if minRows < 1 {
		minRows = 1
	}
	n, err := rdbms.GetTableRowCount(log, db, table)
	if err != nil {
		return 0, err
	}
	if n < minRows {
		return n, errors.Wrapf(ErrNoStagingRows, "found %v row(s) in %v, need at least %v", n, table, minRows)
	}
	log.Info("Stage gate passed: ", n, " row(s) in ", table.String())
	return n, nil
}
