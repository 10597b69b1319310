package shared

import (
	"fmt"
	"strings"

	om "github.com/cevaris/ordered_map"
	"github.com/pkg/errors"

	h "github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
)

// DmlGeneratorTxtBatch generates Snowflake-dialect DML with '?' bind markers.
type DmlGeneratorTxtBatch struct{}

// SqlStatementGeneratorConfig configures the target table for DML generation.
type SqlStatementGeneratorConfig struct {
	Log             logger.Logger
	OutputSchema    string
	SchemaSeparator string
	OutputTable     string
	TargetKeyCols   *om.OrderedMap // ordered map of: key = chan field name; value = target table column name
	TargetOtherCols *om.OrderedMap // ordered map of: key = chan field name; value = target table column name
	// UpdateComparisonCol, when set, restricts the matched/update branch of a MERGE to
	// rows where src.<col> > tgt.<col>. Used to make the staging row win only when its
	// last_update is strictly newer.
	UpdateComparisonCol string
}

func FixSqlStatementGeneratorConfig(cfg *SqlStatementGeneratorConfig) {
	if cfg.OutputTable == "" {
		cfg.Log.Fatal("Error, missing output table name.")
	}
	if cfg.OutputSchema == "" {
		cfg.SchemaSeparator = ""
	} else {
		cfg.SchemaSeparator = "."
	}
}

// SqlMergeTxtBatch implements interface SqlStmtTxtBatcher and is able to
// generate MERGE statements with batches of rows supplied as bind values.
type SqlMergeTxtBatch struct {
	SqlStatementGeneratorConfig // mandatory to be populated.
	sqlValues                   []interface{}
	selectRows                  []string
	batchIndex                  int
	batchSize                   int
	AllCols                     []string
	KeyCols                     []string
	OtherCols                   []string
}

// NewMergeGenerator returns a MERGE statement generator for the configured target table.
func (o *DmlGeneratorTxtBatch) NewMergeGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtGenerator {
	FixSqlStatementGeneratorConfig(cfg)
	cfg.Log.Debug("Creating new SqlMergeTxtBatch")
	return &SqlMergeTxtBatch{SqlStatementGeneratorConfig: *cfg}
}

func (o *SqlMergeTxtBatch) InitBatch(batchSize int) {
	o.batchSize = batchSize
	o.batchIndex = 0
	var idx int
	if len(o.KeyCols) == 0 { // if we have not built a list of columns from targetKeyCols ordered map...
		o.KeyCols = make([]string, o.TargetKeyCols.Len())
		idx = 0
		h.OrderedMapValuesToStringSlice(o.Log, o.TargetKeyCols, &o.KeyCols, &idx)
	}
	if len(o.OtherCols) == 0 { // if we have not built a list of columns from targetOtherCols ordered map...
		o.OtherCols = make([]string, o.TargetOtherCols.Len())
		idx = 0
		h.OrderedMapValuesToStringSlice(o.Log, o.TargetOtherCols, &o.OtherCols, &idx)
	}
	if len(o.AllCols) == 0 {
		o.AllCols = make([]string, 0, len(o.KeyCols)+len(o.OtherCols))
		o.AllCols = append(o.AllCols, o.KeyCols...)
		o.AllCols = append(o.AllCols, o.OtherCols...)
	}
	o.selectRows = make([]string, 0, o.batchSize)
	o.sqlValues = make([]interface{}, 0, o.batchSize*len(o.AllCols)) // many values per row in a batch.
}

// AddValuesToBatch adds one row of bind values to the batch.
// The ordering of values is important: supply the key columns followed by the other columns.
func (o *SqlMergeTxtBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	if o.batchIndex >= o.batchSize { // if we have added to batch more than batch size allows...
		return true, errors.New("no more rows allowed in batch")
	}
	if len(values) != len(o.AllCols) { // if not enough values are supplied for this batch by the caller...
		return false, errors.Errorf(
			"the number of target table columns does not match the number of input values supplied: num values = %v; num columns = %v",
			len(values), len(o.AllCols))
	}
	// Build 'select ? [as colname], ?...' for this row. Column aliases are only
	// needed on the first row of the inline view.
	binds := make([]string, len(values))
	for idx := range values {
		if o.batchIndex == 0 { // if this is the first row in the batch...
			binds[idx] = fmt.Sprintf("? as %v", o.AllCols[idx])
		} else {
			binds[idx] = "?"
		}
	}
	o.selectRows = append(o.selectRows, "select "+strings.Join(binds, ", "))
	o.sqlValues = append(o.sqlValues, values...)
	o.batchIndex++
	return o.batchIndex >= o.batchSize, nil
}

// GetStatement builds the MERGE statement for the rows added so far.
func (o *SqlMergeTxtBatch) GetStatement() string {
	matched := "when matched"
	if o.UpdateComparisonCol != "" { // if the staging row should win only when strictly newer...
		matched = fmt.Sprintf("when matched and src.%v > tgt.%v", o.UpdateComparisonCol, o.UpdateComparisonCol)
	}
	srcCols := make([]string, len(o.AllCols))
	for idx, col := range o.AllCols {
		srcCols[idx] = "src." + col
	}
	// Keep this on one line so statements are comparable in tests.
	return fmt.Sprintf(
		"merge into %v%v%v tgt using (%v) src on (%v) %v then update set %v when not matched then insert (%v) values (%v)",
		o.OutputSchema, o.SchemaSeparator, o.OutputTable,
		strings.Join(o.selectRows, " union all "),
		h.GenerateStringOfColsEqualsCols(o.KeyCols, "tgt", "src", " and "),
		matched,
		h.GenerateStringOfColsEqualsCols(o.OtherCols, "tgt", "src", ", "),
		strings.Join(o.AllCols, ", "),
		strings.Join(srcCols, ", "),
	)
}

// GetValues returns the bind values for the statement returned by GetStatement.
func (o *SqlMergeTxtBatch) GetValues() []interface{} {
	return o.sqlValues
}
