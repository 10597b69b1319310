package components

import (
	"fmt"
	"strings"

	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/rdbms"
)

// FactMergeSqlConfig describes the warehouse-side reconcile of a staging table
// into a fact table with dimension enrichment. All object and column names are
// parameters so the statement is built, not hard-coded.
type FactMergeSqlConfig struct {
	StageTable          rdbms.SchemaTable
	DimTable            rdbms.SchemaTable
	FactTable           rdbms.SchemaTable
	KeyCols             []string     // fact table key columns, matched against the staging columns of the same name.
	StageCols           []string     // non-key staging columns copied into the fact table.
	DimJoinCol          string       // the staging column joined to the dimension table's column of the same name.
	DimCols             []string     // dimension columns copied onto each fact row.
	UpdateComparisonCol string       // when set, matched rows are updated only if this column is strictly greater on the staging side.
	Policy              LookupPolicy // LookupPolicyNullFill joins the dimension with a left join; LookupPolicyExcludeRow uses an inner join, dropping staging rows with no dimension match.
	DedupByComparison   bool         // when set, duplicate staging keys are collapsed in the using clause, keeping the greatest UpdateComparisonCol value.
}

// GetFactMergeSql builds a single MERGE statement that upserts the staging
// table into the fact table enriched with dimension attributes.
// Staging rows join the dimension on DimJoinCol; matched fact rows are updated
// only when the staging row supersedes them per UpdateComparisonCol; unmatched
// keys are inserted.  The statement never deletes fact rows.
func GetFactMergeSql(cfg *FactMergeSqlConfig) (string, error) {
	if len(cfg.KeyCols) == 0 {
		return "", fmt.Errorf("fact merge requires at least one key column")
	}
	if cfg.DimJoinCol == "" && len(cfg.DimCols) > 0 {
		return "", fmt.Errorf("fact merge requires a dimension join column when dimension columns are supplied")
	}
	// Build the using-clause projection: keys and staging columns from the
	// staging side, enrichment columns from the dimension side.
	projected := make([]string, 0, len(cfg.KeyCols)+len(cfg.StageCols)+len(cfg.DimCols))
	for _, col := range cfg.KeyCols {
		projected = append(projected, "s."+col)
	}
	for _, col := range cfg.StageCols {
		projected = append(projected, "s."+col)
	}
	for _, col := range cfg.DimCols {
		projected = append(projected, "m."+col)
	}
	joinType := "left join"
	if cfg.Policy == LookupPolicyExcludeRow { // drop staging rows with no dimension match...
		joinType = "join"
	}
	using := fmt.Sprintf("select %v from %v s %v %v m on s.%v = m.%v",
		strings.Join(projected, ", "),
		cfg.StageTable, joinType, cfg.DimTable,
		cfg.DimJoinCol, cfg.DimJoinCol)
	if cfg.DedupByComparison { // collapse duplicate staging keys, keeping the freshest row...
		if cfg.UpdateComparisonCol == "" {
			return "", fmt.Errorf("fact merge requires an update comparison column to dedup staging keys")
		}
		partitionCols := make([]string, 0, len(cfg.KeyCols))
		for _, col := range cfg.KeyCols {
			partitionCols = append(partitionCols, "s."+col)
		}
		// Order on the remaining staging columns too so rows sharing the
		// comparison value dedup to the same winner on every run.
		orderCols := make([]string, 0, len(cfg.StageCols)+1)
		orderCols = append(orderCols, "s."+cfg.UpdateComparisonCol+" desc")
		for _, col := range cfg.StageCols {
			if col != cfg.UpdateComparisonCol {
				orderCols = append(orderCols, "s."+col+" desc")
			}
		}
		using = fmt.Sprintf("%v qualify row_number() over (partition by %v order by %v) = 1",
			using, strings.Join(partitionCols, ", "), strings.Join(orderCols, ", "))
	}
	onClause := helper.GenerateStringOfColsEqualsCols(cfg.KeyCols, "tgt", "src", " and ")
	matchedPredicate := ""
	if cfg.UpdateComparisonCol != "" { // only let fresher staging rows through...
		matchedPredicate = fmt.Sprintf(" and src.%v > tgt.%v", cfg.UpdateComparisonCol, cfg.UpdateComparisonCol)
	}
	updateCols := make([]string, 0, len(cfg.StageCols)+len(cfg.DimCols))
	updateCols = append(updateCols, cfg.StageCols...)
	updateCols = append(updateCols, cfg.DimCols...)
	setClause := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		setClause = append(setClause, fmt.Sprintf("tgt.%v = src.%v", col, col))
	}
	insertCols := make([]string, 0, len(cfg.KeyCols)+len(updateCols))
	insertCols = append(insertCols, cfg.KeyCols...)
	insertCols = append(insertCols, updateCols...)
	insertVals := make([]string, 0, len(insertCols))
	for _, col := range insertCols {
		insertVals = append(insertVals, "src."+col)
	}
	sql := fmt.Sprintf("merge into %v tgt using ( %v ) src on ( %v ) when matched%v then update set %v when not matched then insert ( %v ) values ( %v )",
		cfg.FactTable,
		using,
		onClause,
		matchedPredicate,
		strings.Join(setClause, ", "),
		strings.Join(insertCols, ", "),
		strings.Join(insertVals, ", "))
	return sql, nil
}
