package actions

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/sales"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// loadConnection fetches the named connection from the loader, or from the
// environment when twelveFactorMode is set, so containers and lambda
// deployments can supply a DSN without a connections file.
func loadConnection(log logger.Logger, loader ConnectionLoader, connectionName string, twelveFactorMode bool) (shared.ConnectionDetails, error) {
	if twelveFactorMode {
		envName := helper.GetDsnEnvVarName(connectionName)
		log.Debug("loading connection ", connectionName, " from environment variable ", envName)
		dsn, err := helper.GetEnvVar(envName, true)
		if err != nil {
			return shared.ConnectionDetails{}, err
		}
		d := &shared.DsnConnectionDetails{Dsn: dsn}
		scheme, err := d.GetScheme()
		if err != nil {
			return shared.ConnectionDetails{}, errors.Wrapf(err, "unable to parse DSN found in environment variable %v", envName)
		}
		return shared.ConnectionDetails{
			Type:        scheme,
			LogicalName: connectionName,
			Data:        d.GetMap(nil),
		}, nil
	}
	if loader == nil {
		return shared.ConnectionDetails{}, errors.Errorf("no connection loader available to load connection %q", connectionName)
	}
	return loader.LoadConnection(connectionName)
}

// openWarehouseConnection loads and opens the target warehouse connection.
// Callers own the returned Connector and must Close it.
func openWarehouseConnection(log logger.Logger, loader ConnectionLoader, connectionName string, twelveFactorMode bool) (shared.Connector, error) {
	conn, err := loadConnection(log, loader, connectionName, twelveFactorMode)
	if err != nil {
		return nil, err
	}
	db, err := rdbms.OpenDbConnection(log, conn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open connection %q", connectionName)
	}
	return db, nil
}

// ExportPipelineConfig marshals the pipeline config to the writer as YAML or
// JSON so a run can be exported and relaunched via the /launch endpoint.
func ExportPipelineConfig(log logger.Logger, p *config.PipelineConfig, f io.Writer, yamlOrJson string) error {
	var err error
	var data []byte
	switch yamlOrJson {
	case "yaml":
		data, err = yaml.Marshal(p)
	case "json":
		data, err = json.MarshalIndent(p, "", "  ")
	default:
		return fmt.Errorf("unsupported output format %q", yamlOrJson)
	}
	if err != nil {
		log.Panic("unable to marshal the pipeline config: ", err)
	}
	if _, err = f.Write(data); err != nil {
		log.Panic(err)
	}
	return nil
}

// resolveDb returns the caller-supplied connection, or opens the target
// connection named by the run config. The returned func closes whatever
// resolveDb opened and is safe to defer either way.
func resolveDb(cfg *IngestConfig) (shared.Connector, func(), error) {
	if cfg.Db != nil {
		return cfg.Db, func() {}, nil
	}
	db, err := openWarehouseConnection(cfg.Log, cfg.Connections, cfg.Pipeline.TargetConnection, cfg.TwelveFactorMode)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

// stageTables resolves the warehouse object names used by one run.
func stageTables(p config.PipelineConfig) (stage rdbms.SchemaTable, dim rdbms.SchemaTable, fact rdbms.SchemaTable) {
	stage = rdbms.NewSchemaTable(p.Schema, p.SalesStageTable)
	dim = rdbms.NewSchemaTable(p.Schema, p.MerchantsTable)
	fact = rdbms.NewSchemaTable(p.Schema, p.SalesFactTable)
	return
}

// dimensionAttributeCols are the merchant columns copied onto fact rows.
func dimensionAttributeCols() []string {
	return []string{
		sales.FieldMerchantName,
		sales.FieldMerchantCategory,
		sales.FieldMerchantCountry,
	}
}
