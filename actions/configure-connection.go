package actions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/pkg/errors"
)

type ConnectionConfig struct {
	ConfigFile  ConnectionGetterSetter
	LogicalName string
	Type        string
	ConnDetails ConnectionValidator
	Force       bool
}

// supportedConnectionTypes are the DSN schemes the warehouse layer can open.
var supportedConnectionTypes = map[string]struct{}{
	constants.ConnectionTypeSnowflake: {},
}

func RunConnectionAdd(cfg *ConnectionConfig) error {
	// Setup the basics ready to be persisted below.
	connection := shared.ConnectionDetails{
		LogicalName: cfg.LogicalName,
		Type:        cfg.Type,
		Data:        make(map[string]string),
	}
	if err := helper.ValidateStructIsPopulated(connection); err != nil { // if the basics were not supplied...
		return err
	}
	// Validate connection name.
	if strings.Index(cfg.LogicalName, ".") > 0 {
		return fmt.Errorf("connection name cannot contain period characters '.' as they're used to split object names e.g. <schema>.<table>")
	}
	// Validate the DSN.
	var err error
	if err = cfg.ConnDetails.Parse(); err != nil {
		return errors.Wrap(err, "unable to create connection")
	}
	connection.Type, err = cfg.ConnDetails.GetScheme()
	if err != nil {
		return err
	}
	if _, ok := supportedConnectionTypes[connection.Type]; !ok { // if the DSN scheme is not loadable...
		return fmt.Errorf("%v is an unsupported connection type, please use one of these: %v", connection.Type, getSupportedConnectionTypes())
	}
	cfg.ConnDetails.GetMap(connection.Data)
	// Check for an existing saved connection. A missing file or key is fine
	// since Set creates both below.
	tmpConn := &shared.ConnectionDetails{}
	err = cfg.ConfigFile.Get(cfg.LogicalName, tmpConn)
	if err != nil { // if there is an error finding the connection...
		fnf := config.FileNotFoundError{}
		knf := config.KeyNotFoundError{}
		if !errors.As(err, &fnf) && !errors.As(err, &knf) { // if the error is real...
			return err
		}
	} else if tmpConn.LogicalName != "" && !cfg.Force { // else if the connection exists, but we are not allowed to overwrite it...
		return fmt.Errorf("connection exists, use force to update the connection or remove it first")
	}
	// Set config (creates the file if missing).
	err = cfg.ConfigFile.Set(cfg.LogicalName, &connection)
	if err != nil {
		return fmt.Errorf("error writing connections config file after adding: %v", err)
	}
	fmt.Printf("Connection %q added\n", cfg.LogicalName)
	return nil
}

func RunConnectionRemove(cfg *ConnectionConfig) error {
	if cfg.LogicalName == "" {
		return errors.New("missing connection name")
	}
	err := cfg.ConfigFile.Delete(cfg.LogicalName)
	if err != nil {
		return fmt.Errorf("unable to delete connection %q from config: %v", cfg.LogicalName, err)
	}
	fmt.Printf("Connection %q removed\n", cfg.LogicalName)
	return nil
}

// RunConnectionList prints the logical name and redacted details of each
// saved connection.
func RunConnectionList(cfg *ConnectionConfig) error {
	keys, err := cfg.ConfigFile.GetAllKeys()
	if err != nil {
		fnf := config.FileNotFoundError{}
		if errors.As(err, &fnf) { // if there is no connections file yet...
			return nil
		}
		return err
	}
	sort.Strings(keys)
	for _, k := range keys {
		conn := &shared.ConnectionDetails{}
		if err := cfg.ConfigFile.Get(k, conn); err != nil {
			return fmt.Errorf("unable to read connection %q: %v", k, err)
		}
		fmt.Printf("%v:\n%v\n", k, conn)
	}
	return nil
}

func getSupportedConnectionTypes() string {
	types := make([]string, 0, len(supportedConnectionTypes))
	for k := range supportedConnectionTypes {
		types = append(types, k)
	}
	return strings.Join(types, ", ")
}
