package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Rohesen/walmart-ingest/actions"
	"github.com/Rohesen/walmart-ingest/config"
	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of twelveFactorMode is set such that other init() functions that configure
// Cobra can do the job of processing all environment variables that would contain equivalent of the CLI flag
// structures used by the actions.
func init() {
	setupTwelveFactorMode()
}

// setupTwelveFactorMode will enable or disable 12 factor mode based on environment variable.
func setupTwelveFactorMode() {
	mode := os.Getenv(envVarTwelveFactorMode)
	if mode != "" { // if variable for 12factor mode is set and we should read env vars to determine actions...
		twelveFactorMode = true
		if strings.ToLower(mode) == "lambda" {
			lambdaMode = true
		}
	} else { // else 12factor mode should be off...
		twelveFactorMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
	}
}

const (
	envVarTwelveFactorMode = c.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarCommand          = c.EnvVarPrefix + "_" + "COMMAND"
	envVarLogLevel         = c.EnvVarPrefix + "_" + "LOG_LEVEL"
)

var (
	twelveFactorMode bool // true if os env var envVarTwelveFactorMode is set
	lambdaMode       bool // true if envVarTwelveFactorMode holds "lambda"
	// connectionsFile is the store of named warehouse connections, unused in
	// twelveFactorMode where DSNs come from the environment.
	connectionsFile = config.NewConnectionsFile()
)

// twelveFactorActions maps the value of envVarCommand onto the same runner
// funcs the Cobra commands use. Their flag variables are populated from the
// environment by addFlag during init.
var twelveFactorActions = map[string]func() error{
	"run":       runIngest,
	"create":    runCreateTables,
	"reconcile": runReconcile,
	"validate":  runValidate,
}

func getConnectionLoader() actions.ConnectionLoader {
	return connectionsFile
}

func getConnectionGetterSetter() actions.ConnectionGetterSetter {
	if twelveFactorMode {
		fmt.Printf("Error: connections cannot be configured when %v is set (supply them using %v instead)\n",
			envVarTwelveFactorMode,
			helper.GetDsnEnvVarName("<target-connection-name>"))
		os.Exit(1)
	}
	return connectionsFile
}

func execute12FactorMode(acts map[string]func() error) error {
	logLevel := helper.ReadValueFromEnvWithDefault(envVarLogLevel, "warn")
	log := logger.NewLogger("walmart-ingest", logLevel, stackDumpOnPanic)
	log.Info("Walmart Ingest is running in 12 Factor mode...")
	command := os.Getenv(envVarCommand)
	a, ok := acts[command]
	if !ok {
		err := fmt.Errorf("invalid command %q found in environment variable %v", command, envVarCommand)
		log.Error(err.Error())
		return err
	}
	if err := a(); err != nil {
		log.Error("Error: ", err)
		return err
	}
	return nil
}
