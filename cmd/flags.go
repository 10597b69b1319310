package cmd

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cliFlag struct {
	name      string // name of flag
	val       string // default value
	shortHand string // single character name for the flag
	desc      string // description of the flag; the long text
}

type cliFlags map[string]cliFlag

var switches = cliFlags{
	"s3-bucket": cliFlag{name: "s3-bucket", shortHand: "b",
		desc: "AWS S3 bucket name holding the JSON data files \n" +
			"(set AWS environment variables for access)"},
	"s3-region": cliFlag{name: "s3-region", shortHand: "R",
		desc: "AWS S3 bucket region"},
	"merchants-prefix": cliFlag{name: "merchants-prefix", shortHand: "M",
		desc: "AWS S3 object prefix under which the merchants JSON files live"},
	"sales-prefix": cliFlag{name: "sales-prefix", shortHand: "S",
		desc: "AWS S3 object prefix under which the sales JSON files live"},
	"file-regexp": cliFlag{name: "file-regexp", shortHand: "X",
		desc: "The regular expression to filter data file names found in S3"},
	"stage": cliFlag{name: "stage", shortHand: "s",
		desc: "The external Snowflake stage name that can read the S3 bucket"},
	"target": cliFlag{name: "target", shortHand: "t",
		desc: "Target connection name holding the warehouse credentials \n" +
			"(see 'config connections add')"},
	"schema": cliFlag{name: "schema", shortHand: "m",
		desc: "Schema name for the warehouse objects (omit to use the connection default)"},
	"merchants-table": cliFlag{name: "merchants-table", shortHand: "D",
		desc: "Merchants dimension table name"},
	"stage-table": cliFlag{name: "stage-table", shortHand: "T",
		desc: "Sales staging table name, reloaded in full on each run"},
	"fact-table": cliFlag{name: "fact-table", shortHand: "F",
		desc: "Sales fact table name that staged batches are merged into"},
	"merge-key": cliFlag{name: "merge-key", shortHand: "k",
		desc: "The key column used to match staging rows against fact rows"},
	"push-down": cliFlag{name: "push-down", shortHand: "q",
		desc: "Reconcile warehouse-side with a single MERGE statement instead of \n" +
			"streaming both rowsets through this process"},
	"dangling-policy": cliFlag{name: "dangling-policy", shortHand: "g",
		desc: "What to do with staged sales whose merchant_id has no dimension row: \n" +
			"\"NullFill\" keeps them with null merchant attributes, \"ExcludeRow\" drops them"},
	"filter-rule": cliFlag{name: "filter-rule", shortHand: "j",
		desc: "Optional JSON Logic rule applied to staging records before the merge \n" +
			"(in-memory reconcile only)"},
	"abort-after": cliFlag{name: "abort-after", shortHand: "n",
		desc: "The number of staging records allowed through before aborting \n" +
			"(use 0 to process all records; in-memory reconcile only)"},
	"abort-on-bad-record": cliFlag{name: "abort-on-bad-record", shortHand: "a",
		desc: "Fail validation on the first malformed JSON line instead of skipping it"},
	"exec-batch-size": cliFlag{name: "exec-batch-size", shortHand: "E",
		desc: "The number of rows combined into one SQL MERGE statement by the \n" +
			"in-memory reconcile"},
	"stats": cliFlag{name: "stats", shortHand: "L",
		desc: "Number of seconds between dumping step statistics (use 0 to disable)"},
	"log-level": cliFlag{name: "log-level", shortHand: "l",
		desc: "Log level: \"error | warn | info | debug\""},
	"output": cliFlag{name: "output", shortHand: "o",
		desc: "Specify \"yaml\" or \"json\" to print the run config without executing it. \n" +
			"Redirect to a file and POST it to a 'serve' instance's /launch endpoint"},
	"connection-name": cliFlag{name: "connection-name", shortHand: "c",
		desc: "Connection name referred to by the target flag of ingestion runs"},
	"dsn": cliFlag{name: "dsn", shortHand: "d",
		desc: "Snowflake connect string to parse"},
	"force-connection": cliFlag{name: "force", shortHand: "f",
		desc: "Allow overwrite of existing connections"},
	"port": cliFlag{name: "port", shortHand: "p",
		desc: "Port to listen on"},
}

// addFlag adds a flag to cobra.Command c, based on the type of targetVar (which must be a pointer).
// The name of the flag is looked up in map, cliFlags.
// When running in twelveFactorMode, the targetVar is populated using the value of the equivalent
// environment variable for the supplied name, or if not set then the supplied default value is used.
// The flag is marked as required in Cobra based on the value of required.
func (f *cliFlags) addFlag(c *cobra.Command, targetVar interface{}, name string, defaultValue string, required bool) {
	v := reflect.ValueOf(targetVar)
	if v.Kind() != reflect.Ptr {
		fmt.Println("error adding flag: targetVar must be a pointer")
		os.Exit(1)
	}
	sw := f.getCliFlag(name, defaultValue)
	// Apply the flag.
	switch p := targetVar.(type) {
	case *string:
		if twelveFactorMode {
			*p = sw.val
		} else {
			c.Flags().StringVarP(p, sw.name, sw.shortHand, sw.val, sw.desc)
			if sw.val != "" { // if there is a default value...
				// Signal that the flag was set so defaults take effect.
				mustSetFlag(c.Flags(), sw.name, sw.val)
			}
		}
	case *bool:
		if twelveFactorMode {
			// Convert any string value into True.
			*p = sw.val != ""
		} else {
			defaultBool := strings.ToLower(sw.val) == "true"
			c.Flags().BoolVarP(p, sw.name, sw.shortHand, defaultBool, sw.desc)
		}
	case *int:
		defaultInt := 0
		if sw.val != "" {
			var err error
			defaultInt, err = strconv.Atoi(sw.val)
			if err != nil {
				fmt.Printf("the value for flag %q must be an integer: %v\n", sw.name, err)
				os.Exit(1)
			}
		}
		if twelveFactorMode {
			*p = defaultInt
		} else {
			c.Flags().IntVarP(p, sw.name, sw.shortHand, defaultInt, sw.desc)
			if sw.val != "" { // if there is a default value...
				mustSetFlag(c.Flags(), sw.name, sw.val)
			}
		}
	default:
		panic("Error: unhandled CLI flag target value type")
	}
	// Optionally mark the flag as mandatory.
	if required && !twelveFactorMode { // if the flag is required...
		_ = c.MarkFlagRequired(sw.name)
	}
}

// getCliFlag fetches the value of name from the environment when running in
// twelveFactorMode, else applies the supplied defaultValue.
func (f *cliFlags) getCliFlag(name string, defaultValue string) cliFlag {
	s, ok := switches[name]
	if !ok {
		panic(fmt.Sprintf("unregistered CLI flag, %q", name))
	}
	if twelveFactorMode { // if we should read env vars...
		if err := helper.ReadValueFromEnv(flagNameToEnvVar(name), &s.val); err != nil { // if there's no value for the env var read into the switch val...
			// Apply the default.
			s.val = defaultValue
		}
	} else {
		s.val = defaultValue
	}
	return s
}

// flagNameToEnvVar converts a registered flag name to the environment
// variable consulted in twelveFactorMode e.g. s3-bucket => WMI_S3_BUCKET.
func flagNameToEnvVar(flagName string) string {
	return helper.EnvVarName(flagName)
}

func mustSetFlag(f *pflag.FlagSet, name string, val string) {
	if err := f.Set(name, val); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// addPipelineFlags registers the run config flags shared by the pipeline
// commands. Object store flags are marked required only when the command
// loads from S3.
func addPipelineFlags(c *cobra.Command, p *config.PipelineConfig, requireBucket bool) {
	switches.addFlag(c, &p.BucketName, "s3-bucket", "", requireBucket)
	switches.addFlag(c, &p.BucketRegion, "s3-region", "", requireBucket)
	switches.addFlag(c, &p.MerchantsPrefix, "merchants-prefix", "", false)
	switches.addFlag(c, &p.SalesPrefix, "sales-prefix", "", false)
	switches.addFlag(c, &p.FileNameRegexp, "file-regexp", "", false)
	switches.addFlag(c, &p.TargetConnection, "target", "", true)
	switches.addFlag(c, &p.StageName, "stage", "", requireBucket)
	switches.addFlag(c, &p.Schema, "schema", "", false)
	switches.addFlag(c, &p.MerchantsTable, "merchants-table", "", false)
	switches.addFlag(c, &p.SalesStageTable, "stage-table", "", false)
	switches.addFlag(c, &p.SalesFactTable, "fact-table", "", false)
	switches.addFlag(c, &p.MergeKey, "merge-key", "", false)
	switches.addFlag(c, &p.PushDown, "push-down", "", false)
	switches.addFlag(c, &p.DanglingMerchantPolicy, "dangling-policy", "", false)
	switches.addFlag(c, &p.FilterRule, "filter-rule", "", false)
	switches.addFlag(c, &p.AbortAfterRows, "abort-after", "0", false)
	switches.addFlag(c, &p.AbortOnBadRecord, "abort-on-bad-record", "", false)
	switches.addFlag(c, &p.MergeBatchSize, "exec-batch-size", "", false)
	switches.addFlag(c, &p.StatsDumpFrequencySeconds, "stats", "5", false)
}
