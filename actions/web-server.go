package actions

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/pipeline"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const (
	urlContext4Launch = "/launch"
)

type WebServerConfig struct {
	LogLevel                  string `errorTxt:"log level" mandatory:"yes"`
	Scheme                    string `errorTxt:"scheme" mandatory:"no"`
	Addr                      net.IP `errorTxt:"address" mandatory:"no"`
	Port                      int    `errorTxt:"port" mandatory:"no"`
	Connections               ConnectionLoader
	TwelveFactorMode          bool
	StatsDumpFrequencySeconds int
	StackDumpOnPanic          bool
}

// RunWebServer runs the microservice surface: pipelines are launched by
// POSTing a run config to /launch and tracked via /runs.
func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	log := logger.NewLogger("walmart-ingest", web.LogLevel, web.StackDumpOnPanic)
	// Check if we have valid input params.
	err := helper.ValidateStructIsPopulated(web)
	if err != nil {
		return err
	}
	// Start the web server.
	srv, chanStopServer, runs := runServer(log, web)
	// Block & wait for completion.
	return waitForServer(log, srv, chanStopServer, runs)
}

// runServer starts a web server and returns:
// 1) the server; and
// 2) a channel that can be used to stop the web server
// 3) the registry of launched pipeline runs
func runServer(log logger.Logger, web *WebServerConfig) (*http.Server, chan string, *pipeline.SafeMapRunInfo) {
	chanStopServer := make(chan string, 1)
	runs := pipeline.NewSafeMapRunInfo()
	locks := pipeline.NewRunLock()
	// Create routes.
	r := mux.NewRouter()
	r.HandleFunc("/stop", GetHandlerStopServer(log, chanStopServer))
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/runs").HandlerFunc(GetHandlerRunList(log, runs))
	r.Path("/runs/{runId}/status").HandlerFunc(GetHandlerRunStatus(log, runs))
	r.Path("/runs/{runId}/stop").HandlerFunc(GetHandlerRunStop(log, runs))
	r.Path(urlContext4Launch).Headers("Content-Type", "application/json").HandlerFunc(
		GetHandlerPipelineLaunch(log, runs, locks, web))
	// Configure HTTP server.
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r, // supply our instance of gorilla/mux.
	}
	// Run HTTP server non-blocking.
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on %v://%v:%v", strings.ToLower(web.Scheme), web.Addr, web.Port))
	return srv, chanStopServer, runs
}

func waitForServer(log logger.Logger, srv *http.Server, chanStopServer chan string, runs *pipeline.SafeMapRunInfo) error {
	// Block & wait for shutdown signals.
	// Accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+\) will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt) // request signals be sent to chanOS.
	select {
	case <-chanStopServer:
	case <-chanOS:
	}
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	// Ask running pipelines to stop first so their transactions roll back
	// before the process exits.
	for _, info := range runs.GetAll() {
		if r, ok := runs.Load(info.Guid); ok && !r.IsFinished() {
			log.Info("Stopping pipeline ", info.Guid)
			r.Stop()
		}
	}
	// Shutdown web server now.
	wait := time.Second * 15                                       // duration
	ctx, cancel := context.WithTimeout(context.Background(), wait) // create a timeout to wait for.
	defer cancel()                                                 // cancel the timeout.
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("Web server shutdown complete")
	return nil
}
