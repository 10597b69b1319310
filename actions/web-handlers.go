package actions

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/pipeline"
	"github.com/gorilla/mux"
	"golang.org/x/net/context"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunList struct {
	Status  WebServerResponse `json:"status"`
	RunList []RunListItem     `json:"runs"`
}

type RunListItem struct {
	RunId     string          `json:"runId"`
	RunStatus pipeline.Status `json:"runStatus"`
}

type ResponseRunStatus struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunInfo pipeline.RunInfo  `json:"runInfo"`
}

type ResponseRunStop struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunId   string            `json:"runId"`
}

type ResponseLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunId   string            `json:"runId"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chanStop <- "stop"
		log.Info("Stop signal sent")
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerPipelineLaunch starts an ingestion run from the config supplied
// as the request body JSON.
func GetHandlerPipelineLaunch(log logger.Logger, runs *pipeline.SafeMapRunInfo, locks *pipeline.RunLock, web *WebServerConfig) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		// Ingest the run config from the request body JSON.
		b, _ := ioutil.ReadAll(r.Body)
		p := config.PipelineConfig{}
		err := json.Unmarshal(b, &p)
		if err != nil {
			logAndRespond(log, err, w,
				ResponseLaunch{Status: Error, Message: fmt.Sprintf("error unmarshalling JSON: %v", err)})
			return
		}
		// Launch.
		runner, err := LaunchIngest(context.Background(), &IngestConfig{
			Log:              log,
			Connections:      web.Connections,
			TwelveFactorMode: web.TwelveFactorMode,
			Pipeline:         p,
			Locks:            locks,
		}, runs)
		if err != nil {
			logAndRespond(log, err, w,
				ResponseLaunch{Status: Error, Message: fmt.Sprintf("invalid run config supplied: %v", err)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseLaunch{Status: Okay, Message: "pipeline launched", RunId: runner.Guid()})
	}
}

func GetHandlerRunStop(log logger.Logger, runs *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		runner, ok := runs.Load(id)
		if ok { // if the run exists...
			w.WriteHeader(http.StatusOK)
			if runner.IsFinished() { // if the run has already finished...
				log.Info("HTTP request to stop run ", id, " that has already finished.")
				respond(log, w, ResponseRunStop{Status: Error, Message: "run already ended", RunId: id})
			} else { // else the run is still going...
				log.Info("Stopping run ", id)
				runner.Stop()
				respond(log, w, ResponseRunStop{Status: Okay, Message: "shutting down", RunId: id})
			}
		} else { // else the run doesn't exist...
			w.WriteHeader(http.StatusBadRequest)
			log.Info("HTTP request to stop run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStop{Status: Error, Message: "run does not exist", RunId: id})
		}
	}
}

func GetHandlerRunList(log logger.Logger, runs *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := runs.GetAll()
		list := make([]RunListItem, 0, len(infos))
		for _, info := range infos {
			list = append(list, RunListItem{RunId: info.Guid, RunStatus: info.Status})
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunList{Status: Okay, RunList: list})
	}
}

func GetHandlerRunStatus(log logger.Logger, runs *pipeline.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		id := vars["runId"]
		runner, ok := runs.Load(id)
		if ok { // if the run exists...
			w.WriteHeader(http.StatusOK)
			respond(log, w, ResponseRunStatus{Status: Okay, RunInfo: runner.Info()})
		} else {
			w.WriteHeader(http.StatusBadRequest)
			respond(log, w, ResponseRunStatus{Status: Error, Message: "run does not exist"})
		}
	}
}

func logAndRespond(log logger.Logger, err error, w http.ResponseWriter, r interface{}) {
	log.Error(err)
	w.WriteHeader(http.StatusBadRequest)
	respond(log, w, r)
}

func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(i); err != nil {
		log.Error("unable to encode HTTP response: ", err)
	}
}
