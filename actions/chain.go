package actions

import (
	"fmt"
	"sync"
	"time"

	"github.com/Rohesen/walmart-ingest/components"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/stream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// chain tracks the components launched for one streaming step so the caller
// can wait for completion, surface the first component panic as an error and
// shut down whatever is still running.
// Components register their control channels via register() and the chain is
// passed as the WaitCounter and PanicHandlerFn of every component it owns.
type chain struct {
	log       logger.Logger
	chanError chan error
	once      sync.Once
	wg        sync.WaitGroup
	mu        sync.Mutex
	controls  map[string]chan components.ControlAction
}

func newChain(log logger.Logger) *chain {
	return &chain{
		log:       log,
		chanError: make(chan error, 1),
		controls:  make(map[string]chan components.ControlAction),
	}
}

// Add and Done implement components.ComponentWaiter.
func (c *chain) Add()  { c.wg.Add(1) }
func (c *chain) Done() { c.wg.Done() }

// register saves a component's control channel so shutdown can reach it.
func (c *chain) register(name string, control chan components.ControlAction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls[name] = control
}

// panicHandler returns a func to be deferred inside component goroutines.
// The first recovered panic is converted to an error on chanError. Components
// report fatal conditions with log.Panic, which surfaces here as a
// *logrus.Entry.
func (c *chain) panicHandler() components.PanicHandlerFunc {
	return func() {
		if r := recover(); r != nil { // if there was a panic...
			// Extract the message only.
			var msg string
			switch x := r.(type) {
			case *logrus.Entry:
				msg = x.Message
			case string:
				msg = x
			default:
				msg = fmt.Sprintf("%v", r)
			}
			c.once.Do(func() { c.chanError <- errors.New(msg) }) // report the first error only!
		}
	}
}

// shutdown asks every registered component to stop and waits briefly for each
// response. The control channels are buffered so components that have ended
// already won't block us for longer than the timeout.
func (c *chain) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, control := range c.controls {
		a := components.ControlAction{Action: components.Shutdown, ResponseChan: make(chan error, 1)}
		select {
		case control <- a: // send a shutdown action...
			select {
			case <-a.ResponseChan: // wait for a response (discard the error)...
			case <-time.After(time.Duration(3) * time.Second):
				c.log.Debug("component ", name, " abandoned after timeout waiting for shutdown response")
			}
		default: // the component stopped consuming its control channel already...
			c.log.Debug("shutdown skipped for component ", name)
		}
	}
}

// wait consumes the final output channel, calling onRecord (may be nil) per
// record, then blocks until every component is done, a component fails or ctx
// is cancelled. On failure or cancellation the remaining components are shut
// down before wait returns.
func (c *chain) wait(ctx context.Context, finalChan chan stream.Record, onRecord func(stream.Record)) error {
	quit := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		for {
			select {
			case rec, ok := <-finalChan:
				if !ok { // if the last component completed and closed its output...
					close(drained)
					return
				}
				if onRecord != nil {
					onRecord(rec)
				}
			case <-quit:
				return
			}
		}
	}()
	allDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(allDone)
	}()
	select {
	case err := <-c.chanError: // a component failed...
		c.shutdown()
		close(quit)
		<-allDone
		return err
	case <-ctx.Done(): // the run was cancelled...
		c.shutdown()
		close(quit)
		<-allDone
		return ctx.Err()
	case <-drained:
		<-allDone
		// A failure in the last component can close the output channel before
		// its error lands, so poll chanError once more.
		select {
		case err := <-c.chanError:
			return err
		default:
			return nil
		}
	}
}
