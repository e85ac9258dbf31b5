package hub

import (
	"time"

	"github.com/zulandar/agenthud/internal/models"
)

// Recorder observes hub mutations, typically to mirror them into the
// journal. Calls happen on the event loop and must not block.
type Recorder interface {
	AgentConnected(a models.Agent)
	AgentUpdated(a models.Agent)
	AgentDisconnected(a models.Agent, at time.Time)
	AgentMessage(agentID, kind string, payload []byte, at time.Time)
	RequestSubmitted(r models.HumanInputRequest)
	RequestResolved(r models.HumanInputRequest, additionalContext string)
	ContentAppended(item models.ContentItem)
}

// Notifier is told about every newly pending request. Calls happen on the
// event loop and must not block.
type Notifier interface {
	RequestPending(r models.HumanInputRequest)
}

type nopRecorder struct{}

func (nopRecorder) AgentConnected(models.Agent)                      {}
func (nopRecorder) AgentUpdated(models.Agent)                        {}
func (nopRecorder) AgentDisconnected(models.Agent, time.Time)        {}
func (nopRecorder) AgentMessage(string, string, []byte, time.Time)   {}
func (nopRecorder) RequestSubmitted(models.HumanInputRequest)        {}
func (nopRecorder) RequestResolved(models.HumanInputRequest, string) {}
func (nopRecorder) ContentAppended(models.ContentItem)               {}

type nopNotifier struct{}

func (nopNotifier) RequestPending(models.HumanInputRequest) {}
