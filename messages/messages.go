// Package messages defines the wire types exchanged between the
// conductor, orchestrator, and workers. Every message is a plain
// struct; dispatch is a type switch in each receiver's handler (for
// example Conductor.handle in the orchestrator package), not a
// string-keyed handler table, following
// the tagged-union guidance this system was designed around.
package messages

// AgentType is a closed enum of worker roles. It determines model
// configuration and registry routing.
type AgentType string

const (
	AgentPlanner    AgentType = "PLANNER"
	AgentRetrieve   AgentType = "RETRIEVE"
	AgentScout      AgentType = "SCOUT"
	AgentSemantics  AgentType = "SEMANTICS"
	AgentCoder      AgentType = "CODER"
	AgentCompute    AgentType = "COMPUTE"
	AgentReason     AgentType = "REASON"
	AgentSynthesize AgentType = "SYNTHESIZE"
	AgentValidate   AgentType = "VALIDATE"
	AgentSpeaker    AgentType = "SPEAKER"
	AgentConductor  AgentType = "CONDUCTOR"
	// AgentStrategist is a supplemented role (see original_source's
	// strategist agent): an optional pre-planning critique step.
	AgentStrategist AgentType = "STRATEGIST"
)

// Valid reports whether t is one of the closed set of agent types.
func (t AgentType) Valid() bool {
	switch t {
	case AgentPlanner, AgentRetrieve, AgentScout, AgentSemantics, AgentCoder,
		AgentCompute, AgentReason, AgentSynthesize, AgentValidate, AgentSpeaker,
		AgentConductor, AgentStrategist:
		return true
	}
	return false
}

// AgentGoalType indicates the direction of flow from orchestrator to worker.
type AgentGoalType string

const (
	GoalPlan      AgentGoalType = "PLAN"
	GoalTask      AgentGoalType = "TASK"
	GoalSynthesis AgentGoalType = "SYNTHESIS"
	GoalUnknown   AgentGoalType = "UNKNOWN"
)

// ThoughtType is the worker-to-orchestrator reply status.
type ThoughtType string

const (
	ThoughtSubGoal  ThoughtType = "SUB_GOAL"
	ThoughtUserQ    ThoughtType = "USER_QUERY"
	ThoughtResolved ThoughtType = "RESOLVED"
	ThoughtFailed   ThoughtType = "FAILED"
	ThoughtAnswer   ThoughtType = "ANSWER"
)

// UserQuery flows from the gateway into the conductor when a new
// request is submitted: the raw query text paired with the request_id
// the gateway already minted.
type UserQuery struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// AgentGoal flows from the orchestrator (or conductor) to a worker.
type AgentGoal struct {
	RequestID string            `json:"request_id"`
	Type      AgentGoalType     `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
}

// Thought flows from a worker back to the orchestrator/conductor.
type Thought struct {
	RequestID   string            `json:"request_id"`
	Type        ThoughtType       `json:"type"`
	Content     string            `json:"content"`
	Impressions []string          `json:"impressions"`
	Metadata    map[string]string `json:"metadata"`
}

// Response flows from the orchestrator/gateway out to the chat server.
// Type -1 finalizes successfully, 0 is a heartbeat, >0 indicates more
// chunks follow. ResponseFailure is a gateway-local extension: the
// conductor uses it to tell the SPEAKER role a graph aborted, so the
// gateway narrates through the failure prompt instead of the success
// one, per §7's "gateway sends a failure prompt through the SPEAKER
// role" policy.
type Response struct {
	RequestID string `json:"request_id"`
	Content   string `json:"content"`
	Type      int    `json:"type"`
}

// ResponseFailure marks a Response as a graceful-failure notification
// rather than a synthesized answer.
const ResponseFailure = -2

// ReplanRequest is sent by the orchestrator to the conductor when a
// graph stalls.
type ReplanRequest struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
}

// AgentRegistration is sent by a worker on startup to register its
// type and address with the registry.
type AgentRegistration struct {
	AgentType AgentType `json:"agent_type"`
	Address   string    `json:"address"`
}

// NodeID/StepID metadata keys. The orchestrator sets both on every TASK
// goal; the conductor's PLAN goals carry none (planner) or only StepID
// (strategist). Workers echo them, with MetaGoalType, on Thought.Metadata.
const (
	MetaNodeID   = "node_id"
	MetaStepID   = "step_id"
	MetaGoalType = "goal_type"
)
