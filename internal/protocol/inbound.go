package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/agenthud/internal/models"
)

// Inbound is one decoded message sent to the hub. The concrete type is one
// of the variants below.
type Inbound interface {
	Kind() string
}

// RegisterObserver classifies the sending connection as an observer.
type RegisterObserver struct{}

// RegisterAgent classifies the sending connection as an agent.
type RegisterAgent struct {
	Name     string
	Metadata map[string]any
}

// SubmitRequest asks the human a question. ClientRef is the sender's own
// correlation id, echoed back with the response; the hub assigns the real id.
type SubmitRequest struct {
	ClientRef      string
	RequestType    models.RequestType
	Message        string
	Priority       models.Priority
	Options        []string
	Context        json.RawMessage
	TimeoutSeconds int
}

// ResolveRequest is an observer's answer to a pending request.
type ResolveRequest struct {
	RequestID         string
	Response          string
	AdditionalContext string
}

// AgentPatch is a partial agent update. Nil fields are left untouched;
// metadata keys are merged.
type AgentPatch struct {
	Name     *string        `json:"name,omitempty"`
	Status   *string        `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpdateAgent patches the sending agent's record.
type UpdateAgent struct {
	Patch AgentPatch
}

// AgentActivity is a free-form activity message (log line, notification,
// progress) from an agent.
type AgentActivity struct {
	ID       string
	Activity string
	Payload  json.RawMessage
}

// EmitContent carries a content item. EventType is the envelope type it
// arrived under and is reused when the item is broadcast.
type EmitContent struct {
	EventType string
	Item      models.ContentItem
}

// ClearRequests empties the request ledger.
type ClearRequests struct{}

func (RegisterObserver) Kind() string { return TypeRegisterObserver }
func (RegisterAgent) Kind() string    { return TypeRegisterAgent }
func (SubmitRequest) Kind() string    { return TypeHumanInputRequest }
func (ResolveRequest) Kind() string   { return TypeHumanInputResponse }
func (UpdateAgent) Kind() string      { return TypeAgentUpdate }
func (AgentActivity) Kind() string    { return TypeAgentMessage }
func (e EmitContent) Kind() string    { return e.EventType }
func (ClearRequests) Kind() string    { return TypeClearRequests }

// wireEnvelope accepts both the nested {type, data} form and the flat form
// older SDKs send, where fields sit next to "type".
type wireEnvelope struct {
	Type              string          `json:"type"`
	Data              json.RawMessage `json:"data"`
	ID                string          `json:"id"`
	RequestID         string          `json:"requestId"`
	Response          *string         `json:"response"`
	AdditionalContext json.RawMessage `json:"additionalContext"`
	Name              string          `json:"name"`
	Metadata          map[string]any  `json:"metadata"`
	Payload           json.RawMessage `json:"payload"`
	requestFields
}

type requestFields struct {
	RequestType string          `json:"request_type"`
	InputType   string          `json:"inputType"`
	Message     string          `json:"message"`
	Priority    string          `json:"priority"`
	Options     []string        `json:"options"`
	Context     json.RawMessage `json:"context"`
	Timeout     int             `json:"timeout"`
}

type contentFields struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Content     string          `json:"content"`
	Language    string          `json:"language"`
	Caption     string          `json:"caption"`
	Description string          `json:"description"`
	Title       string          `json:"title"`
	AgentID     string          `json:"agent_id"`
	AgentName   string          `json:"agent_name"`
	Timestamp   string          `json:"timestamp"`
	Metadata    json.RawMessage `json:"metadata"`
}

// Decode parses a raw inbound frame into its variant. Errors wrap
// ErrMalformed or ErrUnknownType.
func Decode(raw []byte) (Inbound, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case TypeRegisterObserver:
		return RegisterObserver{}, nil
	case TypeRegisterAgent:
		return decodeRegisterAgent(env)
	case TypeHumanInputRequest:
		return decodeSubmitRequest(env)
	case TypeHumanInputResponse:
		return decodeResolveRequest(env)
	case TypeAgentUpdate:
		return decodeUpdateAgent(env)
	case TypeAgentMessage:
		return decodeActivity(env), nil
	case TypeContentEmission, TypeMarkdownContent, TypeCodeContent, TypeImageContent:
		return decodeContent(env)
	case TypeClearRequests:
		return ClearRequests{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func hasData(d json.RawMessage) bool {
	d = bytes.TrimSpace(d)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

func decodeRegisterAgent(env wireEnvelope) (Inbound, error) {
	msg := RegisterAgent{Name: env.Name, Metadata: env.Metadata}
	if hasData(env.Data) {
		var data struct {
			Name     string         `json:"name"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: register-agent data: %v", ErrMalformed, err)
		}
		if data.Name != "" {
			msg.Name = data.Name
		}
		if data.Metadata != nil {
			msg.Metadata = data.Metadata
		}
	}
	if strings.TrimSpace(msg.Name) == "" {
		msg.Name = "Unknown Agent"
	}
	return msg, nil
}

func decodeSubmitRequest(env wireEnvelope) (Inbound, error) {
	f := env.requestFields
	if hasData(env.Data) {
		if err := json.Unmarshal(env.Data, &f); err != nil {
			return nil, fmt.Errorf("%w: human-input-request data: %v", ErrMalformed, err)
		}
	}
	label := f.RequestType
	if label == "" {
		label = f.InputType
	}
	msg := SubmitRequest{
		ClientRef:      env.RequestID,
		RequestType:    models.ParseRequestType(label),
		Message:        f.Message,
		Priority:       models.ParsePriority(f.Priority),
		Options:        f.Options,
		Context:        f.Context,
		TimeoutSeconds: f.Timeout,
	}
	if msg.Options == nil {
		msg.Options = []string{}
	}
	if !hasData(msg.Context) {
		msg.Context = nil
	}
	return msg, nil
}

func decodeResolveRequest(env wireEnvelope) (Inbound, error) {
	msg := ResolveRequest{RequestID: env.RequestID, AdditionalContext: stringOrRaw(env.AdditionalContext)}
	if env.Response != nil {
		msg.Response = *env.Response
	}
	if hasData(env.Data) {
		var data struct {
			RequestID         string          `json:"requestId"`
			Response          *string         `json:"response"`
			AdditionalContext json.RawMessage `json:"additionalContext"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: human-input-response data: %v", ErrMalformed, err)
		}
		if data.RequestID != "" {
			msg.RequestID = data.RequestID
		}
		if data.Response != nil {
			msg.Response = *data.Response
		}
		if ac := stringOrRaw(data.AdditionalContext); ac != "" {
			msg.AdditionalContext = ac
		}
	}
	if msg.RequestID == "" {
		return nil, fmt.Errorf("%w: human-input-response without requestId", ErrMalformed)
	}
	return msg, nil
}

func decodeUpdateAgent(env wireEnvelope) (Inbound, error) {
	var patch AgentPatch
	if hasData(env.Data) {
		if err := json.Unmarshal(env.Data, &patch); err != nil {
			return nil, fmt.Errorf("%w: agent-update data: %v", ErrMalformed, err)
		}
	}
	return UpdateAgent{Patch: patch}, nil
}

func decodeActivity(env wireEnvelope) Inbound {
	payload := env.Payload
	if !hasData(payload) {
		payload = env.Data
	}
	var kind struct {
		Type string `json:"type"`
	}
	if hasData(payload) {
		_ = json.Unmarshal(payload, &kind)
	}
	return AgentActivity{ID: env.ID, Activity: kind.Type, Payload: payload}
}

func decodeContent(env wireEnvelope) (Inbound, error) {
	if !hasData(env.Data) {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformed, env.Type)
	}
	var f contentFields
	if err := json.Unmarshal(env.Data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Type, err)
	}

	var typ models.ContentType
	switch env.Type {
	case TypeMarkdownContent:
		typ = models.ContentMarkdown
	case TypeCodeContent:
		typ = models.ContentCode
	case TypeImageContent:
		typ = models.ContentImage
	default:
		typ = models.ParseContentType(f.Type)
		if typ == models.ContentOther {
			return nil, fmt.Errorf("%w: content-emission with type %q", ErrMalformed, f.Type)
		}
	}

	item := models.ContentItem{
		ID:          f.ID,
		Type:        typ,
		Content:     f.Content,
		Language:    f.Language,
		Caption:     f.Caption,
		Description: f.Description,
		Title:       f.Title,
		AgentID:     f.AgentID,
		AgentName:   f.AgentName,
		Timestamp:   ParseTimestamp(f.Timestamp),
	}
	if hasData(f.Metadata) {
		item.Metadata = f.Metadata
	}
	return EmitContent{EventType: env.Type, Item: item}, nil
}

// timestampLayouts covers RFC 3339 and the zone-less ISO form some SDKs emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses s leniently. It returns the zero time when s is
// empty or unrecognized.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// stringOrRaw returns a JSON string's value, or the raw JSON text for any
// other non-null value.
func stringOrRaw(raw json.RawMessage) string {
	if !hasData(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
