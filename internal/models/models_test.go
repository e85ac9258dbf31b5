package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestAgentRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(AgentRecord{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:64")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "LastActivity", "index")
	assertFieldType(t, typ, "DisconnectedAt", "*time.Time")
}

func TestRequestRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(RequestRecord{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "AgentID", "index")
	assertGormTag(t, typ, "Message", "type:text")
	assertGormTag(t, typ, "Status", "default:Pending")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "CreatedAt", "index")
	assertFieldType(t, typ, "CompletedAt", "*time.Time")
}

func TestResponseRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(ResponseRecord{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "RequestID", "not null")
	assertGormTag(t, typ, "RequestID", "index")
	assertGormTag(t, typ, "RespondedBy", "default:human")
}

func TestContentRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(ContentRecord{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Type", "size:16")
	assertGormTag(t, typ, "Content", "type:text")
	assertGormTag(t, typ, "AgentID", "index")
}

func TestTableNames(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{AgentRecord{}.TableName(), "agents"},
		{MessageRecord{}.TableName(), "agent_messages"},
		{RequestRecord{}.TableName(), "human_requests"},
		{ResponseRecord{}.TableName(), "human_responses"},
		{ContentRecord{}.TableName(), "content_items"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("TableName() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseAgentStatus(t *testing.T) {
	tests := []struct {
		in   string
		want AgentStatus
	}{
		{"Connected", AgentConnected},
		{"active", AgentActive},
		{" DISCONNECTED ", AgentDisconnected},
		{"Crunching numbers", AgentStatusOther},
		{"", AgentStatusOther},
	}
	for _, tt := range tests {
		if got := ParseAgentStatus(tt.in); got != tt.want {
			t.Errorf("ParseAgentStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAgent_SetStatusKeepsRawText(t *testing.T) {
	var a Agent
	a.SetStatus("Crunching numbers")
	if a.Status != AgentStatusOther {
		t.Errorf("Status = %q, want Other", a.Status)
	}
	if a.StatusText != "Crunching numbers" {
		t.Errorf("StatusText = %q", a.StatusText)
	}

	a.SetStatus("active")
	if a.Status != AgentActive || a.StatusText != "" {
		t.Errorf("after known status: Status=%q StatusText=%q", a.Status, a.StatusText)
	}
}

func TestAgent_CloneDoesNotShareMetadata(t *testing.T) {
	a := Agent{ID: "a1", Metadata: map[string]any{"k": "v"}}
	b := a.Clone()
	b.Metadata["k"] = "changed"
	if a.Metadata["k"] != "v" {
		t.Errorf("original metadata mutated: %v", a.Metadata)
	}
}

func TestParseRequestType(t *testing.T) {
	tests := []struct {
		in   string
		want RequestType
	}{
		{"", RequestInput},
		{"approval", RequestApproval},
		{"Choice", RequestChoice},
		{"confirmation", RequestConfirmation},
		{"text", RequestText},
		{"aproval", RequestTypeOther},
	}
	for _, tt := range tests {
		if got := ParseRequestType(tt.in); got != tt.want {
			t.Errorf("ParseRequestType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"", ""},
		{"High", PriorityHigh},
		{"low", PriorityLow},
		{"normal", PriorityMedium},
		{"urgent", PriorityCritical},
		{"hihg", PriorityOther},
	}
	for _, tt := range tests {
		if got := ParsePriority(tt.in); got != tt.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPriority_Rank(t *testing.T) {
	if !(PriorityLow.Rank() < PriorityMedium.Rank() &&
		PriorityMedium.Rank() < PriorityHigh.Rank() &&
		PriorityHigh.Rank() < PriorityCritical.Rank()) {
		t.Error("priority ranks are not ordered low < medium < high < critical")
	}
	if PriorityOther.Rank() != PriorityMedium.Rank() {
		t.Errorf("Other rank = %d, want medium rank", PriorityOther.Rank())
	}
}

func TestDerivePriority(t *testing.T) {
	tests := []struct {
		name    string
		typ     RequestType
		message string
		want    Priority
	}{
		{"approval is high", RequestApproval, "optional thing", PriorityHigh},
		{"confirmation is high", RequestConfirmation, "", PriorityHigh},
		{"urgent text", RequestText, "This is URGENT", PriorityCritical},
		{"critical input", RequestInput, "critical failure", PriorityCritical},
		{"suggestion", RequestChoice, "just a suggestion", PriorityLow},
		{"plain", RequestInput, "what next?", PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePriority(tt.typ, tt.message); got != tt.want {
				t.Errorf("DerivePriority() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHumanInputRequest_Complete(t *testing.T) {
	r := HumanInputRequest{ID: "r1", Status: RequestPending}
	if !r.Pending() {
		t.Fatal("new request should be pending")
	}
	if r.Response != nil {
		t.Fatal("pending request must not carry a response")
	}
	now := time.Now()
	r.Complete("Yes", now)
	if r.Pending() || r.Status != RequestCompleted {
		t.Errorf("Status = %q, want Completed", r.Status)
	}
	if r.Response == nil || *r.Response != "Yes" {
		t.Errorf("Response = %v, want Yes", r.Response)
	}
	if r.CompletedAt == nil || !r.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v", r.CompletedAt)
	}
}

func TestHumanInputRequest_CloneIsDeep(t *testing.T) {
	r := HumanInputRequest{Options: []string{"Yes", "No"}}
	r.Complete("Yes", time.Now())
	c := r.Clone()
	c.Options[0] = "Maybe"
	*c.Response = "No"
	if r.Options[0] != "Yes" || *r.Response != "Yes" {
		t.Errorf("clone shares state: options=%v response=%q", r.Options, *r.Response)
	}
}

func TestHumanInputRequest_CloneKeepsEmptyOptions(t *testing.T) {
	c := HumanInputRequest{ID: "r1", Options: []string{}}.Clone()
	if c.Options == nil {
		t.Fatal("Clone turned empty options into nil")
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"options":[]`) {
		t.Errorf("encoded %s, want \"options\":[]", data)
	}
}

func TestHumanInputRequest_JSONRoundTripNormalizesEnums(t *testing.T) {
	raw := `{"id":"r1","request_type":"Approval","priority":"high","status":"Pending","options":["Yes","No"]}`
	var r HumanInputRequest
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.RequestType != RequestApproval {
		t.Errorf("RequestType = %q", r.RequestType)
	}
	if r.Priority != PriorityHigh {
		t.Errorf("Priority = %q", r.Priority)
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"priority":"High"`) {
		t.Errorf("marshalled priority not canonical: %s", out)
	}
	if strings.Contains(string(out), `"response"`) {
		t.Errorf("pending request serialized a response: %s", out)
	}
}

func TestContentType_DefaultTitle(t *testing.T) {
	tests := []struct {
		typ      ContentType
		language string
		want     string
	}{
		{ContentMarkdown, "", "Markdown Content"},
		{ContentCode, "python", "Python Code"},
		{ContentCode, "", "Code"},
		{ContentImage, "", "Image"},
	}
	for _, tt := range tests {
		if got := tt.typ.DefaultTitle(tt.language); got != tt.want {
			t.Errorf("%s.DefaultTitle(%q) = %q, want %q", tt.typ, tt.language, got, tt.want)
		}
	}
}

func TestParseContentType(t *testing.T) {
	if ParseContentType("Markdown") != ContentMarkdown {
		t.Error("Markdown not recognized")
	}
	if ParseContentType("video") != ContentOther {
		t.Error("video should be Other")
	}
}
