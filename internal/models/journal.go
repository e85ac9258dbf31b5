package models

import "time"

// AgentRecord mirrors an agent registration in the journal.
type AgentRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:128;not null"`
	Status         string `gorm:"size:16;index"`
	StatusText     string `gorm:"size:256"`
	Metadata       string `gorm:"type:text"`
	ConnectedAt    time.Time
	LastActivity   time.Time `gorm:"index"`
	DisconnectedAt *time.Time
}

func (AgentRecord) TableName() string { return "agents" }

// MessageRecord captures agent activity messages (logs, notifications, progress).
type MessageRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	AgentID   string    `gorm:"size:64;index"`
	Kind      string    `gorm:"size:32"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (MessageRecord) TableName() string { return "agent_messages" }

// RequestRecord mirrors a human input request.
type RequestRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	AgentID        string `gorm:"size:64;index"`
	AgentName      string `gorm:"size:128"`
	RequestType    string `gorm:"size:16"`
	Message        string `gorm:"type:text"`
	Options        string `gorm:"type:text"`
	Context        string `gorm:"type:text"`
	TimeoutSeconds int
	Priority       string    `gorm:"size:16"`
	Status         string    `gorm:"size:16;default:Pending;index"`
	CreatedAt      time.Time `gorm:"index"`
	CompletedAt    *time.Time
}

func (RequestRecord) TableName() string { return "human_requests" }

// ResponseRecord is one human answer. A request resolved twice has two rows.
type ResponseRecord struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	RequestID         string `gorm:"size:64;not null;index"`
	Response          string `gorm:"type:text"`
	AdditionalContext string `gorm:"type:text"`
	RespondedBy       string `gorm:"size:64;default:human"`
	CreatedAt         time.Time
}

func (ResponseRecord) TableName() string { return "human_responses" }

// ContentRecord mirrors a content emission. The payload is stored as-is.
type ContentRecord struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Type      string    `gorm:"size:16;index"`
	Title     string    `gorm:"size:256"`
	Language  string    `gorm:"size:32"`
	Caption   string    `gorm:"size:512"`
	AgentID   string    `gorm:"size:64;index"`
	AgentName string    `gorm:"size:128"`
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index"`
}

func (ContentRecord) TableName() string { return "content_items" }
