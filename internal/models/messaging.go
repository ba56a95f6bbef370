package models

import "time"

// Message channels
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// Enrollment status
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentCancelled = "cancelled"
)

// Scheduled message / log status
const (
	MessagePending = "pending"
	MessageSent    = "sent"
	MessageFailed  = "failed"
	MessageSkipped = "skipped"
)

// Enrollment is a participant enrolled in a drip campaign
type Enrollment struct {
	Id            string    `db:"id" json:"id"`
	ParticipantId string    `db:"participant_id" json:"participant_id"`
	CampaignKey   string    `db:"campaign_key" json:"campaign_key"`
	Status        string    `db:"status" json:"status"`
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduledMessage is one campaign step waiting for its send time
type ScheduledMessage struct {
	Id              string     `db:"id" json:"id"`
	EnrollmentId    string     `db:"enrollment_id" json:"enrollment_id"`
	ParticipantId   string     `db:"participant_id" json:"participant_id"`
	CampaignKey     string     `db:"campaign_key" json:"campaign_key"`
	Step            int        `db:"step" json:"step"`
	Channel         string     `db:"channel" json:"channel"`
	Subject         string     `db:"subject" json:"subject,omitempty"`
	Template        string     `db:"template" json:"template"`
	ScheduledSendAt time.Time  `db:"scheduled_send_at" json:"scheduled_send_at"`
	Status          string     `db:"status" json:"status"`
	SentAt          *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	Attempts        int        `db:"attempts" json:"attempts"`
	LastError       string     `db:"last_error" json:"last_error,omitempty"`
}

// MessageLog is the audit row for an outbound message attempt
type MessageLog struct {
	Id                 string    `db:"id" json:"id"`
	ScheduledMessageId string    `db:"scheduled_message_id" json:"scheduled_message_id,omitempty"`
	ParticipantId      string    `db:"participant_id" json:"participant_id,omitempty"`
	Channel            string    `db:"channel" json:"channel"`
	Recipient          string    `db:"recipient" json:"recipient"`
	Body               string    `db:"body" json:"body"`
	ProviderId         string    `db:"provider_id" json:"provider_id,omitempty"`
	Status             string    `db:"status" json:"status"`
	Error              string    `db:"error" json:"error,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
