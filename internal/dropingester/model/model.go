package model

import (
	"strings"
	"time"

	"github.com/G-Research/dropingester/internal/common/ingesterrors"
)

// Variant says how the items of a drop file are to be interpreted
type Variant string

const (
	VariantBatch    Variant = "batch"
	VariantCampaign Variant = "campaign"
)

// ParseVariant parses a variant tag ignoring case and surrounding whitespace
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantBatch, VariantCampaign:
		return v, nil
	default:
		return "", &ingesterrors.ErrInvalidArgument{
			Name:    "variant",
			Value:   s,
			Message: "valid variants are batch and campaign",
		}
	}
}

// DispatchMetadata describes how to interpret a claimed file. It is looked up by the file id.
type DispatchMetadata struct {
	// File id, usually a campaign identifier
	CampaignId string
	// Raw variant tag, validated with ParseVariant
	FileType         string
	CustomerId       int32
	BotId            int32
	MsgText          string
	MsgType          string
	Priority         int16
	CampDesc         string
	FilePath         string
	ScheduledSend    *time.Time
	IsSystemApproved bool
	IsAdminApproved  bool
	IsProcessed      bool
}

// Item is one entry of a drop file after interpretation. PhoneNumber is always present; MessageText is only
// present for batch files.
type Item struct {
	ChatId      *string
	PhoneNumber string
	MessageText string
}

// MessageRecord is one outbound message ready to be persisted
type MessageRecord struct {
	CustomerId       int32
	ChatId           *string
	BotId            int32
	PhoneNumber      string
	MessageText      string
	MessageType      string
	ScheduledSend    *time.Time
	Priority         int16
	CampaignId       *string
	CampDescription  *string
	IsSystemApproved bool
}

// NonBlank returns nil for empty or whitespace-only strings and a pointer to s otherwise
func NonBlank(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
