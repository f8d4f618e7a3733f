// Package interpret turns the raw content of a drop file into canonical items and message records.
package interpret

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/G-Research/dropingester/internal/dropingester/model"
)

// ErrEmptyPayload is returned when a drop file holds an empty list or JSON null
var ErrEmptyPayload = errors.New("no messages found in file")

// MalformedPayloadError is returned when a drop file isn't a JSON array of objects of the expected shape
type MalformedPayloadError struct {
	Variant model.Variant
	Reason  string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %s", e.Variant, e.Reason)
}

// InvalidVariantError is returned when asked to interpret a variant that has no known shape
type InvalidVariantError struct {
	Variant model.Variant
}

func (e *InvalidVariantError) Error() string {
	return fmt.Sprintf("invalid variant %q", string(e.Variant))
}

// Field names are matched case-insensitively by encoding/json, so both chatId and ChatId are accepted.
type batchItem struct {
	ChatId      *string `json:"chatId"`
	MessageText *string `json:"messageText"`
	PhoneNumber *string `json:"phoneNumber"`
}

// Campaign text comes from metadata, so any text field in the item is ignored.
type campaignItem struct {
	ChatId      *string `json:"chatId"`
	PhoneNumber *string `json:"phoneNumber"`
}

// Interpret parses content as a list of items of the given variant.
func Interpret(content []byte, variant model.Variant) ([]model.Item, error) {
	switch variant {
	case model.VariantBatch:
		return interpretBatch(content)
	case model.VariantCampaign:
		return interpretCampaign(content)
	default:
		return nil, &InvalidVariantError{Variant: variant}
	}
}

func interpretBatch(content []byte) ([]model.Item, error) {
	var parsed []*batchItem
	if err := decode(content, model.VariantBatch, &parsed); err != nil {
		return nil, err
	}
	items := make([]model.Item, len(parsed))
	for i, p := range parsed {
		if p == nil {
			return nil, malformed(model.VariantBatch, "item %d is null", i)
		}
		if p.MessageText == nil {
			return nil, malformed(model.VariantBatch, "item %d has no messageText", i)
		}
		if p.PhoneNumber == nil {
			return nil, malformed(model.VariantBatch, "item %d has no phoneNumber", i)
		}
		items[i] = model.Item{
			ChatId:      p.ChatId,
			PhoneNumber: *p.PhoneNumber,
			MessageText: *p.MessageText,
		}
	}
	return items, nil
}

func interpretCampaign(content []byte) ([]model.Item, error) {
	var parsed []*campaignItem
	if err := decode(content, model.VariantCampaign, &parsed); err != nil {
		return nil, err
	}
	items := make([]model.Item, len(parsed))
	for i, p := range parsed {
		if p == nil {
			return nil, malformed(model.VariantCampaign, "item %d is null", i)
		}
		if p.PhoneNumber == nil {
			return nil, malformed(model.VariantCampaign, "item %d has no phoneNumber", i)
		}
		items[i] = model.Item{
			ChatId:      p.ChatId,
			PhoneNumber: *p.PhoneNumber,
		}
	}
	return items, nil
}

// decode unmarshals content into out, a pointer to a slice, and distinguishes empty lists from bad documents.
func decode[T any](content []byte, variant model.Variant, out *[]T) error {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if err := json.Unmarshal(content, out); err != nil {
		return &MalformedPayloadError{Variant: variant, Reason: err.Error()}
	}
	if len(*out) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

func malformed(variant model.Variant, format string, args ...interface{}) error {
	return &MalformedPayloadError{Variant: variant, Reason: fmt.Sprintf(format, args...)}
}

// ToRecords merges metadata with each item. Campaign records take their text from the metadata, batch records from
// the item. A blank chat id becomes absent, as do a blank campaign id and description.
func ToRecords(meta *model.DispatchMetadata, variant model.Variant, items []model.Item) []*model.MessageRecord {
	records := make([]*model.MessageRecord, len(items))
	for i, item := range items {
		text := item.MessageText
		if variant == model.VariantCampaign {
			text = meta.MsgText
		}
		var chatId *string
		if item.ChatId != nil {
			chatId = model.NonBlank(*item.ChatId)
		}
		records[i] = &model.MessageRecord{
			CustomerId:       meta.CustomerId,
			ChatId:           chatId,
			BotId:            meta.BotId,
			PhoneNumber:      item.PhoneNumber,
			MessageText:      text,
			MessageType:      meta.MsgType,
			ScheduledSend:    meta.ScheduledSend,
			Priority:         meta.Priority,
			CampaignId:       model.NonBlank(meta.CampaignId),
			CampDescription:  model.NonBlank(meta.CampDesc),
			IsSystemApproved: meta.IsSystemApproved,
		}
	}
	return records
}
