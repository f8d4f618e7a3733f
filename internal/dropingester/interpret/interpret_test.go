package interpret

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/dropingester/internal/dropingester/model"
)

func strPtr(s string) *string { return &s }

func TestInterpret_Batch(t *testing.T) {
	items, err := Interpret([]byte(`[{"chatId":"abc","messageText":"Hi","phoneNumber":"+1"}]`), model.VariantBatch)
	require.NoError(t, err)
	assert.Equal(t, []model.Item{{ChatId: strPtr("abc"), PhoneNumber: "+1", MessageText: "Hi"}}, items)
}

func TestInterpret_Campaign(t *testing.T) {
	items, err := Interpret([]byte(`[{"chatId":" ","phoneNumber":"+1555","messageText":"ignored"}]`), model.VariantCampaign)
	require.NoError(t, err)
	assert.Equal(t, []model.Item{{ChatId: strPtr(" "), PhoneNumber: "+1555"}}, items)
}

func TestInterpret_FieldNamesIgnoreCase(t *testing.T) {
	items, err := Interpret([]byte(`[{"ChatId":"42","MessageText":"Hi","PhoneNumber":"+44"}]`), model.VariantBatch)
	require.NoError(t, err)
	assert.Equal(t, []model.Item{{ChatId: strPtr("42"), PhoneNumber: "+44", MessageText: "Hi"}}, items)
}

func TestInterpret_ChatIdOptional(t *testing.T) {
	items, err := Interpret([]byte(`[{"phoneNumber":"+1"},{"chatId":null,"phoneNumber":"+2"}]`), model.VariantCampaign)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Nil(t, items[0].ChatId)
	assert.Nil(t, items[1].ChatId)
}

func TestInterpret_ByteOrderMark(t *testing.T) {
	items, err := Interpret([]byte("\xef\xbb\xbf[{\"phoneNumber\":\"+1\"}]"), model.VariantCampaign)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestInterpret_Empty(t *testing.T) {
	for _, content := range []string{`[]`, `null`, ` [ ] `} {
		for _, variant := range []model.Variant{model.VariantBatch, model.VariantCampaign} {
			_, err := Interpret([]byte(content), variant)
			assert.ErrorIs(t, err, ErrEmptyPayload, "content %q variant %s", content, variant)
		}
	}
}

func TestInterpret_Malformed(t *testing.T) {
	tests := map[string]struct {
		content string
		variant model.Variant
	}{
		"not json":                  {content: `not json`, variant: model.VariantBatch},
		"empty file":                {content: ``, variant: model.VariantCampaign},
		"object not array":          {content: `{"phoneNumber":"+1"}`, variant: model.VariantCampaign},
		"array of numbers":          {content: `[1,2]`, variant: model.VariantCampaign},
		"null element":              {content: `[null]`, variant: model.VariantBatch},
		"batch without text":        {content: `[{"phoneNumber":"+1"}]`, variant: model.VariantBatch},
		"batch without phone":       {content: `[{"messageText":"Hi"}]`, variant: model.VariantBatch},
		"campaign without phone":    {content: `[{"chatId":"1"}]`, variant: model.VariantCampaign},
		"campaign with null phone":  {content: `[{"phoneNumber":null}]`, variant: model.VariantCampaign},
		"chat id of the wrong type": {content: `[{"chatId":7,"phoneNumber":"+1"}]`, variant: model.VariantCampaign},
		"truncated":                 {content: `[{"phoneNumber":"+1"}`, variant: model.VariantCampaign},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Interpret([]byte(tc.content), tc.variant)
			var malformedErr *MalformedPayloadError
			require.True(t, errors.As(err, &malformedErr), "expected malformed payload error, got %v", err)
			assert.Equal(t, tc.variant, malformedErr.Variant)
		})
	}
}

func TestInterpret_InvalidVariant(t *testing.T) {
	_, err := Interpret([]byte(`[{"phoneNumber":"+1"}]`), model.Variant("sms"))
	var variantErr *InvalidVariantError
	require.True(t, errors.As(err, &variantErr))
	assert.Equal(t, model.Variant("sms"), variantErr.Variant)
}

func TestToRecords_Campaign(t *testing.T) {
	scheduled := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	meta := &model.DispatchMetadata{
		CampaignId:       "camp-001",
		FileType:         "campaign",
		CustomerId:       7,
		BotId:            3,
		MsgText:          "Hello",
		MsgType:          "text",
		Priority:         2,
		CampDesc:         "  ",
		ScheduledSend:    &scheduled,
		IsSystemApproved: true,
	}
	items := []model.Item{
		{ChatId: strPtr(" "), PhoneNumber: "+1555"},
		{ChatId: strPtr("chat-9"), PhoneNumber: "+1666", MessageText: "not used"},
	}

	records := ToRecords(meta, model.VariantCampaign, items)

	require.Len(t, records, 2)
	assert.Equal(t, &model.MessageRecord{
		CustomerId:       7,
		ChatId:           nil,
		BotId:            3,
		PhoneNumber:      "+1555",
		MessageText:      "Hello",
		MessageType:      "text",
		ScheduledSend:    &scheduled,
		Priority:         2,
		CampaignId:       strPtr("camp-001"),
		CampDescription:  nil,
		IsSystemApproved: true,
	}, records[0])
	assert.Equal(t, strPtr("chat-9"), records[1].ChatId)
	assert.Equal(t, "Hello", records[1].MessageText)
	assert.Equal(t, "+1666", records[1].PhoneNumber)
}

func TestToRecords_Batch(t *testing.T) {
	meta := &model.DispatchMetadata{
		CampaignId: "",
		FileType:   "batch",
		CustomerId: 1,
		MsgText:    "default text",
		CampDesc:   "spring promo",
	}
	items := []model.Item{{ChatId: strPtr("abc"), PhoneNumber: "+1", MessageText: "Hi"}}

	records := ToRecords(meta, model.VariantBatch, items)

	require.Len(t, records, 1)
	assert.Equal(t, strPtr("abc"), records[0].ChatId)
	assert.Equal(t, "Hi", records[0].MessageText)
	assert.Equal(t, "+1", records[0].PhoneNumber)
	assert.Nil(t, records[0].CampaignId)
	assert.Equal(t, strPtr("spring promo"), records[0].CampDescription)
}

func TestToRecords_Empty(t *testing.T) {
	assert.Empty(t, ToRecords(&model.DispatchMetadata{}, model.VariantBatch, nil))
}
