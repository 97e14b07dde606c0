package session

import (
	"time"

	"github.com/google/uuid"

	"wabridge/internal/model"
	"wabridge/internal/provider"
)

// Normalize projects a raw provider message onto the uniform shape published
// to subscribers. Every inbound message maps to exactly one result:
// unrecognized kinds become type "other" with a placeholder content string,
// never a dropped message.
func Normalize(raw provider.Message) model.NormalizedMessage {
	msg := model.NormalizedMessage{
		ID:         raw.ID,
		ChatID:     raw.ChatID,
		FromMe:     raw.FromMe,
		SenderName: raw.SenderName,
		Mimetype:   raw.Mimetype,
		Filename:   raw.Filename,
		Caption:    raw.Caption,
		Timestamp:  raw.Timestamp.Unix(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if raw.Timestamp.IsZero() {
		msg.Timestamp = time.Now().Unix()
	}

	switch raw.Kind {
	case provider.KindText:
		msg.Type = model.MessageText
		msg.Content = raw.Text
	case provider.KindImage:
		msg.Type = model.MessageImage
		msg.Content = captionOr(raw.Caption, "[image]")
	case provider.KindVideo:
		msg.Type = model.MessageVideo
		msg.Content = captionOr(raw.Caption, "[video]")
	case provider.KindAudio:
		msg.Type = model.MessageAudio
		msg.Content = "[audio]"
	case provider.KindDocument:
		msg.Type = model.MessageDocument
		msg.Content = captionOr(raw.Filename, "[document]")
	case provider.KindSticker:
		msg.Type = model.MessageSticker
		msg.Content = "[sticker]"
	default:
		msg.Type = model.MessageOther
		msg.Content = "[unsupported message]"
	}

	if raw.QuotedID != "" {
		msg.Quoted = &model.QuotedMessage{ID: raw.QuotedID, Content: raw.QuotedText}
	}
	return msg
}

func captionOr(caption, placeholder string) string {
	if caption != "" {
		return caption
	}
	return placeholder
}
