package telegram

import (
	"strings"
	"time"

	"scamwatch/internal/model"

	"github.com/gotd/td/tg"
)

// channelIDOffset maps channel ids into the negative chat id space.
const channelIDOffset int64 = 1_000_000_000_000

// ChatIDFromPeer converts a peer into the signed chat id used in storage:
// users keep their id, basic groups are negated and channels are shifted
// below -1e12.
func ChatIDFromPeer(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -channelIDOffset - p.ChannelID
	}
	return 0
}

func channelChatID(channelID int64) int64 {
	return -channelIDOffset - channelID
}

// senderID returns the user that sent msg, 0 when it was sent on behalf of a chat.
func senderID(msg *tg.Message) int64 {
	if from, ok := msg.GetFromID(); ok {
		if u, ok := from.(*tg.PeerUser); ok {
			return u.UserID
		}
		return 0
	}
	// Incoming private messages carry no sender, the peer is the sender.
	if u, ok := msg.PeerID.(*tg.PeerUser); ok {
		return u.UserID
	}
	return 0
}

func messageFromTG(msg *tg.Message, selfID int64) *model.Message {
	sender := senderID(msg)
	contentType := contentTypeOf(msg)

	out := &model.Message{
		ID:                int64(msg.ID),
		SenderID:          sender,
		ChatID:            ChatIDFromPeer(msg.PeerID),
		Date:              time.Unix(int64(msg.Date), 0).UTC(),
		RestrictionReason: restrictionReason(msg.RestrictionReason),
		Type:              contentType,
		Extra:             []string{},
		Outgoing:          msg.Out || (selfID != 0 && sender == selfID),
	}
	if edit, ok := msg.GetEditDate(); ok && edit > 0 {
		out.EditDate = time.Unix(int64(edit), 0).UTC()
	}
	if contentType.HasText() {
		out.Content = msg.Message
	}
	return out
}

func contentTypeOf(msg *tg.Message) model.ContentType {
	media, ok := msg.GetMedia()
	if !ok || media == nil {
		if msg.Message == "" {
			return model.ContentNone
		}
		return model.ContentText
	}

	switch m := media.(type) {
	case *tg.MessageMediaEmpty, *tg.MessageMediaWebPage:
		return model.ContentText
	case *tg.MessageMediaPhoto:
		return model.ContentPhoto
	case *tg.MessageMediaDocument:
		return documentType(m)
	case *tg.MessageMediaContact:
		return model.ContentContact
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive:
		return model.ContentLocation
	case *tg.MessageMediaVenue:
		return model.ContentVenue
	case *tg.MessageMediaPoll:
		return model.ContentPoll
	case *tg.MessageMediaDice:
		return model.ContentDice
	case *tg.MessageMediaGame:
		return model.ContentGame
	case *tg.MessageMediaInvoice:
		return model.ContentInvoice
	}
	return model.ContentUnsupported
}

func documentType(media *tg.MessageMediaDocument) model.ContentType {
	doc, ok := media.Document.(*tg.Document)
	if !ok {
		return model.ContentDocument
	}
	result := model.ContentDocument
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeSticker:
			return model.ContentSticker
		case *tg.DocumentAttributeAnimated:
			return model.ContentAnimation
		case *tg.DocumentAttributeVideo:
			if a.RoundMessage {
				result = model.ContentVideoNote
			} else {
				result = model.ContentVideo
			}
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				result = model.ContentVoiceNote
			} else {
				result = model.ContentAudio
			}
		}
	}
	return result
}

func restrictionReason(reasons []tg.RestrictionReason) string {
	if len(reasons) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "; ")
}

func userFromTG(u *tg.User) *model.User {
	userType := model.UserRegular
	switch {
	case u.Deleted:
		userType = model.UserDeleted
	case u.Bot:
		userType = model.UserBot
	}
	return &model.User{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Username:          u.Username,
		PhoneNumber:       u.Phone,
		IsVerified:        u.Verified,
		IsSupport:         u.Support,
		RestrictionReason: restrictionReason(u.RestrictionReason),
		IsScam:            u.Scam,
		Type:              userType,
	}
}

// chatFromEntities resolves the chat a message was posted in.
func chatFromEntities(e tg.Entities, peer tg.PeerClass) *model.Chat {
	switch p := peer.(type) {
	case *tg.PeerUser:
		chat := &model.Chat{ID: p.UserID, Type: model.ChatPrivate}
		if u, ok := e.Users[p.UserID]; ok {
			chat.Title = strings.TrimSpace(u.FirstName + " " + u.LastName)
		}
		return chat
	case *tg.PeerChat:
		c, ok := e.Chats[p.ChatID]
		if !ok {
			return nil
		}
		return &model.Chat{ID: -c.ID, Title: c.Title, Type: model.ChatBasicGroup}
	case *tg.PeerChannel:
		c, ok := e.Channels[p.ChannelID]
		if !ok {
			return nil
		}
		chatType := model.ChatSupergroup
		if c.Broadcast {
			chatType = model.ChatChannel
		}
		return &model.Chat{ID: channelChatID(c.ID), Title: c.Title, Type: chatType}
	}
	return nil
}
