// Package mirror keeps the remote copy of the store current: a
// per-change hook on the store's write path, a full-state uploader, and
// a destructive-replace downloader. Sensitive fields cross the wire
// encrypted under the account key.
package mirror

import (
	"github.com/mvalim/textsync/internal/crypto"
	"github.com/mvalim/textsync/internal/remote"
	"github.com/mvalim/textsync/internal/store"
)

func encodeConversation(c *crypto.Cipher, v *store.Conversation) (remote.ConversationRecord, error) {
	addresses, err := c.EncryptField(v.Addresses)
	if err != nil {
		return remote.ConversationRecord{}, err
	}
	title, err := c.EncryptField(v.Title)
	if err != nil {
		return remote.ConversationRecord{}, err
	}
	snippet, err := c.EncryptField(v.Snippet)
	if err != nil {
		return remote.ConversationRecord{}, err
	}
	return remote.ConversationRecord{
		ID:          v.ID,
		Addresses:   addresses,
		Title:       title,
		Snippet:     snippet,
		Timestamp:   v.Timestamp,
		Read:        v.Read,
		Pinned:      v.Pinned,
		Archived:    v.Archived,
		Muted:       v.Muted,
		ColorMain:   v.Colors.Main,
		ColorDark:   v.Colors.Dark,
		ColorLight:  v.Colors.Light,
		ColorAccent: v.Colors.Accent,
		LineID:      v.LineID,
	}, nil
}

func decodeConversation(c *crypto.Cipher, r remote.ConversationRecord) (*store.Conversation, error) {
	addresses, err := c.DecryptField(r.Addresses)
	if err != nil {
		return nil, err
	}
	title, err := c.DecryptField(r.Title)
	if err != nil {
		return nil, err
	}
	snippet, err := c.DecryptField(r.Snippet)
	if err != nil {
		return nil, err
	}
	return &store.Conversation{
		ID:        r.ID,
		Addresses: addresses,
		Title:     title,
		Snippet:   snippet,
		Timestamp: r.Timestamp,
		Read:      r.Read,
		Pinned:    r.Pinned,
		Archived:  r.Archived,
		Muted:     r.Muted,
		Colors: store.ColorScheme{
			Main:   r.ColorMain,
			Dark:   r.ColorDark,
			Light:  r.ColorLight,
			Accent: r.ColorAccent,
		},
		LineID: r.LineID,
	}, nil
}

func encodeMessage(c *crypto.Cipher, v *store.Message) (remote.MessageRecord, error) {
	body, err := c.EncryptField(v.Body)
	if err != nil {
		return remote.MessageRecord{}, err
	}
	label, err := c.EncryptField(v.SenderLabel)
	if err != nil {
		return remote.MessageRecord{}, err
	}
	return remote.MessageRecord{
		ID:             v.ID,
		ConversationID: v.ConversationID,
		Kind:           string(v.Kind),
		Body:           body,
		Timestamp:      v.Timestamp,
		Status:         string(v.Status),
		Read:           v.Read,
		Seen:           v.Seen,
		SenderLabel:    label,
		LineID:         v.LineID,
		Color:          v.Color,
	}, nil
}

func decodeMessage(c *crypto.Cipher, r remote.MessageRecord) (*store.Message, error) {
	body, err := c.DecryptField(r.Body)
	if err != nil {
		return nil, err
	}
	label, err := c.DecryptField(r.SenderLabel)
	if err != nil {
		return nil, err
	}
	return &store.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Kind:           store.ContentKind(r.Kind),
		Body:           body,
		Timestamp:      r.Timestamp,
		Status:         store.Status(r.Status),
		Read:           r.Read,
		Seen:           r.Seen,
		SenderLabel:    label,
		LineID:         r.LineID,
		Color:          r.Color,
	}, nil
}

func encodeDraft(c *crypto.Cipher, v *store.Draft) (remote.DraftRecord, error) {
	body, err := c.EncryptField(v.Body)
	if err != nil {
		return remote.DraftRecord{}, err
	}
	return remote.DraftRecord{
		ID:             v.ID,
		ConversationID: v.ConversationID,
		Kind:           string(v.Kind),
		Body:           body,
	}, nil
}

func decodeDraft(c *crypto.Cipher, r remote.DraftRecord) (*store.Draft, error) {
	body, err := c.DecryptField(r.Body)
	if err != nil {
		return nil, err
	}
	return &store.Draft{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Kind:           store.ContentKind(r.Kind),
		Body:           body,
	}, nil
}

func encodeScheduled(c *crypto.Cipher, v *store.ScheduledMessage) (remote.ScheduledRecord, error) {
	addresses, err := c.EncryptField(v.Addresses)
	if err != nil {
		return remote.ScheduledRecord{}, err
	}
	title, err := c.EncryptField(v.Title)
	if err != nil {
		return remote.ScheduledRecord{}, err
	}
	body, err := c.EncryptField(v.Body)
	if err != nil {
		return remote.ScheduledRecord{}, err
	}
	return remote.ScheduledRecord{
		ID:        v.ID,
		Addresses: addresses,
		Title:     title,
		Body:      body,
		Kind:      string(v.Kind),
		FireAt:    v.FireAt,
	}, nil
}

func decodeScheduled(c *crypto.Cipher, r remote.ScheduledRecord) (*store.ScheduledMessage, error) {
	addresses, err := c.DecryptField(r.Addresses)
	if err != nil {
		return nil, err
	}
	title, err := c.DecryptField(r.Title)
	if err != nil {
		return nil, err
	}
	body, err := c.DecryptField(r.Body)
	if err != nil {
		return nil, err
	}
	return &store.ScheduledMessage{
		ID:        r.ID,
		Addresses: addresses,
		Title:     title,
		Body:      body,
		Kind:      store.ContentKind(r.Kind),
		FireAt:    r.FireAt,
	}, nil
}

func encodeContact(c *crypto.Cipher, v *store.Contact) (remote.ContactRecord, error) {
	address, err := c.EncryptField(v.Address)
	if err != nil {
		return remote.ContactRecord{}, err
	}
	name, err := c.EncryptField(v.Name)
	if err != nil {
		return remote.ContactRecord{}, err
	}
	return remote.ContactRecord{
		ID:          v.ID,
		Address:     address,
		Name:        name,
		ColorMain:   v.Colors.Main,
		ColorDark:   v.Colors.Dark,
		ColorLight:  v.Colors.Light,
		ColorAccent: v.Colors.Accent,
	}, nil
}

func decodeContact(c *crypto.Cipher, r remote.ContactRecord) (*store.Contact, error) {
	address, err := c.DecryptField(r.Address)
	if err != nil {
		return nil, err
	}
	name, err := c.DecryptField(r.Name)
	if err != nil {
		return nil, err
	}
	return &store.Contact{
		ID:      r.ID,
		Address: address,
		Name:    name,
		Colors: store.ColorScheme{
			Main:   r.ColorMain,
			Dark:   r.ColorDark,
			Light:  r.ColorLight,
			Accent: r.ColorAccent,
		},
	}, nil
}
