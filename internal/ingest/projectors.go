package ingest

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/dmitrijs2005/nostrchat/internal/models"
	"github.com/nbd-wtf/go-nostr"
)

// eventClass is the closed set of event interpretations this layer
// projects. Anything else is classUnknown: stored and indexed, projected
// nowhere, kept for forward compatibility.
type eventClass int

const (
	classUnknown eventClass = iota
	classProfile
	classContactList
	classDirectMessage
	classChannelCreation
	classChannelEdit
	classChannelMessage
)

func classify(kind int) eventClass {
	switch kind {
	case nostr.KindProfileMetadata:
		return classProfile
	case nostr.KindContactList:
		return classContactList
	case nostr.KindEncryptedDirectMessage:
		return classDirectMessage
	case nostr.KindChannelCreation:
		return classChannelCreation
	case nostr.KindChannelMetadata:
		return classChannelEdit
	case nostr.KindChannelMessage:
		return classChannelMessage
	}
	return classUnknown
}

// project routes a freshly inserted event to its kind-specific updater.
// Validation failures inside a projector never undo the event row: the
// event is ground truth, the projections are derived state.
func (s *Service) project(ctx context.Context, ev *models.Event, relay string) error {
	switch classify(ev.Kind) {
	case classProfile:
		return s.projectProfile(ctx, ev)
	case classContactList:
		return s.projectContactList(ctx, ev)
	case classDirectMessage:
		return s.projectDirectMessage(ctx, ev, relay)
	case classChannelCreation:
		return s.projectChannelCreation(ctx, ev)
	case classChannelEdit:
		return s.projectChannelEdit(ctx, ev)
	case classChannelMessage:
		s.log.Debug(ctx, "channel message stored", "hash", ev.Hash)
	default:
		s.log.Debug(ctx, "unknown kind stored without projection", "hash", ev.Hash, "kind", ev.Kind)
	}
	return nil
}

func (s *Service) projectProfile(ctx context.Context, ev *models.Event) error {
	meta, err := models.DecodeProfileMetadata(ev.Content)
	if err != nil {
		// Malformed metadata never touches the previously cached state.
		s.log.Warn(ctx, "dropping malformed profile metadata", "hash", ev.Hash, "err", err)
		return nil
	}

	return s.withLock("profile:"+ev.Pubkey, func() error {
		applied, err := s.store.Profiles.Apply(ctx, ev.Protocol(), meta)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Debug(ctx, "stale profile metadata discarded", "hash", ev.Hash, "pubkey", ev.Pubkey)
		}
		return nil
	})
}

func (s *Service) projectContactList(ctx context.Context, ev *models.Event) error {
	if ev.Pubkey != s.owner {
		s.log.Debug(ctx, "ignoring foreign contact list", "pubkey", ev.Pubkey)
		return nil
	}

	at := ev.CreatedAt.Time()
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "p" || len(tag[1]) != 64 {
			continue
		}
		// NIP-02 entry: ["p", pubkey, relay-hint, petname].
		pubkey := tag[1]
		var relayHint, petname string
		if len(tag) > 2 {
			relayHint = tag[2]
		}
		if len(tag) > 3 {
			petname = tag[3]
		}

		err := s.withLock("contact:"+pubkey, func() error {
			return s.store.Contacts.UpsertFromFollowList(ctx, pubkey, petname, relayHint, at)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) projectDirectMessage(ctx context.Context, ev *models.Event, relay string) error {
	to := firstTagValue(ev.Tags, "p")
	if to == "" {
		s.log.Warn(ctx, "direct message without recipient tag", "hash", ev.Hash)
		return nil
	}
	if ev.Pubkey != s.owner && to != s.owner {
		// Stored as an event, but not part of the owner's conversations.
		return nil
	}

	m := &models.Message{
		Content:    ev.Content,
		FromPubkey: ev.Pubkey,
		ToPubkey:   to,
		EventHash:  &ev.Hash,
		CreatedAt:  ev.CreatedAt.Time(),
		UpdatedAt:  ev.CreatedAt.Time(),
	}
	peer := m.Peer(s.owner)

	return s.withLock("dm:"+peer, func() error {
		exists, err := s.store.Messages.ExistsByEventHash(ctx, ev.Hash)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		msgID, err := s.store.Messages.Record(ctx, m)
		if err != nil {
			return err
		}
		// The delivering relay evidently has the event.
		if _, err := s.store.Messages.UpdateStatus(ctx, msgID, relay, models.DeliveryConfirmed, ev.ReceivedAt); err != nil {
			return err
		}

		if ev.Pubkey != s.owner {
			return s.store.Contacts.RecordIncomingMessage(ctx, peer, s.preview(m), m.CreatedAt)
		}
		return nil
	})
}

func (s *Service) projectChannelCreation(ctx context.Context, ev *models.Event) error {
	meta, err := models.DecodeChannelMetadata(ev.Content)
	if err != nil {
		s.log.Warn(ctx, "dropping malformed channel metadata", "hash", ev.Hash, "err", err)
		return nil
	}

	return s.withLock("channel:"+ev.Hash, func() error {
		_, err := s.store.Channels.ApplyCreation(ctx, ev.Protocol(), meta)
		return err
	})
}

func (s *Service) projectChannelEdit(ctx context.Context, ev *models.Event) error {
	channelHash := firstTagValue(ev.Tags, "e")
	if channelHash == "" {
		s.log.Warn(ctx, "channel edit without channel reference", "hash", ev.Hash)
		return nil
	}

	meta, err := models.DecodeChannelMetadata(ev.Content)
	if err != nil {
		s.log.Warn(ctx, "dropping malformed channel metadata", "hash", ev.Hash, "err", err)
		return nil
	}

	return s.withLock("channel:"+channelHash, func() error {
		ch, err := s.store.Channels.Get(ctx, channelHash)
		if err != nil {
			if isNotFound(err) {
				// A kind-41 may race ahead of its kind-40; the edit stays
				// in the event store and can be replayed by the caller.
				s.log.Debug(ctx, "channel edit before creation", "channel", channelHash)
				return nil
			}
			return err
		}
		if ch.CreatorPubkey != ev.Pubkey {
			s.log.Warn(ctx, "dropping channel edit from non-creator", "channel", channelHash, "editor", ev.Pubkey)
			return nil
		}

		applied, err := s.store.Channels.ApplyUpdate(ctx, ev.Protocol(), channelHash, meta)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Debug(ctx, "stale channel edit discarded", "channel", channelHash, "hash", ev.Hash)
		}
		return nil
	})
}

// firstTagValue returns the value of the first tag with the given name.
// The first reference is the semantically primary one for these kinds.
func firstTagValue(tags nostr.Tags, name string) string {
	for _, tag := range tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

func isNotFound(err error) bool { return errors.Is(err, common.ErrorNotFound) }
