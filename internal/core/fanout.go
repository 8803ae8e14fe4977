package core

import (
	"context"

	"github.com/samber/lo"

	"github.com/vovakirdan/issuechat-server/internal/notify"
	"github.com/vovakirdan/issuechat-server/internal/store"
)

// absentees returns the users to notify about a post: everyone registered with
// an email address, minus the present identities and the sender.
func absentees(users []*store.User, present map[string]struct{}, sender string) []*store.User {
	users = lo.UniqBy(users, func(u *store.User) string { return u.Identity })
	return lo.Filter(users, func(u *store.User, _ int) bool {
		if u.Email == "" || u.Identity == sender {
			return false
		}
		_, here := present[u.Identity]
		return !here
	})
}

// roomLabel resolves the human-readable name of a room, falling back to its id.
func (h *Hub) roomLabel(ctx context.Context, roomName string) string {
	if h.issues == nil {
		return roomName
	}
	title, ok, err := h.issues.ResolveTitle(ctx, roomName)
	if err != nil {
		h.logger.Warn().Err(err).Str("room", roomName).Msg("resolve issue title")
		return roomName
	}
	if !ok || title == "" {
		return roomName
	}
	return title
}

// fanOut schedules a notice for every absent user. Errors are logged only.
func (h *Hub) fanOut(ctx context.Context, msg Message, present map[string]struct{}) {
	if h.users == nil || h.notifier == nil {
		return
	}

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		h.logger.Error().Err(err).Str("room", msg.Room).Msg("list users for notification")
		return
	}

	targets := absentees(users, present, msg.From)
	if len(targets) == 0 {
		return
	}

	label := h.roomLabel(ctx, msg.Room)
	for _, u := range targets {
		err := h.notifier.Enqueue(notify.Notice{
			Email:     u.Email,
			Recipient: u.Identity,
			RoomID:    msg.Room,
			RoomLabel: label,
			Sender:    msg.From,
			Text:      msg.Text,
			SentAt:    msg.CreatedAt,
		})
		if err != nil {
			h.logger.Warn().Err(err).
				Str("room", msg.Room).
				Str("recipient", u.Identity).
				Msg("notification not scheduled")
		}
	}
}
