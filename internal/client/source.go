package client

import (
	"context"

	"harbor-server/internal/channel"
	"harbor-server/internal/realtime"
	"harbor-server/internal/user"
)

// StoreSource adapts the in-process channel store and realtime hub to
// the DataSource interface.
type StoreSource struct {
	Hub *realtime.Hub
}

func (s *StoreSource) GetChannelByID(ctx context.Context, id string) (*channel.Channel, error) {
	return channel.GetChannelByID(id)
}

func (s *StoreSource) GetChannelMembers(ctx context.Context, channelID string) ([]channel.MemberInfo, error) {
	return channel.GetChannelMembers(channelID)
}

func (s *StoreSource) GetChannelMessages(ctx context.Context, channelID string) ([]channel.MessageInfo, error) {
	return channel.GetChannelMessages(channelID)
}

func (s *StoreSource) SendMessage(ctx context.Context, channelID, userID, content string) (*channel.Message, error) {
	msg, err := channel.SendMessage(channelID, userID, content)
	if err != nil {
		return nil, err
	}
	s.Hub.PublishMessageInsert(realtime.MessageEvent{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		User:      user.Profile{ID: msg.UserID},
	})
	return msg, nil
}

func (s *StoreSource) JoinChannel(ctx context.Context, channelID, userID string) (*channel.Member, error) {
	return channel.JoinChannel(channelID, userID)
}

func (s *StoreSource) LeaveChannel(ctx context.Context, channelID, userID string) error {
	return channel.LeaveChannel(channelID, userID)
}

func (s *StoreSource) ResolveProfile(ctx context.Context, userID string) (user.Profile, error) {
	return user.ProfileOf(userID)
}

func (s *StoreSource) SubscribeMessages(channelID string, onMessage func(realtime.MessageEvent)) Subscription {
	return s.Hub.SubscribeChannel(channelID, onMessage)
}
