// Package client implements the channel view state machine: fetch on
// open, membership gating, optimistic send and incremental merge of
// pushed message events into the local display list.
package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"harbor-server/internal/channel"
	"harbor-server/internal/realtime"
	"harbor-server/internal/user"
)

type State int

const (
	StateLoading State = iota
	StateNotFound
	StateReadyNonMember
	StateReadyMember
)

var (
	ErrNotMember  = errors.New("not a member of this channel")
	ErrEmptyInput = errors.New("message is empty")
	ErrViewClosed = errors.New("view is closed")
)

// Subscription is the releasable handle returned by a message feed.
type Subscription interface {
	Unsubscribe()
}

// DataSource is the access layer the view talks to. The server-side
// store and any remote client satisfy it alike.
type DataSource interface {
	GetChannelByID(ctx context.Context, id string) (*channel.Channel, error)
	GetChannelMembers(ctx context.Context, channelID string) ([]channel.MemberInfo, error)
	GetChannelMessages(ctx context.Context, channelID string) ([]channel.MessageInfo, error)
	SendMessage(ctx context.Context, channelID, userID, content string) (*channel.Message, error)
	JoinChannel(ctx context.Context, channelID, userID string) (*channel.Member, error)
	LeaveChannel(ctx context.Context, channelID, userID string) error
	ResolveProfile(ctx context.Context, userID string) (user.Profile, error)
	SubscribeMessages(channelID string, onMessage func(realtime.MessageEvent)) Subscription
}

// DisplayMessage pairs a message row with the tagged author projection
// the view renders.
type DisplayMessage struct {
	channel.Message
	Author Author
}

// ChannelView holds one open channel's local state. It owns the
// subscription handle it creates and drops every update after Close.
type ChannelView struct {
	source DataSource
	self   user.Profile

	mu       sync.Mutex
	closed   bool
	state    State
	channel  *channel.Channel
	role     channel.Role
	members  []channel.MemberInfo
	messages []DisplayMessage
	input    string
	sub      Subscription
}

func NewChannelView(source DataSource, self user.Profile) *ChannelView {
	return &ChannelView{
		source: source,
		self:   self,
		state:  StateLoading,
	}
}

// Open loads a channel. Switching channels releases the previous
// subscription before creating the new one.
func (v *ChannelView) Open(ctx context.Context, channelID string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.sub != nil {
		v.sub.Unsubscribe()
		v.sub = nil
	}
	v.state = StateLoading
	v.channel = nil
	v.role = ""
	v.members = nil
	v.messages = nil
	v.mu.Unlock()

	// Channel and member list load in parallel.
	var (
		wg         sync.WaitGroup
		ch         *channel.Channel
		chErr      error
		members    []channel.MemberInfo
		membersErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ch, chErr = v.source.GetChannelByID(ctx, channelID)
	}()
	go func() {
		defer wg.Done()
		members, membersErr = v.source.GetChannelMembers(ctx, channelID)
	}()
	wg.Wait()

	if errors.Is(chErr, channel.ErrChannelNotFound) {
		v.update(func() { v.state = StateNotFound })
		return nil
	}
	if chErr != nil {
		return chErr
	}
	if membersErr != nil {
		return membersErr
	}

	// Membership gates the message fetch.
	var role channel.Role
	isMember := false
	for _, m := range members {
		if m.UserID == v.self.ID {
			isMember = true
			role = m.Role
			break
		}
	}

	var messages []DisplayMessage
	if isMember {
		infos, err := v.source.GetChannelMessages(ctx, channelID)
		if err != nil {
			return err
		}
		messages = displayList(infos)
	}

	sub := v.source.SubscribeMessages(channelID, func(ev realtime.MessageEvent) {
		v.mergeEvent(ev)
	})

	ok := v.update(func() {
		v.channel = ch
		v.members = members
		v.messages = messages
		v.sub = sub
		if isMember {
			v.state = StateReadyMember
			v.role = role
		} else {
			v.state = StateReadyNonMember
		}
	})
	if !ok {
		sub.Unsubscribe()
		return ErrViewClosed
	}
	return nil
}

func displayList(infos []channel.MessageInfo) []DisplayMessage {
	out := make([]DisplayMessage, 0, len(infos))
	for _, info := range infos {
		out = append(out, DisplayMessage{Message: info.Message, Author: ResolvedAuthor(info.User)})
	}
	return out
}

// update applies fn under the lock unless the view is closed. Every
// state change after Close is dropped, covering callbacks that land
// after teardown.
func (v *ChannelView) update(fn func()) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	fn()
	return true
}

// mergeEvent folds one pushed insert into the display list. Events are
// deduplicated by message id: the sender's own echo can arrive before
// or after the send request resolves.
func (v *ChannelView) mergeEvent(ev realtime.MessageEvent) {
	var resolveNeeded bool

	v.update(func() {
		if v.channel == nil || v.channel.ID != ev.ChannelID {
			return
		}
		for _, msg := range v.messages {
			if msg.ID == ev.ID {
				return
			}
		}

		display := DisplayMessage{
			Message: channel.Message{
				ID:        ev.ID,
				ChannelID: ev.ChannelID,
				UserID:    ev.UserID,
				Content:   ev.Content,
				CreatedAt: ev.CreatedAt,
				UpdatedAt: ev.CreatedAt,
			},
		}
		if ev.UserID == v.self.ID {
			display.Author = ResolvedAuthor(v.self)
		} else {
			display.Author = PendingAuthor(ev.UserID)
			resolveNeeded = true
		}
		v.messages = append(v.messages, display)
	})

	if resolveNeeded {
		go v.resolveAuthor(ev.ID, ev.UserID)
	}
}

// resolveAuthor patches one message's pending author in place. Only
// that message is touched, so an interleaved late lookup can never
// regress another message's already-resolved author.
func (v *ChannelView) resolveAuthor(messageID, userID string) {
	profile, err := v.source.ResolveProfile(context.Background(), userID)

	v.update(func() {
		for i := range v.messages {
			if v.messages[i].ID != messageID {
				continue
			}
			if v.messages[i].Author.State == AuthorResolved {
				return
			}
			if err != nil {
				v.messages[i].Author = UnknownAuthor(userID)
			} else {
				v.messages[i].Author = ResolvedAuthor(profile)
			}
			return
		}
	})
}

// SetInput replaces the draft text.
func (v *ChannelView) SetInput(text string) {
	v.update(func() { v.input = text })
}

func (v *ChannelView) Input() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.input
}

// Send submits the draft. The input clears immediately; the message
// itself is only shown once the pushed echo or a later fetch delivers
// it. On failure the original text is restored.
func (v *ChannelView) Send(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.state != StateReadyMember || v.channel == nil {
		v.mu.Unlock()
		return ErrNotMember
	}
	content := strings.TrimSpace(v.input)
	if content == "" {
		v.mu.Unlock()
		return ErrEmptyInput
	}
	channelID := v.channel.ID
	v.input = ""
	v.mu.Unlock()

	if _, err := v.source.SendMessage(ctx, channelID, v.self.ID, content); err != nil {
		v.update(func() { v.input = content })
		return err
	}
	return nil
}

// Join makes the viewer a member and loads the message history.
func (v *ChannelView) Join(ctx context.Context) error {
	v.mu.Lock()
	if v.closed || v.channel == nil {
		v.mu.Unlock()
		return ErrViewClosed
	}
	channelID := v.channel.ID
	v.mu.Unlock()

	if _, err := v.source.JoinChannel(ctx, channelID, v.self.ID); err != nil {
		return err
	}

	members, err := v.source.GetChannelMembers(ctx, channelID)
	if err != nil {
		return err
	}
	infos, err := v.source.GetChannelMessages(ctx, channelID)
	if err != nil {
		return err
	}

	v.update(func() {
		v.members = members
		for _, m := range members {
			if m.UserID == v.self.ID {
				v.role = m.Role
				break
			}
		}
		// Merged events may already hold rows the fetch also returned.
		fetched := displayList(infos)
		for _, msg := range v.messages {
			exists := false
			for _, f := range fetched {
				if f.ID == msg.ID {
					exists = true
					break
				}
			}
			if !exists {
				fetched = append(fetched, msg)
			}
		}
		v.messages = fetched
		v.state = StateReadyMember
	})
	return nil
}

// Leave drops membership; non-member is a terminal display state until
// the viewer joins again.
func (v *ChannelView) Leave(ctx context.Context) error {
	v.mu.Lock()
	if v.closed || v.channel == nil {
		v.mu.Unlock()
		return ErrViewClosed
	}
	channelID := v.channel.ID
	v.mu.Unlock()

	if err := v.source.LeaveChannel(ctx, channelID, v.self.ID); err != nil {
		return err
	}

	members, err := v.source.GetChannelMembers(ctx, channelID)
	if err != nil {
		members = nil
	}

	v.update(func() {
		v.state = StateReadyNonMember
		v.role = ""
		v.messages = nil
		if members != nil {
			v.members = members
		}
	})
	return nil
}

// Close releases the subscription and freezes the view. Safe to call
// more than once.
func (v *ChannelView) Close() {
	v.mu.Lock()
	sub := v.sub
	v.sub = nil
	v.closed = true
	v.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func (v *ChannelView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *ChannelView) Channel() *channel.Channel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.channel
}

func (v *ChannelView) Role() channel.Role {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.role
}

func (v *ChannelView) Members() []channel.MemberInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]channel.MemberInfo, len(v.members))
	copy(out, v.members)
	return out
}

func (v *ChannelView) Messages() []DisplayMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]DisplayMessage, len(v.messages))
	copy(out, v.messages)
	return out
}
