package channel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"harbor-server/internal/db"
	"harbor-server/internal/logger"
	"harbor-server/internal/user"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyMember   = errors.New("already a member")
	ErrNotMember       = errors.New("not a member")
	ErrNotOwner        = errors.New("not the channel owner")
	ErrOwnerImmutable  = errors.New("owner role can only change via ownership transfer")
)

// MemberInfo is a membership row with its author projection attached
// at read time.
type MemberInfo struct {
	Member
	User user.Profile `json:"user"`
}

// MessageInfo is a message row with its author projection attached at
// read time.
type MessageInfo struct {
	Message
	User user.Profile `json:"user"`
}

func isDuplicateErr(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateChannel inserts the channel row and the owner membership row
// in one transaction so a partial failure never leaves an ownerless
// channel.
func CreateChannel(name, description string, isPrivate bool, ownerID string) (*Channel, error) {
	ch := &Channel{
		Name:        name,
		Description: description,
		IsPrivate:   isPrivate,
		OwnerID:     ownerID,
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ch).Error; err != nil {
			return err
		}
		owner := &Member{
			ChannelID: ch.ID,
			UserID:    ownerID,
			Role:      RoleOwner,
		}
		return tx.Create(owner).Error
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func GetChannelByID(id string) (*Channel, error) {
	var ch Channel
	if err := db.DB.First(&ch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// ListChannels returns all channels, newest first. An empty table
// yields an empty slice, not an error.
func ListChannels() ([]Channel, error) {
	channels := make([]Channel, 0)
	err := db.DB.Order("created_at DESC").Find(&channels).Error
	return channels, err
}

type ChannelUpdate struct {
	Name        *string
	Description *string
	IsPrivate   *bool
}

func UpdateChannel(id string, updates ChannelUpdate) (*Channel, error) {
	ch, err := GetChannelByID(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"updated_at": time.Now()}
	if updates.Name != nil {
		fields["name"] = *updates.Name
	}
	if updates.Description != nil {
		fields["description"] = *updates.Description
	}
	if updates.IsPrivate != nil {
		fields["is_private"] = *updates.IsPrivate
	}

	if err := db.DB.Model(ch).Updates(fields).Error; err != nil {
		return nil, err
	}
	return GetChannelByID(id)
}

// DeleteChannel removes the channel with its memberships and messages
// in one transaction. Cleanup is explicit; no storage-level cascade is
// assumed.
func DeleteChannel(id string) error {
	if _, err := GetChannelByID(id); err != nil {
		return err
	}

	return db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("channel_id = ?", id).Delete(&Member{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Channel{}, "id = ?", id).Error
	})
}

// JoinChannel inserts a member-role row. A unique-constraint violation
// surfaces as ErrAlreadyMember, not a generic failure.
func JoinChannel(channelID, userID string) (*Member, error) {
	if _, err := GetChannelByID(channelID); err != nil {
		return nil, err
	}

	m := &Member{
		ChannelID: channelID,
		UserID:    userID,
		Role:      RoleMember,
	}
	if err := db.DB.Create(m).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}
	return m, nil
}

// LeaveChannel deletes the membership row. Deleting a non-existent
// row is not an error. The owner must transfer ownership first.
func LeaveChannel(channelID, userID string) error {
	m, err := GetMember(channelID, userID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil
		}
		return err
	}
	if m.Role == RoleOwner {
		return ErrOwnerImmutable
	}
	return db.DB.Delete(&Member{}, "id = ?", m.ID).Error
}

// RemoveMember deletes a membership row by member id, same idempotency
// and owner rules as LeaveChannel.
func RemoveMember(memberID string) error {
	var m Member
	if err := db.DB.First(&m, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if m.Role == RoleOwner {
		return ErrOwnerImmutable
	}
	return db.DB.Delete(&m).Error
}

func GetMember(channelID, userID string) (*Member, error) {
	var m Member
	err := db.DB.First(&m, "channel_id = ? AND user_id = ?", channelID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func GetMemberByID(memberID string) (*Member, error) {
	var m Member
	if err := db.DB.First(&m, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetChannelMembers fetches membership rows and resolves the author
// projection per distinct user. A failed projection lookup degrades to
// the placeholder profile instead of failing the call.
func GetChannelMembers(channelID string) ([]MemberInfo, error) {
	var members []Member
	if err := db.DB.Where("channel_id = ?", channelID).Find(&members).Error; err != nil {
		return nil, err
	}

	infos := make([]MemberInfo, 0, len(members))
	if len(members) == 0 {
		return infos, nil
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}

	profiles, err := user.ResolveProfiles(ids)
	if err != nil {
		logger.Warnf("member profile lookup failed for channel %s: %v", channelID, err)
		profiles = nil
	}

	for _, m := range members {
		p, ok := profiles[m.UserID]
		if !ok {
			p = user.UnknownProfile(m.UserID)
		}
		infos = append(infos, MemberInfo{Member: m, User: p})
	}
	return infos, nil
}

// GetChannelMessages returns messages in creation order with author
// projections, degrading the same way as GetChannelMembers.
func GetChannelMessages(channelID string) ([]MessageInfo, error) {
	var messages []Message
	err := db.DB.Where("channel_id = ?", channelID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	infos := make([]MessageInfo, 0, len(messages))
	if len(messages) == 0 {
		return infos, nil
	}

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, msg := range messages {
		if !seen[msg.UserID] {
			seen[msg.UserID] = true
			ids = append(ids, msg.UserID)
		}
	}

	profiles, err := user.ResolveProfiles(ids)
	if err != nil {
		logger.Warnf("message profile lookup failed for channel %s: %v", channelID, err)
		profiles = nil
	}

	for _, msg := range messages {
		p, ok := profiles[msg.UserID]
		if !ok {
			p = user.UnknownProfile(msg.UserID)
		}
		infos = append(infos, MessageInfo{Message: msg, User: p})
	}
	return infos, nil
}

// SendMessage inserts one message row. The returned row carries the
// server-assigned id and timestamps and is the single source of truth
// for the new message.
func SendMessage(channelID, userID, content string) (*Message, error) {
	if _, err := GetChannelByID(channelID); err != nil {
		return nil, err
	}

	msg := &Message{
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
	}
	if err := db.DB.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// UpdateMemberRole changes a member between admin and member. The
// owner role is unreachable here; ownership moves only through
// TransferOwnership.
func UpdateMemberRole(memberID string, role Role) (*Member, error) {
	if role != RoleAdmin && role != RoleMember {
		return nil, ErrOwnerImmutable
	}

	m, err := GetMemberByID(memberID)
	if err != nil {
		return nil, err
	}
	if m.Role == RoleOwner {
		return nil, ErrOwnerImmutable
	}

	if err := db.DB.Model(m).Update("role", role).Error; err != nil {
		return nil, err
	}
	m.Role = role
	return m, nil
}

// TransferOwnership demotes the current owner to admin, promotes the
// new owner and updates the channel's owner_id as one unit. A failure
// leaves no partial role change observable.
func TransferOwnership(channelID, newOwnerID, currentOwnerID string) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		var ch Channel
		if err := tx.First(&ch, "id = ?", channelID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChannelNotFound
			}
			return err
		}
		if ch.OwnerID != currentOwnerID {
			return ErrNotOwner
		}

		var current, next Member
		if err := tx.First(&current, "channel_id = ? AND user_id = ?", channelID, currentOwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if err := tx.First(&next, "channel_id = ? AND user_id = ?", channelID, newOwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotMember
			}
			return err
		}

		if err := tx.Model(&current).Update("role", RoleAdmin).Error; err != nil {
			return err
		}
		if err := tx.Model(&next).Update("role", RoleOwner).Error; err != nil {
			return err
		}
		return tx.Model(&ch).Update("owner_id", newOwnerID).Error
	})
}

// InviteUserByUsername resolves the username, rejects existing members
// and inserts a member-role row. Each failure keeps its own identity
// so callers can show distinct reasons.
func InviteUserByUsername(channelID, username string) (*Member, error) {
	invited, err := user.GetByUsername(username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if _, err := GetMember(channelID, invited.ID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, ErrMemberNotFound) {
		return nil, fmt.Errorf("membership check failed: %w", err)
	}

	m := &Member{
		ChannelID: channelID,
		UserID:    invited.ID,
		Role:      RoleMember,
	}
	if err := db.DB.Create(m).Error; err != nil {
		if isDuplicateErr(err) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}
	return m, nil
}
