package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"social-chat-service/internal/models"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGet(ctx context.Context, userID, otherUserID int) (models.Conversation, bool, error) {
	args := m.Called(ctx, userID, otherUserID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Bool(1), args.Error(2)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content, replyToID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListForConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) Set(ctx context.Context, userID int, state string, lastSeen time.Time) error {
	args := m.Called(ctx, userID, state, lastSeen)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) Get(ctx context.Context, userID int) (models.Presence, error) {
	args := m.Called(ctx, userID)
	var presence models.Presence
	if val := args.Get(0); val != nil {
		presence = val.(models.Presence)
	}
	return presence, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetPreview(ctx context.Context, userID int) (models.UserPreview, error) {
	args := m.Called(ctx, userID)
	var preview models.UserPreview
	if val := args.Get(0); val != nil {
		preview = val.(models.UserPreview)
	}
	return preview, args.Error(1)
}

func (m *UserRepositoryMock) BulkPreviews(ctx context.Context, userIDs []int) (map[int]models.UserPreview, error) {
	args := m.Called(ctx, userIDs)
	var previews map[int]models.UserPreview
	if val := args.Get(0); val != nil {
		previews = val.(map[int]models.UserPreview)
	}
	return previews, args.Error(1)
}

type TokenAuthenticatorMock struct {
	mock.Mock
}

func (m *TokenAuthenticatorMock) Authenticate(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) ToRoom(conversationID int, event models.ServerEvent) {
	m.Called(conversationID, event)
}
