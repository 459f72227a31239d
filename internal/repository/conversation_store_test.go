package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"whatsjuju-chat/backend/internal/models"
	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seed(t *testing.T, db *gorm.DB) (userID uint, goku, vegeta models.Character) {
	t.Helper()
	user := models.User{Username: "ana", Email: "ana@whatsjuju.local", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	chars := repository.NewGormCharacterRepository(db)
	n, err := repository.SeedCharacters(context.Background(), chars, false)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	g, err := chars.FindBySlug(context.Background(), "goku")
	require.NoError(t, err)
	v, err := chars.FindBySlug(context.Background(), "vegeta")
	require.NoError(t, err)
	return user.ID, *g, *v
}

func welcome(content string) models.NewMessage {
	return models.NewMessage{SenderType: models.SenderCharacter, Kind: models.KindText, Content: content}
}

func TestStartConversationIsIdempotent(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	first, created, err := store.StartConversation(ctx, userID, goku.ID, "Conversa com Goku", welcome("Oi!"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Oi!", first.LastMessage)

	second, created, err := store.StartConversation(ctx, userID, goku.ID, "Conversa com Goku", welcome("Oi!"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	msgs, err := store.ListMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderCharacter, msgs[0].SenderType)
	assert.Len(t, msgs[0].ExternalID, 26)
}

func TestActiveIndexRejectsSecondOpenConversation(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	_, err := store.CreateConversation(ctx, userID, goku.ID, "a")
	require.NoError(t, err)
	_, err = store.CreateConversation(ctx, userID, goku.ID, "b")
	assert.Error(t, err)
}

func TestOwnershipIsCheckedInQueries(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	conv, _, err := store.StartConversation(ctx, userID, goku.ID, "t", welcome("Oi!"))
	require.NoError(t, err)

	_, err = store.FindConversation(ctx, userID+1, conv.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	deleted, err := store.DeleteConversationCascade(ctx, userID+1, conv.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	msgs, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	_, err = store.DeleteMessage(ctx, userID+1, msgs[0].ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := store.UpdateConversation(ctx, userID+1, conv.ID, models.ConversationUpdate{IsPinned: ptr(true)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessagesKeepAppendOrder(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	conv, _, err := store.StartConversation(ctx, userID, goku.ID, "t", welcome("w"))
	require.NoError(t, err)

	for _, content := range []string{"um", "dois", "tres"} {
		_, err := store.AppendMessage(ctx, models.NewMessage{
			ConversationID: conv.ID,
			SenderType:     models.SenderUser,
			SenderID:       userID,
			Content:        content,
		})
		require.NoError(t, err)
	}

	msgs, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	contents := make([]string, 0, len(msgs))
	for i, m := range msgs {
		contents = append(contents, m.Content)
		if i > 0 {
			assert.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
	assert.Equal(t, []string{"w", "um", "dois", "tres"}, contents)
	assert.Equal(t, models.KindText, msgs[1].Kind)

	recent, err := store.RecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "tres", recent[0].Content)
	assert.Equal(t, "dois", recent[1].Content)
}

func TestDeleteConversationCascade(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	conv, _, err := store.StartConversation(ctx, userID, goku.ID, "t", welcome("w"))
	require.NoError(t, err)

	deleted, err := store.DeleteConversationCascade(ctx, userID, conv.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.FindConversation(ctx, userID, conv.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListConversationsOrderAndArchive(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, vegeta := seed(t, db)

	g, _, err := store.StartConversation(ctx, userID, goku.ID, "g", welcome("w"))
	require.NoError(t, err)
	v, _, err := store.StartConversation(ctx, userID, vegeta.ID, "v", welcome("w"))
	require.NoError(t, err)

	require.NoError(t, store.UpdateConversationSummary(ctx, g.ID, "novo", time.Now().Add(time.Minute)))

	views, err := store.ListConversations(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, g.ID, views[0].ID)
	assert.Equal(t, "goku", views[0].Character.Slug)
	assert.Equal(t, "novo", views[0].LastMessage)

	ok, err := store.UpdateConversation(ctx, userID, v.ID, models.ConversationUpdate{IsArchived: ptr(true)})
	require.NoError(t, err)
	assert.True(t, ok)

	views, err = store.ListConversations(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, g.ID, views[0].ID)

	// archiving frees the pair for a new conversation
	again, created, err := store.StartConversation(ctx, userID, vegeta.ID, "v2", welcome("w"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, v.ID, again.ID)
}

func TestClearConversations(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, vegeta := seed(t, db)

	_, _, err := store.StartConversation(ctx, userID, goku.ID, "g", welcome("w"))
	require.NoError(t, err)
	_, _, err = store.StartConversation(ctx, userID, vegeta.ID, "v", welcome("w"))
	require.NoError(t, err)

	ids, err := store.ClearConversations(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	views, err := store.ListConversations(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, views)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSettingsUpsert(t *testing.T) {
	db := testdb.Open(t)
	repo := repository.NewGormSettingRepository(db)
	ctx := context.Background()

	_, found, err := repo.Get(ctx, models.SettingOpenAIKey)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Set(ctx, models.SettingOpenAIKey, "sk-1"))
	require.NoError(t, repo.Set(ctx, models.SettingOpenAIKey, "sk-2"))

	value, found, err := repo.Get(ctx, models.SettingOpenAIKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sk-2", value)
}

func TestUserFindByLogin(t *testing.T) {
	db := testdb.Open(t)
	repo := repository.NewGormUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "bia", Email: "bia@x.com", Password: "h"}))

	byName, err := repo.FindByLogin(ctx, "bia")
	require.NoError(t, err)
	byEmail, err := repo.FindByLogin(ctx, "bia@x.com")
	require.NoError(t, err)
	assert.Equal(t, byName.ID, byEmail.ID)

	exists, err := repo.Exists(ctx, "other", "bia@x.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.FindByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }

func TestStartConversationConcurrentWriters(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	const writers = 8
	ids := make([]uint, writers)
	created := make([]bool, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, fresh, err := store.StartConversation(ctx, userID, goku.ID, "t", welcome("w"))
			if assert.NoError(t, err) {
				ids[i] = conv.ID
				created[i] = fresh
			}
		}(i)
	}
	wg.Wait()

	n := 0
	for i, id := range ids {
		assert.Equal(t, ids[0], id)
		if created[i] {
			n++
		}
	}
	assert.Equal(t, 1, n)

	msgs, err := store.ListMessages(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestAppendMessageRequiresConversation(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, _ := seed(t, db)

	conv, _, err := store.StartConversation(ctx, userID, goku.ID, "t", welcome("w"))
	require.NoError(t, err)
	deleted, err := store.DeleteConversationCascade(ctx, userID, conv.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.AppendMessage(ctx, models.NewMessage{
		ConversationID: conv.ID,
		SenderType:     models.SenderUser,
		SenderID:       userID,
		Content:        "oi",
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	msgs, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationIDsIncludesArchived(t *testing.T) {
	db := testdb.Open(t)
	store := repository.NewGormConversationStore(db)
	ctx := context.Background()
	userID, goku, vegeta := seed(t, db)

	first, _, err := store.StartConversation(ctx, userID, goku.ID, "t", welcome("w"))
	require.NoError(t, err)
	second, _, err := store.StartConversation(ctx, userID, vegeta.ID, "t", welcome("w"))
	require.NoError(t, err)
	ok, err := store.UpdateConversation(ctx, userID, first.ID, models.ConversationUpdate{IsArchived: ptr(true)})
	require.NoError(t, err)
	require.True(t, ok)

	ids, err := store.ConversationIDs(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, second.ID}, ids)

	ids, err = store.ConversationIDs(ctx, userID+100)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
