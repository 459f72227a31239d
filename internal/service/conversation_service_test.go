package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"whatsjuju-chat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestConversationUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, err := f.chat(nil, 10).StartConversation(ctx, f.alice, f.goku.ID)
	require.NoError(t, err)
	id := start.Conversation.ID
	svc := f.conversations()

	_, err = svc.Update(ctx, f.alice, id, models.ConversationUpdate{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, MsgNothingToUpdate)

	conv, err := svc.Update(ctx, f.alice, id, models.ConversationUpdate{
		Title:    ptr("  <b>Treino</b>  "),
		IsPinned: ptr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;Treino&lt;/b&gt;", conv.Title)
	assert.True(t, conv.IsPinned)

	long, err := svc.Update(ctx, f.alice, id, models.ConversationUpdate{Title: ptr(strings.Repeat("ç", 300))})
	require.NoError(t, err)
	assert.Equal(t, 255, len([]rune(long.Title)))

	_, err = svc.Update(ctx, f.bob, id, models.ConversationUpdate{IsArchived: ptr(true)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, err := f.chat(nil, 10).StartConversation(ctx, f.alice, f.goku.ID)
	require.NoError(t, err)
	svc := f.conversations()

	detail, err := svc.Get(ctx, f.alice, start.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "goku", detail.Character.Slug)
	assert.NotEmpty(t, detail.Character.Personality)

	_, err = svc.Get(ctx, f.bob, start.Conversation.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	views, err := svc.List(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Goku", views[0].Character.Name)

	views, err = svc.List(ctx, f.bob)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestConversationDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.chat(nil, 10)
	start, err := chat.StartConversation(ctx, f.alice, f.goku.ID)
	require.NoError(t, err)
	_, err = chat.SendMessage(ctx, f.alice, start.Conversation.ID, "oi")
	require.NoError(t, err)
	svc := f.conversations()

	assert.ErrorIs(t, svc.Delete(ctx, f.bob, start.Conversation.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, f.alice, start.Conversation.ID))

	_, err = svc.Messages(ctx, f.alice, start.Conversation.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, f.alice, start.Conversation.ID), ErrNotFound)

	msgs, err := f.store.ListMessages(ctx, start.Conversation.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConversationClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.chat(nil, 10)
	vegeta, err := f.characters.FindBySlug(ctx, "vegeta")
	require.NoError(t, err)

	for _, id := range []uint{f.goku.ID, vegeta.ID} {
		_, err := chat.StartConversation(ctx, f.alice, id)
		require.NoError(t, err)
	}
	_, err = chat.StartConversation(ctx, f.bob, f.goku.ID)
	require.NoError(t, err)

	n, err := f.conversations().Clear(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	views, err := f.conversations().List(ctx, f.bob)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestConversationClearWaitsForConversationLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, err := f.chat(nil, 10).StartConversation(ctx, f.alice, f.goku.ID)
	require.NoError(t, err)

	unlock := f.locks.Lock(conversationKey(start.Conversation.ID))
	done := make(chan int, 1)
	go func() {
		n, err := f.conversations().Clear(ctx, f.alice)
		assert.NoError(t, err)
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("clear finished while the conversation was locked")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("clear did not finish after the lock was released")
	}
}

func TestDeleteMessageRemovesStoredFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := f.chat(nil, 10)
	start, err := chat.StartConversation(ctx, f.alice, f.goku.ID)
	require.NoError(t, err)

	res, err := chat.UploadMedia(ctx, f.alice, start.Conversation.ID, pngUpload(""))
	require.NoError(t, err)
	onDisk := filepath.Join(filepath.Dir(f.uploader.Root()), filepath.FromSlash(res.UserMessage.FilePath))

	svc := f.conversations()
	err = svc.DeleteMessage(ctx, f.bob, res.UserMessage.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, MsgMessageNotFound)

	require.NoError(t, svc.DeleteMessage(ctx, f.alice, res.UserMessage.ID))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	msgs, err := svc.Messages(ctx, f.alice, start.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
