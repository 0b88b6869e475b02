package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkup/internal/microservices/http-api/models"
	"linkup/internal/microservices/http-api/repository"
	"linkup/internal/microservices/push"
)

type fakeNotificationRepo struct {
	mu        sync.Mutex
	created   []*models.Notification
	createErr error
	nextID    int64
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	n.ID = f.nextID
	n.CreatedAt = time.Now()
	f.created = append(f.created, n)
	return nil
}

func (f *fakeNotificationRepo) GetUnreadByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var unread []models.Notification
	for _, n := range f.created {
		if n.RecipientID == userID && !n.Read {
			unread = append(unread, *n)
		}
	}
	return unread, nil
}

func (f *fakeNotificationRepo) MarkAsRead(ctx context.Context, userID string, notificationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == notificationID && n.RecipientID == userID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (f *fakeNotificationRepo) MarkAllAsRead(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.RecipientID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) DeleteByID(ctx context.Context, userID string, notificationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.created {
		if n.ID == notificationID && n.RecipientID == userID {
			f.created = append(f.created[:i], f.created[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (f *fakeNotificationRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakePushDispatcher struct {
	mu     sync.Mutex
	calls  []string // recipient ids, in order
	report push.DispatchReport
	err    error
}

func (f *fakePushDispatcher) Dispatch(ctx context.Context, userID string, payload push.Payload) (push.DispatchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	return f.report, f.err
}

func (f *fakePushDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRealtime struct {
	mu     sync.Mutex
	events []string
	users  []string
}

func (f *fakeRealtime) SendToUser(userID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	f.events = append(f.events, event)
}

func TestNotify_PersistsAndDelivers(t *testing.T) {
	repo := &fakeNotificationRepo{}
	dispatcher := &fakePushDispatcher{report: push.DispatchReport{Attempted: 1, Succeeded: 1}}
	realtime := &fakeRealtime{}
	svc := NewNotificationService(repo, dispatcher, realtime)

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationNewMessage, "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, "recipient-1", n.RecipientID)
	assert.Equal(t, "sender-1", n.SenderID)
	assert.False(t, n.Read, "new notifications start unread")
	assert.Equal(t, 1, repo.count())

	// in-app delivery happens synchronously
	realtime.mu.Lock()
	assert.Equal(t, []string{"recipient-1"}, realtime.users)
	assert.Equal(t, []string{"notification"}, realtime.events)
	realtime.mu.Unlock()

	// push fan-out is detached, wait for it
	assert.Eventually(t, func() bool {
		return dispatcher.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "expected one detached dispatch")
}

func TestNotify_SelfNotificationSuppressed(t *testing.T) {
	repo := &fakeNotificationRepo{}
	dispatcher := &fakePushDispatcher{}
	svc := NewNotificationService(repo, dispatcher, &fakeRealtime{})

	n, err := svc.Notify(context.Background(), "user-1", "user-1", models.NotificationMention, "you mentioned yourself", nil)
	assert.NoError(t, err)
	assert.Nil(t, n, "self-notification must produce no record")
	assert.Equal(t, 0, repo.count())

	// give any stray goroutine a moment, then confirm nothing dispatched
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, dispatcher.callCount())
}

func TestNotify_UnknownTypeRejected(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, &fakePushDispatcher{}, &fakeRealtime{})

	_, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationType("SOMETHING_ELSE"), "x", nil)
	assert.ErrorIs(t, err, ErrUnknownNotificationType)
	assert.Equal(t, 0, repo.count())
}

func TestNotify_PersistErrorPropagated(t *testing.T) {
	repo := &fakeNotificationRepo{createErr: errors.New("db down")}
	dispatcher := &fakePushDispatcher{}
	svc := NewNotificationService(repo, dispatcher, &fakeRealtime{})

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationNewMessage, "hello", nil)
	assert.Error(t, err)
	assert.Nil(t, n)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, dispatcher.callCount(), "nothing may be delivered when persistence fails")
}

func TestNotify_DispatchFailureDoesNotAffectRecord(t *testing.T) {
	repo := &fakeNotificationRepo{}
	dispatcher := &fakePushDispatcher{err: errors.New("subscription store unavailable")}
	svc := NewNotificationService(repo, dispatcher, &fakeRealtime{})

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationMention, "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Eventually(t, func() bool {
		return dispatcher.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the record survives the failed fan-out and stays unread
	unread, err := svc.GetUnread(context.Background(), "recipient-1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.False(t, unread[0].Read)
}

func TestNotify_NilDispatcherSkipsPush(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, &fakeRealtime{})

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationGroupInvite, "join us", nil)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, 1, repo.count())
}

func TestNotify_RelatedRefStored(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil)

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationGroupInvite, "join us",
		&RelatedRef{ID: "group-9", Kind: "groups"})
	require.NoError(t, err)
	require.NotNil(t, n.RelatedID)
	require.NotNil(t, n.RelatedKind)
	assert.Equal(t, "group-9", *n.RelatedID)
	assert.Equal(t, "groups", *n.RelatedKind)
}

func TestMarkAsRead_OwnerScoped(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil)

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationNewMessage, "hello", nil)
	require.NoError(t, err)

	// another user cannot flip the flag
	err = svc.MarkAsRead(context.Background(), "intruder", n.ID)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)

	err = svc.MarkAsRead(context.Background(), "recipient-1", n.ID)
	assert.NoError(t, err)

	unread, err := svc.GetUnread(context.Background(), "recipient-1")
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestDelete_OwnerScoped(t *testing.T) {
	repo := &fakeNotificationRepo{}
	svc := NewNotificationService(repo, nil, nil)

	n, err := svc.Notify(context.Background(), "recipient-1", "sender-1", models.NotificationNewMessage, "hello", nil)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), "intruder", n.ID)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
	assert.Equal(t, 1, repo.count())

	err = svc.Delete(context.Background(), "recipient-1", n.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, repo.count())
}
