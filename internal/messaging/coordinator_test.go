package messaging_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/storage/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, store *memstore.Store, a, b string) *models.ChatSession {
	t.Helper()
	lo, hi := models.SortPair(a, b)
	cs := &models.ChatSession{ID: "s-" + lo + "-" + hi, PairKey: models.PairKey(a, b), User1ID: lo, User2ID: hi}
	created, err := store.CreateSessionIfAbsent(context.Background(), cs)
	require.NoError(t, err)
	require.True(t, created)
	return cs
}

func TestAppend_TrimsAndSequences(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)
	ctx := context.Background()

	first, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "  hi  "})
	require.NoError(t, err)
	second, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "B", Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "hi", first.Text)
	assert.EqualValues(t, 1, first.Seq)
	assert.EqualValues(t, 2, second.Seq)
	assert.Equal(t, "A", first.SenderID)
	assert.False(t, first.CreatedAt.IsZero())
}

func TestAppend_Rejections(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store, messaging.WithMaxLength(5))
	ctx := context.Background()

	_, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "C", Text: "hi"})
	assert.ErrorIs(t, err, common.ErrInvalidSender)

	_, err = c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: " \t\n "})
	assert.ErrorIs(t, err, common.ErrEmptyMessage)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "toolong"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	// Five runes, more bytes.
	_, err = c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "привіт"[:10]})
	assert.NoError(t, err)

	_, err = c.Append(ctx, messaging.AppendInput{SessionID: "nope", SenderID: "A", Text: "hi"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	history, err := c.History(ctx, cs.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAppend_ClientTokenDeduplicates(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)
	ctx := context.Background()

	in := messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "once", ClientToken: "tok-1"}
	first, err := c.Append(ctx, in)
	require.NoError(t, err)
	again, err := c.Append(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Seq, again.Seq)
	history, err := c.History(ctx, cs.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAppend_StoreUnavailable(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	store.Unavailable = func() bool { return true }

	_, err := messaging.NewCoordinator(store).Append(context.Background(),
		messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "hi"})
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestHistory_Pages(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store, messaging.WithPageSize(2))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	page, err := c.History(ctx, cs.ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.EqualValues(t, 3, page[0].Seq)
	assert.EqualValues(t, 4, page[1].Seq)

	_, err = c.History(ctx, "missing", 0)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func collect(t *testing.T, sub *messaging.Subscription, n int) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case m, ok := <-sub.Messages():
			require.True(t, ok, "stream ended after %d messages: %v", len(out), sub.Err())
			out = append(out, m)
		case <-timeout:
			t.Fatalf("got %d of %d messages", len(out), n)
		}
	}
	return out
}

func TestSubscribe_BackfillThenLive(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store, messaging.WithPageSize(2))
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: text})
		require.NoError(t, err)
	}

	sub, err := c.Subscribe(ctx, cs.ID)
	require.NoError(t, err)
	defer sub.Close()

	_, err = c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "B", Text: "four"})
	require.NoError(t, err)

	got := collect(t, sub, 4)
	texts := make([]string, 0, len(got))
	for i, m := range got {
		assert.EqualValues(t, i+1, m.Seq)
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, texts)
}

func TestSubscribe_ConcurrentSendersObservedInOrder(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, cs.ID)
	require.NoError(t, err)
	defer sub.Close()

	const perSender = 50
	var wg sync.WaitGroup
	for _, sender := range []string{"A", "B"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: sender, Text: fmt.Sprintf("%s-%d", sender, i)})
				assert.NoError(t, err)
			}
		}(sender)
	}

	got := collect(t, sub, 2*perSender)
	wg.Wait()

	seen := make(map[string]bool, len(got))
	for i, m := range got {
		assert.EqualValues(t, i+1, m.Seq)
		assert.False(t, seen[m.ID], "duplicate %s", m.ID)
		seen[m.ID] = true
	}
	assert.Len(t, seen, 2*perSender)
}

func TestSubscribe_StalledReaderDoesNotBlockSenders(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, cs.ID)
	require.NoError(t, err)
	defer sub.Close()

	n := 3*config.SubscriptionBuffer + 5
	sent := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if _, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: fmt.Sprint(i)}); err != nil {
				sent <- err
				return
			}
		}
		sent <- nil
	}()

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("senders blocked behind a subscriber that is not reading")
	}

	// Messages dropped while the reader stalled come back from the store
	// once the next commit exposes the gap.
	var got []models.Message
	nudged := false
	deadline := time.After(5 * time.Second)
	for len(got) < n+1 {
		select {
		case m, ok := <-sub.Messages():
			require.True(t, ok, "stream ended after %d messages: %v", len(got), sub.Err())
			got = append(got, m)
		case <-time.After(100 * time.Millisecond):
			if !nudged {
				_, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "B", Text: "last"})
				require.NoError(t, err)
				nudged = true
			}
		case <-deadline:
			t.Fatalf("got %d of %d messages", len(got), n+1)
		}
	}
	for i, m := range got {
		assert.EqualValues(t, i+1, m.Seq)
	}
	assert.Equal(t, "last", got[n].Text)
}

func TestSubscribe_CloseReleasesWatch(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)

	sub, err := c.Subscribe(context.Background(), cs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.WatcherCount(cs.ID))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, store.WatcherCount(cs.ID))
	_, open := <-sub.Messages()
	assert.False(t, open)
	assert.NoError(t, sub.Err())

	// Later appends reach nobody and do not block.
	_, err = c.Append(context.Background(), messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "after"})
	assert.NoError(t, err)
}

func TestSubscribe_ContextEndsStream(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := c.Subscribe(ctx, cs.ID)
	require.NoError(t, err)
	cancel()

	select {
	case _, open := <-sub.Messages():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end")
	}
	sub.Close()
	assert.Equal(t, 0, store.WatcherCount(cs.ID))
}

func TestSubscribe_UnknownSession(t *testing.T) {
	_, err := messaging.NewCoordinator(memstore.New()).Subscribe(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAppend_LongUnicodeWithinLimit(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)

	text := strings.Repeat("ї", 2000)
	_, err := c.Append(context.Background(), messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: text})
	assert.NoError(t, err)

	_, err = c.Append(context.Background(), messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: text + "ї"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestAppend_InvalidSenderLeavesCountUnchanged(t *testing.T) {
	store := memstore.New()
	cs := newSession(t, store, "A", "B")
	c := messaging.NewCoordinator(store)
	ctx := context.Background()
	_, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "B", Text: "first"})
	require.NoError(t, err)

	_, err = c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "C", Text: "sneaky"})
	require.ErrorIs(t, err, common.ErrInvalidSender)

	history, err := c.History(ctx, cs.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Text)

	next, err := c.Append(ctx, messaging.AppendInput{SessionID: cs.ID, SenderID: "A", Text: "second"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.Seq)
}
