package conversations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/replay"
)

const testBotID = "bot-1"

type sentMessage struct {
	webhookID string
	username  string
	content   string
}

type fakeWebhookSession struct {
	mu       sync.Mutex
	existing []*discordgo.Webhook
	created  []*discordgo.Webhook
	deleted  []string
	sent     []sentMessage
	nextID   int
	sendErr  error

	failCreate bool
	// failCreateAfter fails every create once that many have succeeded.
	failCreateAfter int
}

func (f *fakeWebhookSession) ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hooks := make([]*discordgo.Webhook, len(f.existing))
	copy(hooks, f.existing)
	return hooks, nil
}

func (f *fakeWebhookSession) WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate || (f.failCreateAfter > 0 && len(f.created) >= f.failCreateAfter) {
		return nil, errors.New("missing permissions")
	}
	f.nextID++
	hook := &discordgo.Webhook{
		ID:        fmt.Sprintf("hook-%d", f.nextID),
		ChannelID: channelID,
		Name:      name,
		Token:     fmt.Sprintf("token-%d", f.nextID),
		User:      &discordgo.User{ID: testBotID},
	}
	f.created = append(f.created, hook)
	return hook, nil
}

func (f *fakeWebhookSession) WebhookDelete(webhookID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, webhookID)
	return nil
}

func (f *fakeWebhookSession) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{webhookID: webhookID, username: data.Username, content: data.Content})
	return &discordgo.Message{ID: fmt.Sprintf("msg-%d", len(f.sent))}, nil
}

func (f *fakeWebhookSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeWebhookSession) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.deleted))
	copy(ids, f.deleted)
	return ids
}

var testCatalog = map[string]Persona{
	"alice": {ID: "alice", DisplayName: "Alice", Description: "optimist"},
	"bob":   {ID: "bob", DisplayName: "Bob", Description: "skeptic"},
}

func testConversation() *Conversation {
	return &Conversation{
		Name:     "greeting",
		Personas: map[string]Persona{"alice": testCatalog["alice"], "bob": testCatalog["bob"]},
		Events: []Event{
			{PersonaID: "alice", Content: "one"},
			{PersonaID: "bob", Content: "two"},
			{PersonaID: "alice", Content: "three"},
		},
	}
}

func TestRunDeliversInOrder(t *testing.T) {
	session := &fakeWebhookSession{}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	var mu sync.Mutex
	var progress []replay.Progress
	var results []replay.Result

	handle, err := runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Delay:        replay.MinDelay,
		Catalog:      testCatalog,
		OnProgress: func(p replay.Progress) {
			mu.Lock()
			progress = append(progress, p)
			mu.Unlock()
		},
		OnFinish: func(r replay.Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := handle.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(progress) != 3 {
		t.Fatalf("got %d progress calls, want 3", len(progress))
	}
	for i, p := range progress {
		if p.Index != i+1 || p.Total != 3 {
			t.Errorf("progress[%d] = %d/%d, want %d/3", i, p.Index, p.Total, i+1)
		}
	}

	wantContents := []string{"one", "two", "three"}
	for i, msg := range session.sent {
		if msg.content != wantContents[i] {
			t.Errorf("sent[%d] = %q, want %q", i, msg.content, wantContents[i])
		}
	}
	if session.sent[0].username != "Alice" || session.sent[1].username != "Bob" {
		t.Errorf("unexpected send identities: %+v", session.sent)
	}

	if len(results) != 1 {
		t.Fatalf("onFinish called %d times, want once", len(results))
	}
	if !results[0].Completed || results[0].Err != nil {
		t.Errorf("result = %+v, want completed", results[0])
	}
}

func TestSecondStartHasNoSideEffects(t *testing.T) {
	session := &fakeWebhookSession{}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	handle, err := runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Delay:        time.Second,
		Catalog:      testCatalog,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	createdBefore := len(session.created)
	_, err = runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Catalog:      testCatalog,
	})
	var alreadyRunning *replay.AlreadyRunningError
	if !errors.As(err, &alreadyRunning) {
		t.Fatalf("second Start error = %v, want AlreadyRunningError", err)
	}
	if len(session.created) != createdBefore {
		t.Errorf("second Start created %d webhooks", len(session.created)-createdBefore)
	}

	runner.Cancel("chan")
	_ = handle.Wait()
}

func TestCancelStopsDelivery(t *testing.T) {
	session := &fakeWebhookSession{}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	var mu sync.Mutex
	var results []replay.Result
	firstSent := make(chan struct{}, 1)

	handle, err := runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Delay:        5 * time.Second,
		Catalog:      testCatalog,
		OnProgress: func(p replay.Progress) {
			if p.Index == 1 {
				firstSent <- struct{}{}
			}
		},
		OnFinish: func(r replay.Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-firstSent:
	case <-time.After(2 * time.Second):
		t.Fatal("first event never delivered")
	}

	if !runner.Cancel("chan") {
		t.Fatal("Cancel returned false for a live run")
	}
	if err := handle.Wait(); !errors.Is(err, replay.ErrRunCancelled) {
		t.Fatalf("Wait() = %v, want ErrRunCancelled", err)
	}

	if got := session.sentCount(); got != 1 {
		t.Errorf("%d events delivered after cancellation, want 1", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 {
		t.Fatalf("onFinish called %d times, want once", len(results))
	}
	if results[0].Completed || !errors.Is(results[0].Err, replay.ErrRunCancelled) {
		t.Errorf("result = %+v, want cancelled", results[0])
	}

	if runner.Running("chan") {
		t.Error("channel still reported running after cancellation settled")
	}
}

func TestWebhooksDeletedAfterRun(t *testing.T) {
	session := &fakeWebhookSession{}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	handle, err := runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Catalog:      testCatalog,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := handle.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	deleted := session.deletedIDs()
	if len(deleted) != len(session.created) {
		t.Fatalf("deleted %d webhooks, want %d", len(deleted), len(session.created))
	}
}

func TestPrepareReusesAndPrunes(t *testing.T) {
	session := &fakeWebhookSession{
		existing: []*discordgo.Webhook{
			// Reusable persona webhook.
			{ID: "keep-alice", Name: "Alice", Token: "t1", User: &discordgo.User{ID: testBotID}},
			// Duplicate of the same persona.
			{ID: "dup-alice", Name: "Alice", Token: "t2", User: &discordgo.User{ID: testBotID}},
			// Bot-owned webhook matching no catalog persona.
			{ID: "stray", Name: "Mystery", Token: "t3", User: &discordgo.User{ID: testBotID}},
			// Someone else's webhook, left alone.
			{ID: "foreign", Name: "Alice", Token: "t4", User: &discordgo.User{ID: "other-bot"}},
		},
	}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	conv := &Conversation{
		Name:     "solo",
		Personas: map[string]Persona{"alice": testCatalog["alice"], "bob": testCatalog["bob"]},
		Events:   []Event{{PersonaID: "alice", Content: "hi"}},
	}

	handle, err := runner.Start(context.Background(), RunOptions{
		Conversation: conv,
		ChannelID:    "chan",
		Catalog:      testCatalog,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := handle.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Only Bob needed a fresh webhook; Alice's was reused.
	if len(session.created) != 1 || session.created[0].Name != "Bob" {
		t.Errorf("created = %+v, want a single webhook for Bob", session.created)
	}

	deleted := map[string]bool{}
	for _, id := range session.deletedIDs() {
		deleted[id] = true
	}
	for _, id := range []string{"dup-alice", "stray", "keep-alice", session.created[0].ID} {
		if !deleted[id] {
			t.Errorf("webhook %s was not deleted", id)
		}
	}
	if deleted["foreign"] {
		t.Error("foreign webhook was deleted")
	}
}

func TestProvisioningFailureReleasesChannel(t *testing.T) {
	session := &fakeWebhookSession{failCreate: true}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	_, err := runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Catalog:      testCatalog,
	})
	if err == nil {
		t.Fatal("Start unexpectedly succeeded")
	}

	if session.sentCount() != 0 {
		t.Error("messages were sent despite provisioning failure")
	}
	if runner.Running("chan") {
		t.Error("channel still reserved after provisioning failure")
	}
}

func TestProvisioningFailureDeletesCreatedWebhooks(t *testing.T) {
	session := &fakeWebhookSession{failCreateAfter: 1}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	_, err := runner.Start(context.Background(), RunOptions{
		Conversation: testConversation(),
		ChannelID:    "chan",
		Catalog:      testCatalog,
	})
	if err == nil {
		t.Fatal("Start unexpectedly succeeded")
	}

	if len(session.created) != 1 {
		t.Fatalf("created %d webhooks before the failure, want 1", len(session.created))
	}
	deleted := session.deletedIDs()
	if len(deleted) != 1 || deleted[0] != session.created[0].ID {
		t.Errorf("deleted = %v, want the webhook created before the failure", deleted)
	}
	if runner.Running("chan") {
		t.Error("channel still reserved after provisioning failure")
	}
}

func TestFinishCallbackPanicStillCleansUp(t *testing.T) {
	session := &fakeWebhookSession{}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)

	conv := &Conversation{
		Name:     "solo",
		Personas: map[string]Persona{"alice": testCatalog["alice"]},
		Events:   []Event{{PersonaID: "alice", Content: "hi"}},
	}

	handle, err := runner.Start(context.Background(), RunOptions{
		Conversation: conv,
		ChannelID:    "chan",
		Catalog:      testCatalog,
		OnFinish:     func(replay.Result) { panic("listener bug") },
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := handle.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(session.deletedIDs()) == 0 {
		t.Error("webhooks not cleaned up after panicking finish callback")
	}
	if runner.Running("chan") {
		t.Error("channel still reserved after panicking finish callback")
	}
}
