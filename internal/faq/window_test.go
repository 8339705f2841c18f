package faq

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/lorebot/lorebot/internal/discord"
	"github.com/lorebot/lorebot/internal/topics"
)

func TestExpandAroundShortFetchProbesEachSide(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]*discordgo.Message{
		// Short around batch, then the per-side probe results: nothing
		// earlier than m1, one more message after the anchor.
		{dmsg("m1", 1, "a"), dmsg("m2", 2, "b")},
		nil,
		{dmsg("m4", 4, "later")},
	}}
	window := NewMessageWindow(fetcher, dmsg("m3", 3, "anchor"))

	if err := window.Expand(context.Background(), discord.Around, 10); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	// The after probe's hit joins the window.
	if window.Len() != 4 {
		t.Errorf("window holds %d messages, want 4", window.Len())
	}
	if !window.EOFBefore() {
		t.Error("empty before-probe did not close earlier history")
	}
	if window.EOFAfter() {
		t.Error("later history closed although the after-probe returned a message")
	}

	wantCalls := []fetchCall{
		{anchorID: "m3", direction: discord.Around, limit: 10},
		{anchorID: "m1", direction: discord.Before, limit: 1},
		{anchorID: "m3", direction: discord.After, limit: 1},
	}
	if diff := cmp.Diff(wantCalls, fetcher.calls, cmp.AllowUnexported(fetchCall{})); diff != "" {
		t.Errorf("fetch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandAroundEmptyFetchClosesBothSides(t *testing.T) {
	fetcher := &fakeFetcher{}
	window := NewMessageWindow(fetcher, dmsg("m3", 3, "anchor"))

	if err := window.Expand(context.Background(), discord.Around, 10); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if !window.EOFBefore() || !window.EOFAfter() {
		t.Errorf("EOF before/after = %v/%v, want both true", window.EOFBefore(), window.EOFAfter())
	}
	// An empty around-fetch is already conclusive, no probes follow.
	if len(fetcher.calls) != 1 {
		t.Errorf("%d fetch calls, want just the around fetch", len(fetcher.calls))
	}
}

func TestExpandBeforeAnchorsAtEarliest(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]*discordgo.Message{
		{dmsg("m1", 1, "a"), dmsg("m2", 2, "b")},
		{dmsg("m0", 0, "older")},
	}}
	window := NewMessageWindow(fetcher, dmsg("m3", 3, "anchor"))

	if err := window.Expand(context.Background(), discord.Around, 2); err != nil {
		t.Fatalf("around expand failed: %v", err)
	}
	// A full batch leaves both sides open.
	if window.EOFBefore() || window.EOFAfter() {
		t.Fatalf("EOF marked after a full fetch")
	}

	if err := window.Expand(context.Background(), discord.Before, 5); err != nil {
		t.Fatalf("before expand failed: %v", err)
	}

	if got := fetcher.calls[1].anchorID; got != "m1" {
		t.Errorf("before-fetch anchored at %q, want earliest m1", got)
	}
	if !window.EOFBefore() {
		t.Error("short before-fetch did not mark earlier history exhausted")
	}
	if window.EOFAfter() {
		t.Error("before-fetch marked later history exhausted")
	}
}

func TestExpandAfterAnchorsAtLatest(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]*discordgo.Message{
		{dmsg("m4", 4, "later")},
	}}
	window := NewMessageWindow(fetcher, dmsg("m3", 3, "anchor"))

	if err := window.Expand(context.Background(), discord.After, 5); err != nil {
		t.Fatalf("after expand failed: %v", err)
	}

	if got := fetcher.calls[0].anchorID; got != "m3" {
		t.Errorf("after-fetch anchored at %q, want latest m3", got)
	}
	if !window.EOFAfter() || window.EOFBefore() {
		t.Errorf("EOF before/after = %v/%v, want only after", window.EOFBefore(), window.EOFAfter())
	}
}

func TestRemoveAndIDs(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]*discordgo.Message{
		{dmsg("m1", 1, "a"), dmsg("m4", 4, "d")},
	}}
	window := NewMessageWindow(fetcher, dmsg("m2", 2, "anchor"))
	if err := window.Expand(context.Background(), discord.Around, 2); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	window.Remove([]string{"m4", "never-seen"})

	want := []string{"m1", "m2"}
	if diff := cmp.Diff(want, window.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializedCarriesSentinels(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]*discordgo.Message{
		{dmsg("m1", 1, "first")},
	}}
	window := NewMessageWindow(fetcher, dmsg("m2", 2, "second"))
	if err := window.Expand(context.Background(), discord.Around, 10); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	serialized := window.Serialized()

	if !strings.HasPrefix(serialized, `<EOF side="before"/>`) {
		t.Errorf("serialized window does not open with the before sentinel:\n%s", serialized)
	}
	if !strings.HasSuffix(serialized, `<EOF side="after"/>`) {
		t.Errorf("serialized window does not close with the after sentinel:\n%s", serialized)
	}
	if strings.Index(serialized, "first") > strings.Index(serialized, "second") {
		t.Error("messages are not in timestamp order")
	}
}

func TestMergeSkipsKnownMessages(t *testing.T) {
	window := NewMessageWindow(&fakeFetcher{}, dmsg("m2", 2, "anchor"))

	window.Merge([]topics.Message{
		tmsg("m1", 1, "new"),
		{MessageID: "m2", Content: "stale copy", Timestamp: baseTime},
	})

	messages := window.Sorted()
	if len(messages) != 2 {
		t.Fatalf("window holds %d messages, want 2", len(messages))
	}
	for _, m := range messages {
		if m.MessageID == "m2" && m.Content != "anchor" {
			t.Errorf("existing message was overwritten: %q", m.Content)
		}
	}
}
