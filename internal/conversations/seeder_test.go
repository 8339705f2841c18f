package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/replay"
)

type fakeGuildSession struct {
	channels []*discordgo.Channel
	created  []string
}

func (f *fakeGuildSession) GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	return f.channels, nil
}

func (f *fakeGuildSession) GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.created = append(f.created, name)
	channel := &discordgo.Channel{ID: "chan-" + name, Name: name, Type: ctype}
	f.channels = append(f.channels, channel)
	return channel, nil
}

type fakeMessageFetcher struct {
	fetched []string
}

func (f *fakeMessageFetcher) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	f.fetched = append(f.fetched, messageID)
	return &discordgo.Message{ID: messageID, ChannelID: channelID, Content: "refetched"}, nil
}

type fakeRecorder struct {
	recorded []string
	err      error
}

func (f *fakeRecorder) Record(ctx context.Context, message *discordgo.Message, status func(string)) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, message.ID)
	return nil
}

func newTestSeeder(t *testing.T, manifest string) (*Seeder, *fakeGuildSession, *fakeMessageFetcher, *fakeRecorder) {
	t.Helper()
	loader, dir := newTestLoader(t)
	writeFile(t, dir, "greeting.json", `{
	  "events": [
	    {"personaId": "alice", "content": "hi"},
	    {"personaId": "bob", "content": "hello"}
	  ]
	}`)
	if manifest != "" {
		writeFile(t, dir, "seed.manifest.json", manifest)
	}

	session := &fakeWebhookSession{}
	runner := NewRunner(session, replay.NewRegistry(), testBotID, nil)
	guilds := &fakeGuildSession{}
	fetcher := &fakeMessageFetcher{}
	recorder := &fakeRecorder{}

	return NewSeeder(loader, runner, guilds, fetcher, recorder, 0, nil), guilds, fetcher, recorder
}

func TestSeedReplaysAndRecords(t *testing.T) {
	seeder, guilds, fetcher, recorder := newTestSeeder(t,
		`[{"name": "greeting", "channel": "General", "recordMessages": [2]}]`)

	report, err := seeder.Seed(context.Background(), "g1", SeedOptions{Record: true})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if report.Seeded != 1 || report.Total != 1 {
		t.Errorf("seeded %d/%d, want 1/1", report.Seeded, report.Total)
	}
	// Channel names are normalized to Discord's lowercase form.
	if len(guilds.created) != 1 || guilds.created[0] != "general" {
		t.Errorf("created channels = %v, want [general]", guilds.created)
	}

	// The second event was queued, refetched, and recorded.
	if report.Queued != 1 || report.Recorded != 1 {
		t.Errorf("recorded %d/%d, want 1/1", report.Recorded, report.Queued)
	}
	if len(fetcher.fetched) != 1 {
		t.Fatalf("refetched %d messages, want 1", len(fetcher.fetched))
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0] != fetcher.fetched[0] {
		t.Errorf("recorded %v, want the refetched message", recorder.recorded)
	}
	if len(report.Failures) != 0 {
		t.Errorf("unexpected failures: %v", report.Failures)
	}
}

func TestSeedReusesExistingChannel(t *testing.T) {
	seeder, guilds, _, _ := newTestSeeder(t,
		`[{"name": "greeting", "channel": "General"}]`)
	guilds.channels = []*discordgo.Channel{
		{ID: "existing", Name: "general", Type: discordgo.ChannelTypeGuildText},
	}

	report, err := seeder.Seed(context.Background(), "g1", SeedOptions{})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if report.Seeded != 1 {
		t.Errorf("seeded %d, want 1", report.Seeded)
	}
	if len(guilds.created) != 0 {
		t.Errorf("created %v despite an existing channel", guilds.created)
	}
}

func TestSeedEmptyManifest(t *testing.T) {
	seeder, _, _, _ := newTestSeeder(t, "")

	_, err := seeder.Seed(context.Background(), "g1", SeedOptions{})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Seed error = %v, want ValidationError", err)
	}
}

func TestSeedCollectsEntryFailures(t *testing.T) {
	seeder, _, _, _ := newTestSeeder(t,
		`[{"name": "absent", "channel": "general"}, {"name": "greeting", "channel": "general"}]`)

	report, err := seeder.Seed(context.Background(), "g1", SeedOptions{})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if report.Seeded != 1 || report.Total != 2 {
		t.Errorf("seeded %d/%d, want 1/2", report.Seeded, report.Total)
	}
	if len(report.Failures) != 1 || !strings.Contains(report.Failures[0], "absent") {
		t.Errorf("failures = %v", report.Failures)
	}
}

func TestSeedReportSummaryTruncatesWarnings(t *testing.T) {
	report := &SeedReport{Seeded: 3, Total: 5, Queued: 2, Recorded: 1}
	for i := 0; i < 15; i++ {
		report.Failures = append(report.Failures, fmt.Sprintf("failure %d", i))
	}

	summary := report.Summary()

	if !strings.Contains(summary, "Seeded 3/5 conversations.") {
		t.Errorf("summary lacks the seed count:\n%s", summary)
	}
	if !strings.Contains(summary, "Recorded 1/2 configured messages.") {
		t.Errorf("summary lacks the record count:\n%s", summary)
	}
	// Only the last ten warnings survive.
	if strings.Contains(summary, "failure 4") || !strings.Contains(summary, "failure 5") || !strings.Contains(summary, "failure 14") {
		t.Errorf("warning truncation is off:\n%s", summary)
	}
}
