package conversations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// GuildSession is the subset of *discordgo.Session the seeder uses to resolve
// target channels.
type GuildSession interface {
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// MessageFetcher fetches a delivered message by id for the recording pass.
type MessageFetcher interface {
	Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
}

// TopicRecorder runs the topic recording workflow against a seeded message.
type TopicRecorder interface {
	Record(ctx context.Context, message *discordgo.Message, status func(string)) error
}

// SeedOptions configures one seeding pass over the manifest.
type SeedOptions struct {
	// Record enables the recording pass over manifest-configured messages.
	Record bool

	// Delay overrides the inter-message delay for entries that do not set
	// their own. Zero means the seeder default.
	Delay time.Duration

	RequestedBy string

	// Status receives human-readable progress lines; nil disables reporting.
	Status func(string)
}

// SeedReport summarizes a seeding pass.
type SeedReport struct {
	Seeded   int
	Total    int
	Recorded int
	Queued   int
	Failures []string
}

// Summary renders the report the way the status channel shows it.
func (r *SeedReport) Summary() string {
	lines := []string{fmt.Sprintf("Seeded %d/%d conversations.", r.Seeded, r.Total)}
	if r.Queued > 0 {
		lines = append(lines, fmt.Sprintf("Recorded %d/%d configured messages.", r.Recorded, r.Queued))
	}
	if len(r.Failures) > 0 {
		warnings := r.Failures
		if len(warnings) > 10 {
			warnings = warnings[len(warnings)-10:]
		}
		lines = append(lines, "Warnings:")
		for _, failure := range warnings {
			lines = append(lines, "- "+failure)
		}
	}
	return strings.Join(lines, "\n")
}

// recordTarget is one seeded message queued for the recording pass.
type recordTarget struct {
	conversation string
	eventIndex   int
	channelID    string
	messageID    string
}

// Seeder replays every manifest conversation into its configured channel and
// optionally runs the topic recording workflow over selected messages.
type Seeder struct {
	loader       *Loader
	runner       *Runner
	guilds       GuildSession
	messages     MessageFetcher
	recorder     TopicRecorder
	defaultDelay time.Duration
	logger       *slog.Logger
}

// NewSeeder creates a seeder. recorder may be nil when recording is disabled.
func NewSeeder(loader *Loader, runner *Runner, guilds GuildSession, messages MessageFetcher, recorder TopicRecorder, defaultDelay time.Duration, logger *slog.Logger) *Seeder {
	if defaultDelay <= 0 {
		defaultDelay = 1200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		loader:       loader,
		runner:       runner,
		guilds:       guilds,
		messages:     messages,
		recorder:     recorder,
		defaultDelay: defaultDelay,
		logger:       logger,
	}
}

// Seed runs the manifest against the guild. Per-entry failures are collected
// into the report rather than aborting the pass.
func (s *Seeder) Seed(ctx context.Context, guildID string, opts SeedOptions) (*SeedReport, error) {
	manifest, err := LoadManifest(s.loader.dir)
	if err != nil {
		return nil, err
	}
	if len(manifest) == 0 {
		return nil, validationErrorf("conversation manifest is empty")
	}

	catalog, err := s.loader.PersonaMap()
	if err != nil {
		return nil, err
	}

	report := &SeedReport{Total: len(manifest)}
	status := opts.Status
	if status == nil {
		status = func(string) {}
	}

	var queue []recordTarget
	for _, entry := range manifest {
		if err := s.seedEntry(ctx, guildID, entry, opts, catalog, report, &queue, status); err != nil {
			s.logger.Error("failed to seed conversation", "conversation", entry.Name, "error", err)
			report.Failures = append(report.Failures, fmt.Sprintf("Seed: %s (%v)", entry.Name, err))
		}
	}

	if opts.Record && s.recorder != nil && len(queue) > 0 {
		report.Queued = len(queue)
		status(fmt.Sprintf("Seeded %d/%d conversations.\nStarting recording for %d message(s)...", report.Seeded, report.Total, len(queue)))
		s.recordQueued(ctx, queue, report, status)
	}

	return report, nil
}

func (s *Seeder) seedEntry(ctx context.Context, guildID string, entry ManifestEntry, opts SeedOptions, catalog map[string]Persona, report *SeedReport, queue *[]recordTarget, status func(string)) error {
	channel, err := s.ensureTextChannel(ctx, guildID, entry.Channel)
	if err != nil {
		return err
	}
	status(fmt.Sprintf("Seeding **%s** in <#%s> (%d/%d)...", entry.Name, channel.ID, report.Seeded, report.Total))

	conv, err := s.loader.Load(entry.Name)
	if err != nil {
		return err
	}

	delay := s.defaultDelay
	if opts.Delay > 0 {
		delay = opts.Delay
	}
	if entry.DelayMs > 0 {
		delay = time.Duration(entry.DelayMs) * time.Millisecond
	}

	targets := make(map[int]bool)
	if opts.Record {
		for _, index := range entry.RecordMessages {
			targets[index] = true
		}
	}

	runOpts := RunOptions{
		Conversation: conv,
		ChannelID:    channel.ID,
		Delay:        delay,
		RequestedBy:  opts.RequestedBy,
		Catalog:      catalog,
	}
	if len(targets) > 0 {
		name := entry.Name
		channelID := channel.ID
		runOpts.OnMessage = func(eventIndex int, _ Event, message *discordgo.Message) {
			if !targets[eventIndex] {
				return
			}
			*queue = append(*queue, recordTarget{
				conversation: name,
				eventIndex:   eventIndex,
				channelID:    channelID,
				messageID:    message.ID,
			})
		}
	}

	handle, err := s.runner.Start(ctx, runOpts)
	if err != nil {
		return err
	}
	if err := handle.Wait(); err != nil {
		return err
	}

	report.Seeded++
	return nil
}

func (s *Seeder) recordQueued(ctx context.Context, queue []recordTarget, report *SeedReport, status func(string)) {
	for _, target := range queue {
		label := fmt.Sprintf("Recording %d/%d: **%s** (event #%d)", report.Recorded+1, len(queue), target.conversation, target.eventIndex)
		status(label + "...")

		message, err := s.messages.Message(ctx, target.channelID, target.messageID)
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("Record: %s event #%d: %v", target.conversation, target.eventIndex, err))
			continue
		}

		err = s.recorder.Record(ctx, message, func(step string) {
			status(label + "\n" + step)
		})
		if err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("Record: %s event #%d: %v", target.conversation, target.eventIndex, err))
			continue
		}

		report.Recorded++
	}
}

// ensureTextChannel finds the guild text channel with the given name, creating
// it when absent. Channel names are matched lowercased, the way Discord
// normalizes them.
func (s *Seeder) ensureTextChannel(ctx context.Context, guildID, name string) (*discordgo.Channel, error) {
	normalized := strings.ToLower(name)

	channels, err := s.guilds.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildText && channel.Name == normalized {
			return channel, nil
		}
	}

	channel, err := s.guilds.GuildChannelCreate(guildID, normalized, discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create channel %q: %w", normalized, err)
	}
	return channel, nil
}
