package conversations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/replay"
)

// WebhookSession is the subset of *discordgo.Session the runner needs to
// manage persona webhooks.
type WebhookSession interface {
	ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error)
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookDelete(webhookID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// personaWebhook pairs a persona with the channel webhook that speaks as it.
type personaWebhook struct {
	persona Persona
	webhook *discordgo.Webhook
}

// RunOptions configures one conversation replay.
type RunOptions struct {
	Conversation *Conversation
	ChannelID    string
	Delay        time.Duration
	RequestedBy  string

	// Catalog is the full persona catalog, used to recognize existing persona
	// webhooks by display name.
	Catalog map[string]Persona

	// OnMessage is invoked after each event is delivered, with the 1-based
	// event index and the sent message.
	OnMessage func(eventIndex int, event Event, message *discordgo.Message)

	// OnProgress is invoked after each delivered event.
	OnProgress func(replay.Progress)

	// OnFinish is invoked exactly once when the run settles, before webhook
	// cleanup and registry release.
	OnFinish func(replay.Result)
}

// Runner replays conversations through per-persona channel webhooks. A
// channel hosts at most one run at a time; contention is arbitrated by the
// shared replay registry.
type Runner struct {
	session  WebhookSession
	registry *replay.Registry
	botID    string
	logger   *slog.Logger
}

// NewRunner creates a conversation runner. botID is the bot's own user id,
// used to tell managed webhooks apart from ones other integrations own.
func NewRunner(session WebhookSession, registry *replay.Registry, botID string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{session: session, registry: registry, botID: botID, logger: logger}
}

// Start reserves the channel, provisions persona webhooks, and launches the
// delivery loop in a goroutine. It returns *replay.AlreadyRunningError when
// the channel already hosts a run, in which case nothing is provisioned.
// Provisioning failure releases the reservation and is fatal to the run.
func (r *Runner) Start(ctx context.Context, opts RunOptions) (*replay.Handle, error) {
	runCtx, handle, err := r.registry.Acquire(ctx, opts.ChannelID)
	if err != nil {
		return nil, err
	}

	hooks, err := r.prepareWebhooks(ctx, opts)
	if err != nil {
		handle.Cancel()
		r.registry.Release(opts.ChannelID)
		return nil, err
	}

	go r.execute(runCtx, handle, opts, hooks)
	return handle, nil
}

// Cancel requests cooperative cancellation of the channel's live run. It
// returns false when no run exists.
func (r *Runner) Cancel(channelID string) bool {
	return r.registry.Cancel(channelID)
}

// Running reports whether the channel has a live run.
func (r *Runner) Running(channelID string) bool {
	return r.registry.Running(channelID)
}

func (r *Runner) execute(ctx context.Context, handle *replay.Handle, opts RunOptions, hooks map[string]*personaWebhook) {
	conv := opts.Conversation
	var runErr error

	defer func() {
		if runErr != nil && !errors.Is(runErr, replay.ErrRunCancelled) {
			r.logger.Error("conversation run failed",
				"conversation", conv.Name,
				"channel_id", opts.ChannelID,
				"error", runErr)
		}
		r.finish(opts, replay.Result{
			ChannelID: opts.ChannelID,
			Name:      conv.Name,
			Completed: runErr == nil,
			Err:       runErr,
		})
		r.cleanup(opts.ChannelID, hooks)
		r.registry.Release(opts.ChannelID)
		handle.Finish(runErr)
	}()

	delay := opts.Delay
	if delay < replay.MinDelay {
		delay = replay.MinDelay
	}

	total := len(conv.Events)
	for index, event := range conv.Events {
		if ctx.Err() != nil {
			runErr = replay.ErrRunCancelled
			return
		}

		persona, ok := conv.Personas[event.PersonaID]
		if !ok {
			r.logger.Warn("skipping event: persona no longer available",
				"event", index+1, "persona_id", event.PersonaID)
			continue
		}

		if index != 0 {
			if err := replay.Sleep(ctx, delay); err != nil {
				runErr = err
				return
			}
		}
		if ctx.Err() != nil {
			runErr = replay.ErrRunCancelled
			return
		}

		hook, ok := hooks[persona.ID]
		if !ok {
			r.logger.Warn("skipping event: no webhook for persona",
				"event", index+1, "persona_id", persona.ID)
			continue
		}

		// Deliberately issued without the run context: an in-flight send is
		// never aborted, cancellation takes effect at the next loop boundary.
		msg, err := r.session.WebhookExecute(hook.webhook.ID, hook.webhook.Token, true, &discordgo.WebhookParams{
			Content:   event.Content,
			Username:  persona.DisplayName,
			AvatarURL: persona.AvatarURL,
		})
		if err != nil {
			runErr = fmt.Errorf("send event %d: %w", index+1, err)
			return
		}

		if opts.OnMessage != nil {
			opts.OnMessage(index+1, event, msg)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(replay.Progress{
				Index:   index + 1,
				Total:   total,
				ActorID: persona.ID,
				Content: event.Content,
			})
		}
	}
}

func (r *Runner) finish(opts RunOptions, result replay.Result) {
	if opts.OnFinish == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("finish callback panicked", "panic", p)
		}
	}()
	opts.OnFinish(result)
}

// cleanup deletes every webhook the run held. Failures are logged and
// swallowed; they never mask the run's outcome.
func (r *Runner) cleanup(channelID string, hooks map[string]*personaWebhook) {
	for _, hook := range hooks {
		if err := r.session.WebhookDelete(hook.webhook.ID); err != nil {
			r.logger.Warn("failed to delete persona webhook",
				"channel_id", channelID,
				"webhook_id", hook.webhook.ID,
				"persona_id", hook.persona.ID,
				"error", err)
		}
	}
}

// prepareWebhooks claims existing persona webhooks in the channel and creates
// the missing ones. Bot-owned webhooks that match no catalog persona, appear
// twice, or carry no token are pruned along the way.
func (r *Runner) prepareWebhooks(ctx context.Context, opts RunOptions) (map[string]*personaWebhook, error) {
	if r.botID == "" {
		return nil, errors.New("bot user is not ready to manage webhooks")
	}

	required := opts.Conversation.Personas

	byDisplay := make(map[string]Persona, len(opts.Catalog))
	for _, persona := range opts.Catalog {
		byDisplay[persona.DisplayName] = persona
	}

	existing, err := r.session.ChannelWebhooks(opts.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channel webhooks: %w", err)
	}

	claimed := make(map[string]*personaWebhook)
	seen := make(map[string]bool)

	for _, hook := range existing {
		if !r.managed(hook) {
			continue
		}

		persona, ok := byDisplay[hook.Name]
		if !ok {
			r.deleteStray(hook, "unmanaged persona webhook")
			continue
		}
		if seen[persona.ID] {
			r.deleteStray(hook, "duplicate persona webhook")
			continue
		}
		seen[persona.ID] = true

		if _, ok := required[persona.ID]; !ok {
			continue
		}
		if hook.Token == "" {
			r.deleteStray(hook, "persona webhook missing token")
			continue
		}

		claimed[persona.ID] = &personaWebhook{persona: persona, webhook: hook}
	}

	var created []*discordgo.Webhook
	for id, persona := range required {
		if _, ok := claimed[id]; ok {
			continue
		}

		hook, err := r.session.WebhookCreate(opts.ChannelID, persona.DisplayName, "", discordgo.WithContext(ctx))
		if err != nil {
			r.discard(created)
			return nil, fmt.Errorf("create webhook for persona %q: %w", persona.DisplayName, err)
		}
		if hook.Token == "" {
			r.deleteStray(hook, "persona webhook missing token after creation")
			r.discard(created)
			return nil, fmt.Errorf("failed to obtain token for persona %q", persona.DisplayName)
		}

		created = append(created, hook)
		claimed[id] = &personaWebhook{persona: persona, webhook: hook}
	}

	return claimed, nil
}

// discard deletes webhooks created during a provisioning pass that failed.
// Claimed pre-existing hooks are left for the next run's prune pass.
func (r *Runner) discard(created []*discordgo.Webhook) {
	for _, hook := range created {
		r.deleteStray(hook, "provisioning aborted")
	}
}

func (r *Runner) managed(hook *discordgo.Webhook) bool {
	if hook.User != nil && hook.User.ID == r.botID {
		return true
	}
	return hook.ApplicationID == r.botID
}

func (r *Runner) deleteStray(hook *discordgo.Webhook, reason string) {
	if err := r.session.WebhookDelete(hook.ID); err != nil {
		r.logger.Warn("failed to delete webhook",
			"webhook_id", hook.ID, "reason", reason, "error", err)
	}
}
