package scenarios

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/lorebot/lorebot/internal/replay"
)

// WebhookSession is the subset of *discordgo.Session the runner needs.
type WebhookSession interface {
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookDelete(webhookID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// RunOptions configures one scenario replay.
type RunOptions struct {
	Scenario    *Scenario
	ChannelID   string
	Delay       time.Duration
	RequestedBy string

	// OnProgress is invoked after each delivered event.
	OnProgress func(replay.Progress)

	// OnFinish is invoked exactly once when the run settles, before webhook
	// cleanup and registry release.
	OnFinish func(replay.Result)
}

// Runner replays scenarios through a single freshly created channel webhook,
// impersonating each actor per message. The webhook is deleted when the run
// settles. Channel exclusivity is arbitrated by the shared replay registry,
// so a scenario and a conversation can never run in the same channel at once.
type Runner struct {
	session  WebhookSession
	registry *replay.Registry
	logger   *slog.Logger
}

// NewRunner creates a scenario runner.
func NewRunner(session WebhookSession, registry *replay.Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{session: session, registry: registry, logger: logger}
}

// Start reserves the channel, provisions the scenario webhook, and launches
// the delivery loop in a goroutine. It returns *replay.AlreadyRunningError
// when the channel already hosts a run, in which case nothing is provisioned.
func (r *Runner) Start(ctx context.Context, opts RunOptions) (*replay.Handle, error) {
	runCtx, handle, err := r.registry.Acquire(ctx, opts.ChannelID)
	if err != nil {
		return nil, err
	}

	hook, err := r.createWebhook(ctx, opts)
	if err != nil {
		handle.Cancel()
		r.registry.Release(opts.ChannelID)
		return nil, err
	}

	go r.execute(runCtx, handle, opts, hook)
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

func (r *Runner) createWebhook(ctx context.Context, opts RunOptions) (*discordgo.Webhook, error) {
	hook, err := r.session.WebhookCreate(opts.ChannelID, "Scenario: "+opts.Scenario.Name, "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create scenario webhook: %w", err)
	}
	if hook.Token == "" {
		if err := r.session.WebhookDelete(hook.ID); err != nil {
			r.logger.Warn("failed to delete tokenless scenario webhook", "webhook_id", hook.ID, "error", err)
		}
		return nil, errors.New("failed to obtain webhook token for scenario runner")
	}
	return hook, nil
}

func (r *Runner) execute(ctx context.Context, handle *replay.Handle, opts RunOptions, hook *discordgo.Webhook) {
	scenario := opts.Scenario
	var runErr error

	defer func() {
		if runErr != nil && !errors.Is(runErr, replay.ErrRunCancelled) {
			r.logger.Error("scenario run failed",
				"scenario", scenario.Name,
				"channel_id", opts.ChannelID,
				"error", runErr)
		}
		r.finish(opts, replay.Result{
			ChannelID: opts.ChannelID,
			Name:      scenario.Name,
			Completed: runErr == nil,
			Err:       runErr,
		})
		if err := r.session.WebhookDelete(hook.ID); err != nil {
			r.logger.Warn("failed to delete scenario webhook", "webhook_id", hook.ID, "error", err)
		}
		r.registry.Release(opts.ChannelID)
		handle.Finish(runErr)
	}()

	delay := opts.Delay
	if delay < replay.MinDelay {
		delay = replay.MinDelay
	}

	total := len(scenario.Events)
	for index, event := range scenario.Events {
		if ctx.Err() != nil {
			runErr = replay.ErrRunCancelled
			return
		}

		actor, ok := scenario.Actors[event.ActorID]
		if !ok {
			r.logger.Warn("skipping event: actor no longer available",
				"event", index+1, "actor_id", event.ActorID)
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

		// Issued without the run context; cancellation never aborts an
		// in-flight send.
		_, err := r.session.WebhookExecute(hook.ID, hook.Token, true, &discordgo.WebhookParams{
			Content:   event.Content,
			Username:  actor.DisplayName,
			AvatarURL: actor.AvatarURL,
		})
		if err != nil {
			runErr = fmt.Errorf("send event %d: %w", index+1, err)
			return
		}

		if opts.OnProgress != nil {
			opts.OnProgress(replay.Progress{
				Index:   index + 1,
				Total:   total,
				ActorID: actor.ID,
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
