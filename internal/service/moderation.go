package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/globot/syncbot/internal/classify"
	"github.com/globot/syncbot/internal/delivery"
	"github.com/globot/syncbot/internal/model"
	logger "github.com/globot/syncbot/middleware/log"
)

var ErrClassifierUnavailable = errors.New("classifier unavailable")

const excerptLimit = 200

// IModerationGate screens an envelope before it may enter the relay.
type IModerationGate interface {
	// Evaluate classifies the envelope's text. On classifier outage the
	// default policy is fail-open: the decision comes back clear with
	// Skipped set and the outage is logged as a distinct moderation_skipped
	// event. With fail-closed configured, Evaluate returns
	// ErrClassifierUnavailable instead.
	Evaluate(ctx context.Context, env *model.MessageEnvelope) (*model.ModerationDecision, error)

	// Enforce applies the blocked-message side effects: a summary to the
	// guild's logs channel if configured, a warning increment for the
	// author, and a best-effort direct notice. The notice never rolls back
	// the increment.
	Enforce(ctx context.Context, env *model.MessageEnvelope, decision *model.ModerationDecision) error
}

// ModerationGate wraps the external classifier with the threshold policy.
type ModerationGate struct {
	classifier classify.Classifier
	graph      IChannelGraph
	ledger     IWarningLedger
	deliverer  delivery.Deliverer
	log        *logger.Logger

	enabled    bool
	threshold  float64
	failClosed bool
}

func NewModerationGate(
	classifier classify.Classifier,
	graph IChannelGraph,
	ledger IWarningLedger,
	deliverer delivery.Deliverer,
	log *logger.Logger,
	enabled bool,
	threshold float64,
	failClosed bool,
) IModerationGate {
	if threshold <= 0 {
		threshold = 0.5
	}
	return &ModerationGate{
		classifier: classifier,
		graph:      graph,
		ledger:     ledger,
		deliverer:  deliverer,
		log:        log,
		enabled:    enabled,
		threshold:  threshold,
		failClosed: failClosed,
	}
}

func (m *ModerationGate) Evaluate(ctx context.Context, env *model.MessageEnvelope) (*model.ModerationDecision, error) {
	if !m.enabled {
		return &model.ModerationDecision{}, nil
	}

	scores, err := m.classifier.Classify(ctx, env.RawText)
	if err != nil {
		if m.failClosed {
			return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
		m.log.WarnContext(ctx, "moderation_skipped",
			zap.String("guild_id", env.GuildID),
			zap.String("channel_id", env.SourceChannelID),
			zap.String("author_id", env.AuthorID),
			zap.Error(err))
		m.postSkipNotice(ctx, env)
		return &model.ModerationDecision{Skipped: true}, nil
	}

	decision := &model.ModerationDecision{Scores: scores}
	for label, score := range scores {
		if score >= m.threshold {
			decision.Categories = append(decision.Categories, label)
		}
	}
	sort.Strings(decision.Categories)
	decision.Toxic = len(decision.Categories) > 0
	return decision, nil
}

func (m *ModerationGate) Enforce(ctx context.Context, env *model.MessageEnvelope, decision *model.ModerationDecision) error {
	category := decision.TopCategory()

	m.log.InfoContext(ctx, "message_blocked",
		zap.String("guild_id", env.GuildID),
		zap.String("channel_id", env.SourceChannelID),
		zap.String("author_id", env.AuthorID),
		zap.Strings("categories", decision.Categories))

	m.postBlockSummary(ctx, env, decision)

	record, err := m.ledger.RecordViolation(ctx, env.GuildID, env.AuthorID, category)
	if err != nil {
		// Suppression already happened; the failed increment is the error
		// the caller sees.
		return err
	}

	notice := fmt.Sprintf(
		"Your message was removed for violating the content rules (%s). Warning count: %d.",
		category, record.Count)
	if err := m.deliverer.NotifyUser(ctx, env.AuthorID, notice); err != nil {
		m.log.WarnContext(ctx, "failed to notify author of blocked message",
			zap.String("author_id", env.AuthorID), zap.Error(err))
	}
	return nil
}

// postSkipNotice tells the guild's logs channel a message went through
// unmoderated, so fail-open outages stay auditable.
func (m *ModerationGate) postSkipNotice(ctx context.Context, env *model.MessageEnvelope) {
	logsChannel, err := m.graph.LogsChannel(ctx, env.GuildID)
	if err != nil || logsChannel == "" {
		return
	}
	text := fmt.Sprintf(
		"Moderation skipped: classifier unreachable, message %s from <@%s> was relayed unmoderated.",
		env.OriginMessageID, env.AuthorID)
	if err := m.deliverer.PostToChannel(ctx, logsChannel, text); err != nil {
		m.log.WarnContext(ctx, "failed to post moderation skip notice", zap.Error(err))
	}
}

func (m *ModerationGate) postBlockSummary(ctx context.Context, env *model.MessageEnvelope, decision *model.ModerationDecision) {
	logsChannel, err := m.graph.LogsChannel(ctx, env.GuildID)
	if err != nil || logsChannel == "" {
		return
	}

	var sb strings.Builder
	sb.WriteString("Toxic message blocked\n")
	fmt.Fprintf(&sb, "Author: <@%s>\n", env.AuthorID)
	fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(decision.Categories, ", "))
	for _, c := range decision.Categories {
		fmt.Fprintf(&sb, "  %s: %.2f\n", c, decision.Scores[c])
	}
	fmt.Fprintf(&sb, "Excerpt: %s", truncate(env.RawText, excerptLimit))

	if err := m.deliverer.PostToChannel(ctx, logsChannel, sb.String()); err != nil {
		m.log.WarnContext(ctx, "failed to post block summary", zap.Error(err))
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
