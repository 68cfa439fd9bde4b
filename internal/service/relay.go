package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/globot/syncbot/internal/delivery"
	"github.com/globot/syncbot/internal/model"
	"github.com/globot/syncbot/internal/pkg/seen"
	"github.com/globot/syncbot/internal/translate"
	logger "github.com/globot/syncbot/middleware/log"
)

// IRelayDispatcher fans one inbound envelope out to the other members of its
// sync group.
type IRelayDispatcher interface {
	Relay(ctx context.Context, env *model.MessageEnvelope) (*model.RelayResult, error)
}

// RelayDispatcher wires ChannelGraph, ModerationGate, the translator and the
// deliverer into the relay pipeline. Per-peer translate+deliver runs
// concurrently; one peer's failure never aborts the others.
type RelayDispatcher struct {
	graph      IChannelGraph
	gate       IModerationGate
	translator translate.Translator
	deliverer  delivery.Deliverer
	seenFilter *seen.Filter
	log        *logger.Logger

	translateTimeout time.Duration
	deliverTimeout   time.Duration
}

func NewRelayDispatcher(
	graph IChannelGraph,
	gate IModerationGate,
	translator translate.Translator,
	deliverer delivery.Deliverer,
	seenFilter *seen.Filter,
	log *logger.Logger,
	translateTimeout, deliverTimeout time.Duration,
) IRelayDispatcher {
	if translateTimeout <= 0 {
		translateTimeout = 5 * time.Second
	}
	if deliverTimeout <= 0 {
		deliverTimeout = 5 * time.Second
	}
	return &RelayDispatcher{
		graph:            graph,
		gate:             gate,
		translator:       translator,
		deliverer:        deliverer,
		seenFilter:       seenFilter,
		log:              log,
		translateTimeout: translateTimeout,
		deliverTimeout:   deliverTimeout,
	}
}

func (r *RelayDispatcher) Relay(ctx context.Context, env *model.MessageEnvelope) (*model.RelayResult, error) {
	result := &model.RelayResult{Failed: make(map[string]model.DeliveryErrorKind)}

	// Loop guard: content this system delivered itself is dropped before
	// anything else, otherwise overlapping groups turn into relay cycles.
	if env.Relayed || (r.seenFilter != nil && r.seenFilter.Contains(env.OriginMessageID)) {
		return result, nil
	}

	peers, err := r.graph.PeersOf(ctx, env.SourceChannelID)
	if err != nil {
		return nil, err
	}
	// Unsynced channels and single-member groups never reach the classifier.
	if len(peers) == 0 {
		return result, nil
	}

	decision, err := r.gate.Evaluate(ctx, env)
	if err != nil {
		if errors.Is(err, ErrClassifierUnavailable) {
			// Fail-closed: suppress without a warning trail, the author did
			// nothing provably wrong.
			r.log.WarnContext(ctx, "message suppressed, classifier down under fail-closed policy",
				zap.String("channel_id", env.SourceChannelID))
			result.Blocked = true
			return result, nil
		}
		return nil, err
	}
	if decision.Toxic {
		result.Blocked = true
		if err := r.gate.Enforce(ctx, env, decision); err != nil {
			r.log.ErrorContext(ctx, "failed to enforce moderation block", zap.Error(err))
		}
		return result, nil
	}

	if r.seenFilter != nil {
		r.seenFilter.Add(env.OriginMessageID)
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, peer := range peers {
		wg.Add(1)
		go func(peer *model.ChannelBinding) {
			defer wg.Done()

			text := r.translateFor(ctx, env, peer)

			dctx, cancel := context.WithTimeout(ctx, r.deliverTimeout)
			defer cancel()
			err := r.deliverer.Deliver(dctx, peer.DeliveryHandle, text, env.Attachments, env.AuthorName)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[peer.ChannelID] = deliveryErrorKind(err)
				r.log.WarnContext(ctx, "relay_failed",
					zap.String("peer_channel_id", peer.ChannelID),
					zap.Error(err))
				return
			}
			result.Delivered = append(result.Delivered, peer.ChannelID)
		}(peer)
	}
	wg.Wait()

	r.log.InfoContext(ctx, "relay_delivered",
		zap.String("source_channel_id", env.SourceChannelID),
		zap.Int("delivered", len(result.Delivered)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// translateFor renders the text for one peer. A translation outage degrades
// to the original text; losing the peer over it would turn a partial failure
// into a total one.
func (r *RelayDispatcher) translateFor(ctx context.Context, env *model.MessageEnvelope, peer *model.ChannelBinding) string {
	tctx, cancel := context.WithTimeout(ctx, r.translateTimeout)
	defer cancel()

	res, err := r.translator.Translate(tctx, env.RawText, "auto", peer.Language)
	if err != nil {
		r.log.WarnContext(ctx, "translation failed, delivering original text",
			zap.String("peer_channel_id", peer.ChannelID),
			zap.String("target_language", peer.Language),
			zap.Error(err))
		return env.RawText
	}
	return res.Text
}

func deliveryErrorKind(err error) model.DeliveryErrorKind {
	switch {
	case errors.Is(err, delivery.ErrDenied):
		return model.DeliveryDenied
	case errors.Is(err, delivery.ErrRateLimited):
		return model.DeliveryRateLimited
	default:
		return model.DeliveryUnavailable
	}
}
