package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"e2e_xmtp/internal/model"
	"e2e_xmtp/internal/service/redis"
	"e2e_xmtp/internal/transport"

	"github.com/google/uuid"
)

type (
	// EnvelopeLog keeps one redis sorted set per topic, scored by
	// timestamp, and fans new envelopes out over a pub/sub channel per topic.
	EnvelopeLog struct {
		redisService *redis.RedisService
	}

	storedEnvelope struct {
		ID       string         `json:"id"`
		Envelope model.Envelope `json:"envelope"`
	}
)

func NewEnvelopeLog(redisSvc *redis.RedisService) *EnvelopeLog {
	return &EnvelopeLog{redisService: redisSvc}
}

func logKey(topic string) string {
	return fmt.Sprintf("envelopes:%s", topic)
}

func channelKey(topic string) string {
	return fmt.Sprintf("topic:%s", topic)
}

// Append stores env and notifies live subscribers of its topic.
func (l *EnvelopeLog) Append(ctx context.Context, env model.Envelope) error {
	member, err := json.Marshal(&storedEnvelope{ID: uuid.NewString(), Envelope: env})
	if err != nil {
		return err
	}
	if err := l.redisService.ZAdd(ctx, logKey(env.ContentTopic), float64(env.TimestampNs), string(member)); err != nil {
		return fmt.Errorf("append %s: %w", env.ContentTopic, err)
	}

	data, err := json.Marshal(&env)
	if err != nil {
		return err
	}
	return l.redisService.Publish(ctx, channelKey(env.ContentTopic), data)
}

// Query merges the logs of every requested topic in time order and returns
// the page selected by req's cursor.
func (l *EnvelopeLog) Query(ctx context.Context, req transport.QueryRequest) (*transport.QueryResponse, error) {
	lo, hi := "-inf", "+inf"
	if req.StartTimeNs != 0 {
		lo = strconv.FormatUint(req.StartTimeNs, 10)
	}
	if req.EndTimeNs != 0 {
		hi = strconv.FormatUint(req.EndTimeNs, 10)
	}

	var envelopes []model.Envelope
	for _, topic := range req.ContentTopics {
		members, err := l.redisService.ZRange(ctx, logKey(topic), lo, hi, false)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", topic, err)
		}
		for _, m := range members {
			var stored storedEnvelope
			if err := json.Unmarshal([]byte(m), &stored); err != nil {
				return nil, err
			}
			// scores are float64 so bounds are rechecked exactly
			env := stored.Envelope
			if req.StartTimeNs != 0 && env.TimestampNs < req.StartTimeNs {
				continue
			}
			if req.EndTimeNs != 0 && env.TimestampNs > req.EndTimeNs {
				continue
			}
			envelopes = append(envelopes, env)
		}
	}

	sort.SliceStable(envelopes, func(i, j int) bool {
		if req.Direction == transport.SortDescending {
			return envelopes[i].TimestampNs > envelopes[j].TimestampNs
		}
		return envelopes[i].TimestampNs < envelopes[j].TimestampNs
	})
	return transport.Page(envelopes, req)
}
