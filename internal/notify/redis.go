package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand/v2"
	"strconv"

	"sjsage522/pricewatcher/logger"

	"github.com/redis/go-redis/v9"
)

// StreamField is the stream entry field holding the base64 encoded event
const StreamField = "b64_price_change"

// TextField is the stream entry field holding a base64 encoded preformatted message
const TextField = "b64_message"

// RedisStreamNotifier publishes events to a set of Redis streams for downstream consumers
type RedisStreamNotifier struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisStreamNotifier creates a notifier writing to streams prefix:0 .. prefix:count-1
func NewRedisStreamNotifier(client *redis.Client, streamPrefix string, streamCount int, streamMaxLength int) *RedisStreamNotifier {
	if streamCount <= 0 {
		streamCount = 1
	}
	return &RedisStreamNotifier{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
		log:             logger.ForNotifier("redis"),
	}
}

// Notify implements Notifier. The event is JSON encoded, then base64 encoded.
func (p *RedisStreamNotifier) Notify(ctx context.Context, e Event) error {
	message, err := json.Marshal(e)
	if err != nil {
		return notifyError("redis", "failed to encode event", err)
	}
	if err := p.publish(ctx, StreamField, message); err != nil {
		return notifyError("redis", "failed to publish event", err)
	}
	return nil
}

// SendText implements TextSender. The message goes under TextField so consumers
// decoding StreamField as an event never see it.
func (p *RedisStreamNotifier) SendText(ctx context.Context, text string) error {
	if err := p.publish(ctx, TextField, []byte(text)); err != nil {
		return notifyError("redis", "failed to publish message", err)
	}
	return nil
}

func (p *RedisStreamNotifier) publish(ctx context.Context, field string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	// if streamCount is 10, stream name will be prefix:0 ~ prefix:9
	stream := p.streamPrefix + ":" + strconv.Itoa(rand.IntN(p.streamCount))

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			field: encodedMessage,
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = int64(p.streamMaxLength)
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return err
	}
	p.log.Debug().Str("stream", stream).Msg("Event published")
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisStreamNotifier) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	// Get all streams with the prefix
	streams, err := p.client.Keys(ctx, p.streamPrefix+":*").Result()
	if err != nil {
		return err
	}

	for _, stream := range streams {
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return err
		}
	}
	return nil
}
