package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"vehicle-led-service/internal/arbiter"
	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/trigger"
	"vehicle-led-service/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	ledHash      = "led"
	profilesHash = "led:profiles"
	stateHash    = "vehicle-led"
	eventStream  = "events:can"
)

// ErrNoProfile is returned by LoadProfile when the slot has no document.
var ErrNoProfile = errors.New("no stored profile")

type Callbacks struct {
	ProfileCallback        func(ProfileCommand) error
	EventCallback          func(EventCommand) error
	ImportCallback         func([]byte) error
	ExportCallback         func(int) ([]byte, error)
	ProfileUpdatedCallback func(int) error // a profile document was edited in redis by another service
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetCallbacks replaces the command callbacks. It must be called before
// StartListening.
func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Errorf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the command list listeners and the profile change
// subscription.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, profilesHash)
	r.logger.Infof("Subscribed to Redis channel: %s", profilesHash)

	r.wg.Add(1)
	go r.redisListener(pubsub)

	r.wg.Add(4)
	go r.listCommandListener("led:profile", r.handleProfileCommand)
	go r.listCommandListener("led:event", r.handleEventCommand)
	go r.listCommandListener("led:import", r.handleImportCommand)
	go r.listCommandListener("led:export", r.handleExportCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				// Avoid spinning while the server is unreachable.
				select {
				case <-r.ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleProfileCommand(value string) error {
	if r.callbacks.ProfileCallback == nil {
		return nil
	}
	cmd, err := ParseProfileCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.ProfileCallback(cmd)
}

func (r *RedisClient) handleEventCommand(value string) error {
	if r.callbacks.EventCallback == nil {
		return nil
	}
	cmd, err := ParseEventCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.EventCallback(cmd)
}

func (r *RedisClient) handleImportCommand(value string) error {
	if r.callbacks.ImportCallback == nil {
		return nil
	}
	if !json.Valid([]byte(value)) {
		return fmt.Errorf("import payload is not JSON (%d bytes)", len(value))
	}
	return r.callbacks.ImportCallback([]byte(value))
}

func (r *RedisClient) handleExportCommand(value string) error {
	if r.callbacks.ExportCallback == nil {
		return nil
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid export command: %s", value)
	}
	doc, err := r.callbacks.ExportCallback(id)
	if err != nil {
		return err
	}
	return r.WriteExport(id, doc)
}

func (r *RedisClient) redisListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	r.logger.Infof("Starting Redis message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Fatalf("Redis connection lost, exiting to allow systemd restart")
				return
			}

			r.logger.Debugf("Received Redis message: channel=%s payload=%s", msg.Channel, msg.Payload)

			if msg.Channel != profilesHash || r.callbacks.ProfileUpdatedCallback == nil {
				continue
			}
			id, err := strconv.Atoi(msg.Payload)
			if err != nil {
				// Only numeric payloads name a profile slot.
				continue
			}
			if err := r.callbacks.ProfileUpdatedCallback(id); err != nil {
				r.logger.Warnf("Failed to reload profile %d: %v", id, err)
			}
		}
	}
}

// publishHashSet is a helper that atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// PublishEffect writes the resolved effect for the renderer and notifies it.
func (r *RedisClient) PublishEffect(res arbiter.Resolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode effect: %w", err)
	}
	r.logger.Debugf("Publishing effect %s (event %s, profile %d)", res.Effect.Effect, res.Event, res.ProfileID)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, ledHash, "effect", string(data))
	pipe.HSet(r.ctx, ledHash, "event", res.Event.String())
	pipe.HSet(r.ctx, ledHash, "profile", res.ProfileID)
	pipe.Publish(r.ctx, ledHash, "effect")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to publish effect: %v", err)
		return err
	}
	return nil
}

// PublishVehicleState mirrors a state snapshot for dashboards.
func (r *RedisClient) PublishVehicleState(state types.VehicleState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode vehicle state: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, stateHash, "snapshot", string(data))
	pipe.HSet(r.ctx, stateHash, "snapshot:timestamp", state.LastUpdate.Format(time.RFC3339Nano))
	pipe.Publish(r.ctx, stateHash, "snapshot")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to publish vehicle state: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) PublishServiceState(state types.ServiceState) error {
	r.logger.Infof("Publishing service state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, stateHash, "state", string(state))
	pipe.HSet(r.ctx, stateHash, "state:timestamp", timestamp)
	pipe.Publish(r.ctx, stateHash, "state")
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish service state: %v", err)
		return err
	}
	r.logger.Debugf("Successfully published service state with timestamp: %s", timestamp)
	return nil
}

// PublishEvent appends a fired event to the events:can stream.
func (r *RedisClient) PublishEvent(ev trigger.Fired, ts time.Time) error {
	err := r.client.XAdd(r.ctx, &redis.XAddArgs{
		Stream: eventStream,
		MaxLen: 1000,
		Values: map[string]interface{}{
			"event":   ev.Event.String(),
			"message": fmt.Sprintf("0x%03X", ev.MessageID),
			"signal":  ev.Signal,
			"value":   ev.Value,
			"ts":      ts.UnixMilli(),
		},
	}).Err()
	if err != nil {
		r.logger.Warnf("Failed to publish event %s: %v", ev.Event, err)
		return err
	}
	return nil
}

// WriteExport stores an exported profile document under led:profile:<id>:export.
func (r *RedisClient) WriteExport(id int, doc []byte) error {
	key := fmt.Sprintf("led:profile:%d:export", id)
	if err := r.client.Set(r.ctx, key, doc, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	r.logger.Infof("Exported profile %d to %s", id, key)
	return nil
}

// Profile persistence on the led:profiles hash. The store treats these as
// best effort.

func (r *RedisClient) SaveProfile(id int, doc []byte) error {
	return r.client.HSet(r.ctx, profilesHash, strconv.Itoa(id), doc).Err()
}

func (r *RedisClient) DeleteProfile(id int) error {
	return r.client.HDel(r.ctx, profilesHash, strconv.Itoa(id)).Err()
}

func (r *RedisClient) LoadProfile(id int) ([]byte, error) {
	doc, err := r.client.HGet(r.ctx, profilesHash, strconv.Itoa(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %d", ErrNoProfile, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %d: %w", id, err)
	}
	return doc, nil
}

func (r *RedisClient) LoadProfiles() (map[int][]byte, error) {
	fields, err := r.client.HGetAll(r.ctx, profilesHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", profilesHash, err)
	}
	out := make(map[int][]byte, len(fields))
	for field, doc := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			r.logger.Warnf("Ignoring %s field %q", profilesHash, field)
			continue
		}
		out[id] = []byte(doc)
	}
	return out, nil
}

func (r *RedisClient) SaveActiveProfile(id int) error {
	return r.publishHashSet(ledHash, "active-profile", id, ledHash, "active-profile")
}

// LoadActiveProfile returns -1 when no selection was stored.
func (r *RedisClient) LoadActiveProfile() (int, error) {
	id, err := r.client.HGet(r.ctx, ledHash, "active-profile").Int()
	if errors.Is(err, redis.Nil) {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to get active profile: %w", err)
	}
	return id, nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
