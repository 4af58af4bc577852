package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bistro/auth/internal/service"
)

const TypeSweep = "sweep"

type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

type TaskPayload struct {
	Type        string `json:"type"`
	RequestedAt string `json:"requested_at"`
}

// SweepTask is the stream entry that asks a worker to run one sweep.
func SweepTask(requestedAt time.Time) map[string]any {
	return map[string]any{
		"type":         TypeSweep,
		"requested_at": requestedAt.UTC().Format(time.RFC3339),
	}
}

type Processor struct {
	sweeper Sweeper
	timeout time.Duration
	logger  zerolog.Logger
}

func NewProcessor(sweeper Sweeper, timeout time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		sweeper: sweeper,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable task")
		return nil
	}

	switch payload.Type {
	case TypeSweep:
		return p.handleSweep(ctx, msg.ID, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleSweep(ctx context.Context, messageID string, payload TaskPayload) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug().
		Str("message_id", messageID).
		Str("requested_at", payload.RequestedAt).
		Int64("sessions_deleted", result.SessionsDeleted).
		Int64("rate_limit_rows_deleted", result.RateLimitRowsDeleted).
		Msg("sweep task done")
	return nil
}
