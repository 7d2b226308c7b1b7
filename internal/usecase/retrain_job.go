package usecase

import (
	"context"
	"fmt"

	"PriceCast/internal/services/alerting"
	"PriceCast/pkg/logger"
	"PriceCast/pkg/queue"
)

// MsgTypeRetrain tags retrain requests on the queue.
const MsgTypeRetrain = "retrain"

// RetrainRequest is the queued payload for an asynchronous retrain.
type RetrainRequest struct {
	ItemID int64  `json:"item_id"`
	Reason string `json:"reason"`
}

// RetrainQueue enqueues retrain requests instead of training inline,
// so an alert storm cannot stall the evaluation path.
type RetrainQueue struct {
	q queue.QueueService
}

func NewRetrainQueue(q queue.QueueService) *RetrainQueue {
	return &RetrainQueue{q: q}
}

func (r *RetrainQueue) TriggerRetrain(ctx context.Context, itemID int64, reason string) error {
	err := r.q.PublishMessage(ctx, MsgTypeRetrain, RetrainRequest{ItemID: itemID, Reason: reason})
	if err != nil {
		return fmt.Errorf("enqueue retrain: %w", err)
	}
	return nil
}

// RetrainJob consumes queued retrain requests and runs a training
// cycle for the item.
type RetrainJob struct {
	manager *Manager
	log     *logger.Logger
}

func NewRetrainJob(manager *Manager, log *logger.Logger) *RetrainJob {
	return &RetrainJob{manager: manager, log: log}
}

func (j *RetrainJob) Name() string { return "model_retrain" }
func (j *RetrainJob) Type() string { return MsgTypeRetrain }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[RetrainRequest](payload)
	if err != nil {
		return fmt.Errorf("parse retrain payload: %w", err)
	}

	_, strategy, err := j.manager.ForceRetrain(ctx, req.ItemID)
	if err != nil {
		// data guards are terminal, retrying cannot fix them
		if isAnyOf(err, ErrDataInsufficient, ErrDataStale, ErrLowLiquidity, ErrPriceStagnation) {
			j.log.Warn("queued retrain skipped",
				logger.Int64("item_id", req.ItemID),
				logger.String("reason", req.Reason),
				logger.Error(err))
			return nil
		}
		return err
	}

	j.log.Info("queued retrain done",
		logger.Int64("item_id", req.ItemID),
		logger.String("reason", req.Reason),
		logger.String("strategy", strategy))
	return nil
}

var (
	_ alerting.RetrainTrigger = (*RetrainQueue)(nil)
	_ queue.Job               = (*RetrainJob)(nil)
)
