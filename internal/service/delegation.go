package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	sbotel "github.com/arbiterhq/Switchboard/internal/adapter/otel"
	"github.com/arbiterhq/Switchboard/internal/domain"
	"github.com/arbiterhq/Switchboard/internal/domain/message"
	"github.com/arbiterhq/Switchboard/internal/domain/task"
	"github.com/arbiterhq/Switchboard/internal/ledger"
	"github.com/arbiterhq/Switchboard/internal/port/reputation"
	"github.com/arbiterhq/Switchboard/internal/port/stream"
)

// completionAward is the reputation granted to the assignee when a task
// completes.
const completionAward = 1.0

// DelegationService drives the task lifecycle. A task is born together with
// its delegation envelope and then only moves forward through the state
// machine; every lifecycle step emits an envelope to the counterparty and a
// stream event, both best-effort unless noted.
type DelegationService struct {
	tasks   *ledger.Ledger
	bus     *BusService
	rep     reputation.Awarder
	events  stream.Stream
	metrics *sbotel.Metrics
	now     func() time.Time // for testing
}

// NewDelegationService creates a DelegationService over the given ledger
// and bus. Reputation and stream collaborators are optional.
func NewDelegationService(tasks *ledger.Ledger, bus *BusService) *DelegationService {
	return &DelegationService{
		tasks: tasks,
		bus:   bus,
		now:   time.Now,
	}
}

// SetReputation attaches the optional reputation collaborator. Completed
// tasks award reputation to the assignee.
func (s *DelegationService) SetReputation(rep reputation.Awarder) {
	s.rep = rep
}

// SetStream attaches the optional bus event stream.
func (s *DelegationService) SetStream(es stream.Stream) {
	s.events = es
}

// SetMetrics attaches the optional metric instruments.
func (s *DelegationService) SetMetrics(m *sbotel.Metrics) {
	s.metrics = m
}

// Delegate creates a task and sends its delegation envelope as one step.
// The envelope goes through the full send path first, so both identities
// are validated and the recipient's mailbox holds the delegation before the
// task exists; a rejected send means no task is recorded. Task and envelope
// share a creation timestamp.
func (s *DelegationService) Delegate(ctx context.Context, req task.DelegateRequest) (*task.Task, *message.Envelope, error) {
	if req.Name == "" {
		return nil, nil, fmt.Errorf("delegate: task name is required: %w", domain.ErrValidation)
	}

	ctx, span := sbotel.StartDelegateSpan(ctx, "", req.FromAgent, req.ToAgent)
	defer span.End()

	env := message.New(req.FromAgent, req.ToAgent, message.KindTaskDelegation, "Task delegation: "+req.Name)
	env.Payload = map[string]any{
		"task_name":   req.Name,
		"description": req.Description,
	}
	if len(req.Parameters) > 0 {
		env.Payload["parameters"] = req.Parameters
	}
	if len(req.RequiredCapabilities) > 0 {
		env.Payload["required_capabilities"] = req.RequiredCapabilities
	}

	sent, err := s.bus.Send(ctx, env)
	if err != nil {
		return nil, nil, err
	}

	t := &task.Task{
		ID:                   uuid.NewString(),
		FromAgent:            req.FromAgent,
		ToAgent:              req.ToAgent,
		LinkedMessageID:      sent.ID,
		Name:                 req.Name,
		Description:          req.Description,
		Parameters:           req.Parameters,
		RequiredCapabilities: req.RequiredCapabilities,
		Status:               task.StatusPending,
		CreatedAt:            sent.CreatedAt,
	}
	if err := s.tasks.Insert(t); err != nil {
		return nil, nil, fmt.Errorf("record task for %s: %w", sent.ID, err)
	}

	span.SetAttributes(attribute.String("task.id", t.ID))
	s.recordTransition(ctx, t.Status)

	slog.Info("task delegated",
		"task_id", t.ID,
		"from", t.FromAgent,
		"to", t.ToAgent,
		"name", t.Name,
	)

	publishEvent(ctx, s.events, stream.SubjectTaskDelegated, stream.TaskDelegatedPayload{
		TaskID:    t.ID,
		From:      t.FromAgent,
		To:        t.ToAgent,
		Name:      t.Name,
		MessageID: sent.ID,
	})

	return t, sent, nil
}

// Accept moves a pending task to in_progress on behalf of its assignee and
// sends a task-acceptance envelope back to the delegator.
func (s *DelegationService) Accept(ctx context.Context, taskID, byAgent string) (*task.Task, error) {
	if err := s.checkAssignee(taskID, byAgent); err != nil {
		return nil, err
	}

	t, err := s.tasks.Transition(taskID, task.StatusInProgress, nil)
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, t.Status)
	s.sendLifecycleNotice(ctx, t, message.KindTaskAcceptance, "Task accepted: "+t.Name, map[string]any{
		"task_id": t.ID,
	})
	s.publishUpdated(ctx, t, "")

	return t, nil
}

// Reject cancels a pending task on behalf of its assignee and sends a
// task-rejection envelope back to the delegator with the reason.
func (s *DelegationService) Reject(ctx context.Context, taskID, byAgent, reason string) (*task.Task, error) {
	if err := s.checkAssignee(taskID, byAgent); err != nil {
		return nil, err
	}

	t, err := s.tasks.Transition(taskID, task.StatusCancelled, func(tk *task.Task) {
		tk.CompletionNotes = reason
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, t.Status)
	s.sendLifecycleNotice(ctx, t, message.KindTaskRejection, "Task rejected: "+t.Name, map[string]any{
		"task_id": t.ID,
		"reason":  reason,
	})
	s.publishUpdated(ctx, t, reason)

	return t, nil
}

// Update sends a progress report for an in-progress task to the delegator.
// The task's status does not change. Unlike the lifecycle notices, the
// envelope is the whole point here, so a failed send fails the update.
func (s *DelegationService) Update(ctx context.Context, taskID, byAgent, note string, progress map[string]any) (*message.Envelope, error) {
	if err := s.checkAssignee(taskID, byAgent); err != nil {
		return nil, err
	}

	t, err := s.tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusInProgress {
		return nil, fmt.Errorf("task %s is %s, updates require in_progress: %w", taskID, t.Status, domain.ErrInvalidTransition)
	}

	env := message.New(t.ToAgent, t.FromAgent, message.KindTaskUpdate, "Task update: "+t.Name)
	env.InResponseTo = t.LinkedMessageID
	env.Payload = map[string]any{
		"task_id": t.ID,
		"note":    note,
	}
	if len(progress) > 0 {
		env.Payload["progress"] = progress
	}

	sent, err := s.bus.Send(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("send update for task %s: %w", taskID, err)
	}

	s.publishUpdated(ctx, t, note)

	return sent, nil
}

// Complete moves a pending or in-progress task to completed, stamping the
// completion time, notes and result data in the same transition. Acceptance
// is not a precondition. The completion envelope to the delegator and the
// reputation award are best-effort.
func (s *DelegationService) Complete(ctx context.Context, taskID, notes string, result map[string]any) (*task.Task, error) {
	done := s.now()
	t, err := s.tasks.Transition(taskID, task.StatusCompleted, func(tk *task.Task) {
		tk.CompletedAt = &done
		tk.CompletionNotes = notes
		tk.ResultData = result
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, t.Status)
	slog.Info("task completed", "task_id", t.ID, "assignee", t.ToAgent)

	payload := map[string]any{
		"task_id":          t.ID,
		"completion_notes": notes,
	}
	if len(result) > 0 {
		payload["result_data"] = result
	}
	s.sendLifecycleNotice(ctx, t, message.KindTaskCompletion, "Task completed: "+t.Name, payload)

	s.awardCompletion(ctx, t)

	publishEvent(ctx, s.events, stream.SubjectTaskCompleted, stream.TaskCompletedPayload{
		TaskID: t.ID,
		From:   t.FromAgent,
		To:     t.ToAgent,
		Status: string(t.Status),
		Notes:  notes,
	})

	return t, nil
}

// Fail moves a pending or in-progress task to failed, recording the reason.
// The failure notice to the delegator is best-effort.
func (s *DelegationService) Fail(ctx context.Context, taskID, reason string) (*task.Task, error) {
	t, err := s.tasks.Transition(taskID, task.StatusFailed, func(tk *task.Task) {
		tk.CompletionNotes = reason
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, t.Status)
	slog.Info("task failed", "task_id", t.ID, "reason", reason)

	s.sendLifecycleNotice(ctx, t, message.KindTaskUpdate, "Task failed: "+t.Name, map[string]any{
		"task_id": t.ID,
		"status":  string(task.StatusFailed),
		"reason":  reason,
	})
	s.publishUpdated(ctx, t, reason)

	return t, nil
}

// Cancel cancels a pending or in-progress task. The cancellation notice
// goes to the assignee, who may still be working.
func (s *DelegationService) Cancel(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := s.tasks.Transition(taskID, task.StatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, t.Status)
	slog.Info("task cancelled", "task_id", t.ID)

	env := message.New(t.FromAgent, t.ToAgent, message.KindTaskUpdate, "Task cancelled: "+t.Name)
	env.InResponseTo = t.LinkedMessageID
	env.Payload = map[string]any{
		"task_id": t.ID,
		"status":  string(task.StatusCancelled),
	}
	if _, err := s.bus.Send(ctx, env); err != nil {
		slog.Warn("cancellation notice failed", "task_id", t.ID, "error", err)
	}
	s.publishUpdated(ctx, t, "")

	return t, nil
}

// Get returns a snapshot of the task with the given id.
func (s *DelegationService) Get(_ context.Context, taskID string) (*task.Task, error) {
	return s.tasks.Get(taskID)
}

// ListByAgent returns the tasks the agent is party to, as delegator or
// assignee, newest first, optionally filtered to one status. An empty
// status means all.
func (s *DelegationService) ListByAgent(_ context.Context, agentID string, status task.Status) []*task.Task {
	all := s.tasks.ListByAgent(agentID)
	if status == "" {
		return all
	}
	filtered := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if t.Status == status {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// checkAssignee verifies that byAgent is the task's assignee. Lifecycle
// steps taken on behalf of the assignee may only be taken by them.
func (s *DelegationService) checkAssignee(taskID, byAgent string) error {
	t, err := s.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if t.ToAgent != byAgent {
		return fmt.Errorf("task %s is assigned to %s, not %s: %w", taskID, t.ToAgent, byAgent, domain.ErrValidation)
	}
	return nil
}

// sendLifecycleNotice sends a lifecycle envelope from the assignee back to
// the delegator, linked to the original delegation. Failures are logged and
// swallowed: the state transition already happened and stands.
func (s *DelegationService) sendLifecycleNotice(ctx context.Context, t *task.Task, kind message.Kind, content string, payload map[string]any) {
	env := message.New(t.ToAgent, t.FromAgent, kind, content)
	env.InResponseTo = t.LinkedMessageID
	env.Payload = payload

	if _, err := s.bus.Send(ctx, env); err != nil {
		slog.Warn("task lifecycle notice failed",
			"task_id", t.ID,
			"type", kind,
			"error", err,
		)
	}
}

// awardCompletion grants the completion award to the assignee. Best-effort:
// a reputation outage never rolls back a completion.
func (s *DelegationService) awardCompletion(ctx context.Context, t *task.Task) {
	if s.rep == nil {
		return
	}
	if err := s.rep.Award(ctx, t.ToAgent, completionAward, "task_completed", t.ID); err != nil {
		slog.Warn("reputation award failed", "task_id", t.ID, "agent_id", t.ToAgent, "error", err)
	}
}

// recordTransition counts a status transition, labelled by target status.
func (s *DelegationService) recordTransition(ctx context.Context, status task.Status) {
	if s.metrics == nil {
		return
	}
	s.metrics.TaskTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", string(status))))
}

func (s *DelegationService) publishUpdated(ctx context.Context, t *task.Task, notes string) {
	publishEvent(ctx, s.events, stream.SubjectTaskUpdated, stream.TaskUpdatedPayload{
		TaskID: t.ID,
		Status: string(t.Status),
		Notes:  notes,
	})
}
