// Package lifecycle owns service-change requests: submission, listing and the
// Pending -> Approved|Rejected decision together with its meter provisioning.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
	"github.com/jmehdipour/utility-billing/internal/service/directory"
	"github.com/jmehdipour/utility-billing/internal/util"
)

const (
	DefaultTopic = "ubms.requests"

	aggregateRequest = "request"
	maxRequestIDLen  = 32
)

type Service struct {
	store repository.Store
	topic string
	log   *zap.Logger
	now   func() time.Time
}

// New constructs the lifecycle manager. Events are written to the outbox
// addressed to topic.
func New(store repository.Store, topic string, log *zap.Logger) *Service {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		topic: topic,
		log:   log,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// SubmitInput describes a new request. RequestID is optional; when empty an
// identifier is allocated from the request sequence.
type SubmitInput struct {
	RequestID   string
	CustomerID  string
	UtilityType model.UtilityType
	Action      model.RequestAction
}

// Submit records a Pending request. Re-submitting an identical request under
// the same caller-supplied id returns the stored one.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (model.Request, error) {
	in, err := normalizeSubmit(in)
	if err != nil {
		return model.Request{}, err
	}

	req := model.Request{
		ID:          in.RequestID,
		CustomerID:  in.CustomerID,
		UtilityType: in.UtilityType,
		Action:      in.Action,
		Status:      model.RequestPending,
		RequestDate: s.now(),
	}

	var (
		replayed  bool
		allocated bool
	)
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		c, err := tx.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return fmt.Errorf("get customer: %w", err)
		}
		if c == nil {
			return fmt.Errorf("%w: %s", model.ErrUnknownCustomer, req.CustomerID)
		}

		if req.ID != "" {
			existing, err := tx.GetRequestForUpdate(ctx, req.ID)
			if err != nil {
				return fmt.Errorf("lock request: %w", err)
			}
			if existing != nil {
				if !sameRequest(*existing, in) {
					return fmt.Errorf("%w: %s", model.ErrRequestExists, req.ID)
				}
				req, replayed = *existing, true
				return nil
			}
			if err := tx.ReserveID(ctx, idgen.EntityRequest, req.ID); err != nil {
				return fmt.Errorf("reserve request id: %w", err)
			}
		} else {
			if req.ID, err = tx.NextID(ctx, idgen.EntityRequest); err != nil {
				return fmt.Errorf("allocate request id: %w", err)
			}
			allocated = true
		}

		if err := tx.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return s.emit(ctx, tx, model.Envelope{Type: model.EventRequestSubmitted, Request: req})
	})
	if err != nil {
		s.log.Error("submit request failed", zap.String("customer_id", in.CustomerID), zap.Error(err))
		return model.Request{}, model.StoreError("submit request", err)
	}

	if replayed {
		s.log.Info("request replayed", zap.String("request_id", req.ID))
		return req, nil
	}
	if allocated {
		metrics.IDsAllocated.WithLabelValues(idgen.EntityRequest.String()).Inc()
	}
	metrics.RequestsTotal.WithLabelValues(req.Action.String(), req.Status.String()).Inc()

	s.log.Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("customer_id", req.CustomerID),
		zap.String("utility_type", string(req.UtilityType)),
		zap.String("action", req.Action.String()),
	)
	return req, nil
}

// normalizeSubmit trims identifiers and defaults an empty action to connect.
func normalizeSubmit(in SubmitInput) (SubmitInput, error) {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.CustomerID = strings.TrimSpace(in.CustomerID)

	if in.CustomerID == "" {
		return in, model.ValidationError{Field: "CustomerID", Message: "required"}
	}
	if !in.UtilityType.Valid() {
		return in, model.InvalidUtility("UtilityType", in.UtilityType)
	}
	action, ok := model.ParseRequestAction(string(in.Action))
	if !ok {
		return in, model.ValidationError{Field: "Action", Message: fmt.Sprintf("unsupported action %q", in.Action)}
	}
	in.Action = action
	if len(in.RequestID) > maxRequestIDLen {
		return in, model.ValidationError{Field: "RequestID", Message: "too long"}
	}
	if idgen.HasPrefix(idgen.EntityRequest, in.RequestID) {
		if _, err := idgen.Parse(idgen.EntityRequest, in.RequestID); err != nil {
			return in, model.ValidationError{Field: "RequestID", Message: fmt.Sprintf("%q does not follow the request id format", in.RequestID), Err: err}
		}
	}
	return in, nil
}

func sameRequest(r model.Request, in SubmitInput) bool {
	return r.CustomerID == in.CustomerID && r.UtilityType == in.UtilityType && r.Action == in.Action
}

// List returns requests in scope, newest first. A deployment whose request
// storage was never initialised reads as empty.
func (s *Service) List(ctx context.Context, scope model.RequestScope) ([]model.Request, error) {
	if scope.Status != "" && !scope.Status.Valid() {
		return nil, model.ValidationError{Field: "Status", Message: fmt.Sprintf("unknown status %q", scope.Status)}
	}

	rows, err := s.store.ListRequests(ctx, scope)
	if errors.Is(err, model.ErrEntityUninitialized) {
		s.log.Warn("requests storage not initialised, returning empty list", zap.Error(err))
		return []model.Request{}, nil
	}
	if err != nil {
		return nil, model.StoreError("list requests", err)
	}
	if rows == nil {
		rows = []model.Request{}
	}
	return rows, nil
}

// Decide moves a Pending request to Approved or Rejected. Approval of a
// connect provisions a meter on the customer's primary account and approval
// of a disconnect retires the customer's active meters of that utility, in
// the same transaction as the status change.
//
// When a connect cannot be provisioned because the customer holds no account
// the request stays Pending, a deferral event is recorded and
// ErrProvisioningDeferred is returned.
func (s *Service) Decide(ctx context.Context, requestID string, status model.RequestStatus) (model.Decision, error) {
	if status != model.RequestApproved && status != model.RequestRejected {
		return model.Decision{}, fmt.Errorf("%w: cannot decide to %q", model.ErrInvalidTransition, status)
	}

	var (
		out      model.Decision
		deferred bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, model.ErrEntityUninitialized) {
				return fmt.Errorf("%w: %s", model.ErrUnknownRequest, requestID)
			}
			return fmt.Errorf("lock request: %w", err)
		}
		if req == nil {
			return fmt.Errorf("%w: %s", model.ErrUnknownRequest, requestID)
		}
		if req.Status != model.RequestPending {
			return fmt.Errorf("%w: %s is already %s", model.ErrInvalidTransition, req.ID, req.Status)
		}

		at := s.now()
		out = model.Decision{}

		if status == model.RequestApproved {
			switch req.Action {
			case model.ActionConnect:
				acc, err := primaryAccount(ctx, tx, req.CustomerID)
				if err != nil {
					return err
				}
				if acc == nil {
					deferred = true
					return s.emit(ctx, tx, model.Envelope{
						Type:    model.EventRequestProvisioningDeferred,
						Request: *req,
						Reason:  "customer has no account",
					})
				}
				reqID := req.ID
				m, err := directory.CreateMeterTx(ctx, tx, acc.ID, req.UtilityType, &reqID, at)
				if err != nil {
					return err
				}
				out.Meter = &m

			case model.ActionDisconnect:
				retired, err := directory.DeactivateMetersTx(ctx, tx, req.CustomerID, req.UtilityType, at)
				if err != nil {
					return err
				}
				out.DeactivatedMeters = retired
			}
		}

		if err := tx.UpdateRequestStatus(ctx, req.ID, status, at); err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		req.Status = status
		req.DecidedAt = &at
		out.Request = *req

		env := model.Envelope{Type: model.EventRequestDecided, Request: *req}
		if out.Meter != nil {
			env.MeterID = out.Meter.ID
		}
		return s.emit(ctx, tx, env)
	})
	if err != nil {
		if !model.IsValidation(err) {
			metrics.Provisioning.WithLabelValues("failed").Inc()
			s.log.Error("decide request failed", zap.String("request_id", requestID), zap.Error(err))
		}
		return model.Decision{}, model.StoreError("decide request", err)
	}

	if deferred {
		metrics.Provisioning.WithLabelValues("deferred").Inc()
		s.log.Warn("provisioning deferred, request left pending", zap.String("request_id", requestID))
		return model.Decision{}, fmt.Errorf("%w: %s has no account to provision", model.ErrProvisioningDeferred, requestID)
	}

	s.record(out)
	return out, nil
}

func (s *Service) record(d model.Decision) {
	r := d.Request
	metrics.RequestsTotal.WithLabelValues(r.Action.String(), r.Status.String()).Inc()

	fields := []zap.Field{
		zap.String("request_id", r.ID),
		zap.String("customer_id", r.CustomerID),
		zap.String("action", r.Action.String()),
		zap.String("status", r.Status.String()),
	}
	switch {
	case d.Meter != nil:
		metrics.IDsAllocated.WithLabelValues(idgen.EntityMeter.String()).Inc()
		metrics.Provisioning.WithLabelValues("created").Inc()
		fields = append(fields, zap.String("meter_id", d.Meter.ID))
	case r.Status == model.RequestApproved && r.Action == model.ActionDisconnect:
		metrics.Provisioning.WithLabelValues("deactivated").Add(float64(len(d.DeactivatedMeters)))
		fields = append(fields, zap.Int("meters_deactivated", len(d.DeactivatedMeters)))
		if len(d.DeactivatedMeters) == 0 {
			s.log.Info("disconnect approved with no active meters", zap.String("request_id", r.ID))
		}
	}
	s.log.Info("request decided", fields...)
}

// primaryAccount is the customer's account with the lowest identifier.
func primaryAccount(ctx context.Context, tx repository.Tx, customerID string) (*model.Account, error) {
	accounts, err := tx.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	best := accounts[0]
	for _, a := range accounts[1:] {
		if accountLess(a.ID, best.ID) {
			best = a
		}
	}
	return &best, nil
}

func accountLess(a, b string) bool {
	na, errA := idgen.Parse(idgen.EntityAccount, a)
	nb, errB := idgen.Parse(idgen.EntityAccount, b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

func (s *Service) emit(ctx context.Context, tx repository.Tx, env model.Envelope) error {
	env.ID = util.New()
	env.OccurredAt = s.now()

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := tx.InsertOutbox(ctx, aggregateRequest, env.Request.ID, s.topic, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
