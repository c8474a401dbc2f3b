// Package customer covers signup, the role stub login, customer listing and
// the back-office statistics.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jmehdipour/utility-billing/internal/idgen"
	"github.com/jmehdipour/utility-billing/internal/metrics"
	"github.com/jmehdipour/utility-billing/internal/model"
	"github.com/jmehdipour/utility-billing/internal/repository"
	"github.com/jmehdipour/utility-billing/internal/util"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

var validate = validator.New()

type Service struct {
	store repository.Store
	log   *zap.Logger
}

func New(store repository.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

type SignupInput struct {
	FirstName      string `json:"FirstName"      validate:"required,max=50"`
	LastName       string `json:"LastName"       validate:"required,max=50"`
	PhoneNumber    string `json:"PhoneNumber"    validate:"required,min=7,max=20"`
	Email          string `json:"Email"          validate:"required,email,max=100"`
	ServiceAddress string `json:"ServiceAddress" validate:"required,max=255"`
	City           string `json:"City"           validate:"required,max=50"`
	ZipCode        string `json:"ZipCode"        validate:"required,max=10"`
}

// Validate reports the first failing field as a model.ValidationError.
func (in *SignupInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return model.ValidationError{Field: ve[0].Field(), Message: fmt.Sprintf("failed %q check", ve[0].Tag())}
	}
	return model.ValidationError{Field: "signup", Message: err.Error()}
}

// SignupResult is the pair of rows created by Signup.
type SignupResult struct {
	Customer model.Customer `json:"customer"`
	Account  model.Account  `json:"account"`
}

// Signup registers a customer with one monthly account, both in one transaction.
func (s *Service) Signup(ctx context.Context, in SignupInput) (SignupResult, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PhoneNumber = util.NormalizePhone(in.PhoneNumber)
	if err := in.Validate(); err != nil {
		return SignupResult{}, err
	}

	now := time.Now().UTC()
	var out SignupResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		customerID, err := tx.NextID(ctx, idgen.EntityCustomer)
		if err != nil {
			return fmt.Errorf("allocate customer id: %w", err)
		}
		accountID, err := tx.NextID(ctx, idgen.EntityAccount)
		if err != nil {
			return fmt.Errorf("allocate account id: %w", err)
		}

		c := model.Customer{
			ID:             customerID,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			PhoneNumber:    in.PhoneNumber,
			Email:          in.Email,
			ServiceAddress: strings.TrimSpace(in.ServiceAddress),
			City:           strings.TrimSpace(in.City),
			ZipCode:        strings.TrimSpace(in.ZipCode),
			Status:         model.CustomerActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertCustomer(ctx, c); err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}

		a := model.Account{
			ID:               accountID,
			CustomerID:       customerID,
			ServiceStartDate: now.Truncate(24 * time.Hour),
			BillingCycle:     model.BillingCycleMonthly,
			Balance:          decimal.Zero,
			CreatedAt:        now,
		}
		if err := tx.InsertAccount(ctx, a); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}

		out = SignupResult{Customer: c, Account: a}
		return nil
	})
	if err != nil {
		s.log.Error("signup failed", zap.Error(err))
		return SignupResult{}, model.StoreError("signup", err)
	}

	metrics.IDsAllocated.WithLabelValues(idgen.EntityCustomer.String()).Inc()
	metrics.IDsAllocated.WithLabelValues(idgen.EntityAccount.String()).Inc()
	s.log.Info("customer signed up",
		zap.String("customer_id", out.Customer.ID),
		zap.String("account_id", out.Account.ID),
	)
	return out, nil
}

// Session is what the login stub hands back; there is no token.
type Session struct {
	Role       string          `json:"role"`
	CustomerID string          `json:"customer_id,omitempty"`
	Customer   *model.Customer `json:"customer,omitempty"`
}

// Login accepts any admin and any customer that exists.
func (s *Service) Login(ctx context.Context, role, customerID string) (Session, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return Session{Role: RoleAdmin}, nil
	case RoleCustomer:
		c, err := s.GetCustomer(ctx, strings.TrimSpace(customerID))
		if err != nil {
			return Session{}, err
		}
		return Session{Role: RoleCustomer, CustomerID: c.ID, Customer: &c}, nil
	default:
		return Session{}, fmt.Errorf("%w: %q", model.ErrInvalidRole, role)
	}
}

func (s *Service) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, model.StoreError("list customers", err)
	}
	if rows == nil {
		rows = []model.Customer{}
	}
	return rows, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	if id == "" {
		return model.Customer{}, model.ValidationError{Field: "CustomerID", Message: "required"}
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return model.Customer{}, model.StoreError("get customer", err)
	}
	if c == nil {
		return model.Customer{}, fmt.Errorf("%w: %s", model.ErrUnknownCustomer, id)
	}
	return *c, nil
}

// Stats returns the admin dashboard counters.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return model.Stats{}, model.StoreError("stats", err)
	}
	return st, nil
}
