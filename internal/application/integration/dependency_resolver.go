package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/infrastructure/logger"
)

// CustomerDependency describes the customer an order refers to
type CustomerDependency struct {
	TenantID uuid.UUID
	Source   integration.Connector
	Target   integration.Connector
	// SourceID is the customer ID in the source system, if the order carries one
	SourceID string
	Email    string
	Name     string
	DryRun   bool
}

// DependencyResult is the resolved target customer
type DependencyResult struct {
	TargetID string
	// Created is set when the customer had to be created on the target
	Created bool
	// WouldCreate is set on dry runs where a customer would have been created
	WouldCreate bool
}

// DependencyResolver makes sure an order's customer exists on the target
// before the order is written. The correlation is persisted before it
// returns, and concurrent orders for the same customer create it once.
type DependencyResolver struct {
	idMapper *IDMapper
	group    singleflight.Group
	logger   *zap.Logger
}

// NewDependencyResolver creates a DependencyResolver
func NewDependencyResolver(idMapper *IDMapper, logger *zap.Logger) *DependencyResolver {
	return &DependencyResolver{idMapper: idMapper, logger: logger}
}

// ResolveCustomer returns the target ID of the order's customer, resolving it
// through the ID mapper, then by email on the target, then by creating it.
func (r *DependencyResolver) ResolveCustomer(ctx context.Context, dep CustomerDependency) (*DependencyResult, error) {
	src, tgt := dep.Source.System(), dep.Target.System()
	email := strings.ToLower(strings.TrimSpace(dep.Email))
	if dep.SourceID == "" && email != "" {
		id, err := sourceIDByEmail(ctx, dep, email)
		if err != nil {
			return nil, err
		}
		dep.SourceID = id
	}
	if dep.SourceID == "" {
		if email == "" {
			return nil, integration.NewValidationError("order has no customer reference",
				integration.FieldError{Field: "customer_email", Message: "required to resolve the customer"})
		}
		// Nothing could key the correlation, so each order would create another customer
		if _, ok := dep.Target.(integration.Lookuper); !ok {
			return nil, integration.NewValidationError("order customer cannot be correlated",
				integration.FieldError{Field: "customer_id", Message: fmt.Sprintf("required when %s has no email lookup", tgt)})
		}
	}

	if dep.SourceID != "" {
		id, found, err := r.idMapper.ResolveID(ctx, dep.TenantID, integration.EntityTypeCustomer, src, dep.SourceID, tgt)
		if err != nil {
			return nil, err
		}
		if found {
			return &DependencyResult{TargetID: id}, nil
		}
	}

	key := fmt.Sprintf("%s:%s:%s:%s:%s", dep.TenantID, src, tgt, dep.SourceID, email)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolveOnce(ctx, dep, email)
	})
	if err != nil {
		return nil, err
	}
	res := *(v.(*DependencyResult))
	return &res, nil
}

func (r *DependencyResolver) resolveOnce(ctx context.Context, dep CustomerDependency, email string) (*DependencyResult, error) {
	src, tgt := dep.Source.System(), dep.Target.System()

	// Another caller may have finished between the first check and the flight
	if dep.SourceID != "" {
		id, found, err := r.idMapper.ResolveID(ctx, dep.TenantID, integration.EntityTypeCustomer, src, dep.SourceID, tgt)
		if err != nil {
			return nil, err
		}
		if found {
			return &DependencyResult{TargetID: id}, nil
		}
	}

	customer, err := r.sourceCustomer(ctx, dep, email)
	if err != nil {
		return nil, err
	}
	hash, err := integration.ContentHash(customer)
	if err != nil {
		return nil, err
	}

	if lookuper, ok := dep.Target.(integration.Lookuper); ok && email != "" {
		remoteID, found, err := lookuper.Lookup(ctx, dep.TenantID, integration.EntityTypeCustomer, "email", email)
		if err != nil {
			return nil, err
		}
		if found {
			if err := r.persist(ctx, dep, remoteID, hash); err != nil {
				return nil, err
			}
			r.logger.Debug("Customer dependency matched by email",
				zap.String("tenant_id", dep.TenantID.String()),
				zap.String("target_system", string(tgt)),
				logger.Email("email", email),
				zap.String("target_id", remoteID),
			)
			return &DependencyResult{TargetID: remoteID}, nil
		}
	}

	if dep.DryRun {
		return &DependencyResult{WouldCreate: true}, nil
	}

	res, err := dep.Target.Push(ctx, integration.PushRequest{
		TenantID:   dep.TenantID,
		EntityType: integration.EntityTypeCustomer,
		Entity:     customer,
	})
	if err != nil {
		return nil, fmt.Errorf("create customer on %s: %w", tgt, err)
	}
	if err := r.persist(ctx, dep, res.RemoteID, hash); err != nil {
		return nil, err
	}
	r.logger.Info("Customer dependency created",
		zap.String("tenant_id", dep.TenantID.String()),
		zap.String("target_system", string(tgt)),
		logger.Email("email", email),
		zap.String("target_id", res.RemoteID),
	)
	return &DependencyResult{TargetID: res.RemoteID, Created: true}, nil
}

// sourceIDByEmail finds the source customer of an email-only order
func sourceIDByEmail(ctx context.Context, dep CustomerDependency, email string) (string, error) {
	lookuper, ok := dep.Source.(integration.Lookuper)
	if !ok {
		return "", nil
	}
	id, _, err := lookuper.Lookup(ctx, dep.TenantID, integration.EntityTypeCustomer, "email", email)
	if err != nil {
		return "", fmt.Errorf("look up source customer: %w", err)
	}
	return id, nil
}

// sourceCustomer reads the full customer from the source when it can, and
// otherwise builds one from the order's denormalized fields
func (r *DependencyResolver) sourceCustomer(ctx context.Context, dep CustomerDependency, email string) (*integration.Customer, error) {
	if getter, ok := dep.Source.(integration.Getter); ok && dep.SourceID != "" {
		rec, err := getter.Get(ctx, dep.TenantID, integration.EntityTypeCustomer, dep.SourceID)
		if err == nil {
			e, err := dep.Source.Codec().Decode(*rec)
			if err != nil {
				return nil, err
			}
			if c, ok := e.(*integration.Customer); ok {
				return c, nil
			}
		} else if integration.KindOf(err) != integration.ErrorKindInternal {
			return nil, err
		}
	}
	first, last, _ := strings.Cut(strings.TrimSpace(dep.Name), " ")
	return &integration.Customer{
		ID:        dep.SourceID,
		Email:     email,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
	}, nil
}

// persist records the correlation. Without a source ID there is nothing to
// key the row on; ResolveCustomer only gets here when the target can repeat
// the email lookup next time.
func (r *DependencyResolver) persist(ctx context.Context, dep CustomerDependency, targetID, hash string) error {
	if dep.SourceID == "" || dep.DryRun {
		return nil
	}
	_, err := r.idMapper.Record(ctx, dep.TenantID, integration.EntityTypeCustomer,
		dep.Source.System(), dep.SourceID, dep.Target.System(), targetID, hash)
	return err
}
