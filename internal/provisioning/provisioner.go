// Package provisioning creates the project and subscriptions that fulfil an order.
package provisioning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workspace-commerce/internal/model"
	"workspace-commerce/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultPlanName = "Workspace plan"

// Provisioner derives operational artifacts from an order's items.
type Provisioner struct {
	repo   repository.ProvisioningRepository
	now    func() time.Time
	logger zerolog.Logger
}

// NewProvisioner creates a provisioner writing through repo.
func NewProvisioner(repo repository.ProvisioningRepository, logger zerolog.Logger) *Provisioner {
	return &Provisioner{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("service", "provisioning").Logger(),
	}
}

// WithClock overrides the time source.
func (p *Provisioner) WithClock(now func() time.Time) *Provisioner {
	p.now = now
	return p
}

// Provision persists one project for the order and one subscription per
// recurring item, inside the caller's transaction.
func (p *Provisioner) Provision(ctx context.Context, tx pgx.Tx, order *model.Order) (*model.Project, []model.Subscription, error) {
	now := p.now().UTC()

	project := BuildProject(order, now)
	if err := p.repo.CreateProject(ctx, tx, project); err != nil {
		return nil, nil, fmt.Errorf("failed to provision project: %w", err)
	}

	subs := BuildSubscriptions(order, now)
	if err := p.repo.CreateSubscriptions(ctx, tx, subs); err != nil {
		return nil, nil, fmt.Errorf("failed to provision subscriptions: %w", err)
	}

	p.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("project_id", project.ID.String()).
		Int("subscription_count", len(subs)).
		Msg("order provisioned")

	return project, subs, nil
}

// BuildProject returns the single project grouping an order's work.
func BuildProject(order *model.Order, now time.Time) *model.Project {
	var title string
	if len(order.Items) > 0 {
		title = strings.TrimSpace(order.Items[0].Title)
	}

	name := title
	if name == "" {
		name = fallbackProjectName(order.ID)
	}

	return &model.Project{
		ID:          uuid.New(),
		UserID:      order.OwnerID,
		OrderID:     order.ID,
		Name:        name,
		Description: title,
		Status:      model.ProjectStatusPlanning,
		Progress:    0,
		CreatedAt:   now,
	}
}

// fallbackProjectName labels a project by the last six characters of the order id.
func fallbackProjectName(orderID uuid.UUID) string {
	id := strings.ReplaceAll(orderID.String(), "-", "")
	return "Project #" + strings.ToUpper(id[len(id)-6:])
}

// BuildSubscriptions returns one active subscription per recurring item.
func BuildSubscriptions(order *model.Order, now time.Time) []model.Subscription {
	subs := make([]model.Subscription, 0)
	for _, item := range order.Items {
		if !item.BillingPeriod.IsRecurring() {
			continue
		}
		subs = append(subs, model.Subscription{
			ID:              uuid.New(),
			UserID:          order.OwnerID,
			OrderID:         order.ID,
			PlanName:        planName(item),
			Status:          model.SubscriptionStatusActive,
			StartDate:       now,
			NextBillingDate: model.NextBillingDate(now, item.BillingPeriod),
			BillingPeriod:   item.BillingPeriod,
			CreatedAt:       now,
		})
	}
	return subs
}

func planName(item model.OrderItem) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	if id := strings.TrimSpace(item.SourceID); id != "" {
		return id
	}
	return defaultPlanName
}
