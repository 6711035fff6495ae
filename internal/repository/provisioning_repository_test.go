package repository

import (
	"context"
	"testing"
	"time"

	"workspace-commerce/internal/database/dbtest"
	"workspace-commerce/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisioningRepository(t *testing.T) {
	db := dbtest.Setup(t)
	orders := NewOrderRepository(db.Pool, zerolog.Nop())
	repo := NewProvisioningRepository(db.Pool, zerolog.Nop())
	ctx := context.Background()

	order := newTestOrder("user-1", nil)
	insertOrder(t, db.Pool, order)

	now := time.Now().UTC().Truncate(time.Microsecond)
	project := &model.Project{
		ID:          uuid.New(),
		UserID:      "user-1",
		OrderID:     order.ID,
		Name:        "Website Setup",
		Description: "Website Setup",
		Status:      model.ProjectStatusPlanning,
		CreatedAt:   now,
	}
	subs := []model.Subscription{
		{
			ID:              uuid.New(),
			UserID:          "user-1",
			OrderID:         order.ID,
			PlanName:        "Workspace Pro",
			Status:          model.SubscriptionStatusActive,
			StartDate:       now,
			NextBillingDate: now.AddDate(0, 1, 0),
			BillingPeriod:   model.BillingPeriodMonthly,
			CreatedAt:       now,
		},
	}

	tx, err := orders.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.CreateProject(ctx, tx, project))
	require.NoError(t, repo.CreateSubscriptions(ctx, tx, subs))
	require.NoError(t, repo.CreateSubscriptions(ctx, tx, nil))
	require.NoError(t, tx.Commit(ctx))

	gotProject, err := repo.GetProjectByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, gotProject)
	assert.Equal(t, project.ID, gotProject.ID)
	assert.Equal(t, model.ProjectStatusPlanning, gotProject.Status)
	assert.Equal(t, 0, gotProject.Progress)

	gotSubs, err := repo.ListSubscriptionsByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, gotSubs, 1)
	assert.Equal(t, "Workspace Pro", gotSubs[0].PlanName)
	assert.True(t, gotSubs[0].NextBillingDate.Equal(now.AddDate(0, 1, 0)))

	missing, err := repo.GetProjectByOrderID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	// One project per order.
	tx, err = orders.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	dup := *project
	dup.ID = uuid.New()
	assert.Error(t, repo.CreateProject(ctx, tx, &dup))
}
