package model

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the delivery state of a project.
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in-progress"
	ProjectStatusReview     ProjectStatus = "review"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// Project groups the delivery work for one order.
type Project struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	UserID      string        `json:"userId" db:"user_id"`
	OrderID     uuid.UUID     `json:"orderId" db:"order_id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	Status      ProjectStatus `json:"status" db:"status"`
	Progress    int           `json:"progress" db:"progress"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
}

// SubscriptionStatus is the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a recurring plan created from one recurring order item.
type Subscription struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	UserID          string             `json:"userId" db:"user_id"`
	OrderID         uuid.UUID          `json:"orderId" db:"order_id"`
	PlanName        string             `json:"planName" db:"plan_name"`
	Status          SubscriptionStatus `json:"status" db:"status"`
	StartDate       time.Time          `json:"startDate" db:"start_date"`
	NextBillingDate time.Time          `json:"nextBillingDate" db:"next_billing_date"`
	BillingPeriod   BillingPeriod      `json:"billingPeriod" db:"billing_period"`
	CreatedAt       time.Time          `json:"createdAt" db:"created_at"`
}

// NextBillingDate returns the first renewal date for a period starting at start.
func NextBillingDate(start time.Time, period BillingPeriod) time.Time {
	if period == BillingPeriodYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
