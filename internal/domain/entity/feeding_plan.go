package entity

import "time"

// FeedingPlan tracks food consumption for one pet and one product.
//
// EstimatedDaysLeft and ExpectedDepletionDate are derived values; they are
// recomputed whenever weight, package size or product change.
type FeedingPlan struct {
	ID          string
	PetID       string
	PetName     string
	OwnerID     string
	ProductID   string
	ProductName string

	PetWeightKg           float64
	PackageSizeGrams      int
	DailyGramsRecommended float64

	StartDate             time.Time
	ExpectedDepletionDate time.Time
	EstimatedDaysLeft     int

	// NotificationSent guards the depletion reminder for the current cycle.
	NotificationSent bool
	Active           bool

	UpdatedAt time.Time
}
