package reminder

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"vetcare/internal/domain/entity"
)

// MinPackageGrams is the smallest package a feeding plan accepts.
const MinPackageGrams = 100

// DepletionReminderDays are the days-left values that trigger a depletion reminder.
var DepletionReminderDays = []int{7, 1}

// FeedingPoint maps a body weight to a recommended daily ration.
type FeedingPoint struct {
	WeightKg float64 `yaml:"weight_kg"`
	Grams    float64 `yaml:"grams"`
}

// FeedingTable is a weight-to-grams lookup table sorted by weight.
type FeedingTable []FeedingPoint

// DefaultFeedingTable is the built-in adult dry food table.
var DefaultFeedingTable = FeedingTable{
	{WeightKg: 2, Grams: 50},
	{WeightKg: 5, Grams: 100},
	{WeightKg: 10, Grams: 175},
	{WeightKg: 20, Grams: 300},
	{WeightKg: 30, Grams: 400},
	{WeightKg: 40, Grams: 480},
	{WeightKg: 60, Grams: 620},
}

var errEmptyTable = errors.New("feeding table is empty")

// Validate checks that the table is non-empty, strictly ascending by weight
// and has positive values.
func (t FeedingTable) Validate() error {
	if len(t) == 0 {
		return errEmptyTable
	}
	for i, p := range t {
		if p.WeightKg <= 0 || p.Grams <= 0 {
			return fmt.Errorf("feeding table entry %d: weight and grams must be positive", i)
		}
		if i > 0 && p.WeightKg <= t[i-1].WeightKg {
			return fmt.Errorf("feeding table entry %d: weights must be strictly ascending", i)
		}
	}
	return nil
}

// ParseFeedingTable decodes a YAML list of {weight_kg, grams} entries.
// Entries are sorted by weight before validation.
func ParseFeedingTable(data []byte) (FeedingTable, error) {
	var doc struct {
		Table FeedingTable `yaml:"feeding_table"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feeding table: %w", err)
	}
	table := doc.Table
	sort.Slice(table, func(i, j int) bool { return table[i].WeightKg < table[j].WeightKg })
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// DailyGrams returns the recommended daily ration for weightKg.
// Between two entries the value is linearly interpolated; outside the table
// it is clamped to the first or last entry.
func (t FeedingTable) DailyGrams(weightKg float64) float64 {
	if len(t) == 0 {
		return 0
	}
	if weightKg <= t[0].WeightKg {
		return t[0].Grams
	}
	last := t[len(t)-1]
	if weightKg >= last.WeightKg {
		return last.Grams
	}
	i := sort.Search(len(t), func(i int) bool { return t[i].WeightKg >= weightKg })
	hi := t[i]
	if hi.WeightKg == weightKg {
		return hi.Grams
	}
	lo := t[i-1]
	ratio := (weightKg - lo.WeightKg) / (hi.WeightKg - lo.WeightKg)
	return lo.Grams + ratio*(hi.Grams-lo.Grams)
}

// Depletion returns floor(packageGrams/dailyGrams) and start plus that many days.
func Depletion(start time.Time, packageGrams int, dailyGrams float64) (daysLeft int, depletesOn time.Time, err error) {
	if packageGrams < MinPackageGrams {
		return 0, time.Time{}, &entity.ValidationError{
			Field:   "package_size_grams",
			Message: fmt.Sprintf("must be at least %d", MinPackageGrams),
		}
	}
	if dailyGrams <= 0 || math.IsNaN(dailyGrams) || math.IsInf(dailyGrams, 0) {
		return 0, time.Time{}, &entity.ValidationError{
			Field:   "daily_grams_recommended",
			Message: "must be positive",
		}
	}
	daysLeft = int(math.Floor(float64(packageGrams) / dailyGrams))
	return daysLeft, AddDays(start, daysLeft), nil
}

// ComputePlan fills the derived fields of plan from its weight, package size
// and start date. It reads nothing but its arguments, so repeated calls with
// the same inputs give the same result.
func ComputePlan(plan *entity.FeedingPlan, table FeedingTable) error {
	if plan.PetWeightKg <= 0 {
		return &entity.ValidationError{Field: "pet_weight_kg", Message: "must be positive"}
	}
	daily := table.DailyGrams(plan.PetWeightKg)
	days, date, err := Depletion(plan.StartDate, plan.PackageSizeGrams, daily)
	if err != nil {
		return err
	}
	plan.DailyGramsRecommended = daily
	plan.EstimatedDaysLeft = days
	plan.ExpectedDepletionDate = date
	return nil
}

// RenewPlan starts a new depletion cycle with a fresh package and re-arms
// the depletion reminder.
func RenewPlan(plan *entity.FeedingPlan, start time.Time, packageGrams int, table FeedingTable) error {
	next := *plan
	next.StartDate = start
	next.PackageSizeGrams = packageGrams
	if err := ComputePlan(&next, table); err != nil {
		return err
	}
	next.NotificationSent = false
	next.Active = true
	*plan = next
	return nil
}

// IsDepletionReminderDay reports whether daysLeft is one of DepletionReminderDays.
func IsDepletionReminderDay(daysLeft int) bool {
	for _, d := range DepletionReminderDays {
		if d == daysLeft {
			return true
		}
	}
	return false
}
