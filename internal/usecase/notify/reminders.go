package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"vetcare/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// VaccinationReminder is the input of SendVaccinationReminder.
type VaccinationReminder struct {
	UserID      string
	PetName     string
	VaccineName string
	DueDate     time.Time
	Milestone   entity.Milestone
}

// FoodDepletionReminder is the input of SendFoodDepletionReminder.
type FoodDepletionReminder struct {
	UserID        string
	PetName       string
	ProductName   string
	DepletionDate time.Time
	DaysLeft      int
	DailyGrams    float64
}

// OrderUpdate is the input of SendOrderUpdate.
type OrderUpdate struct {
	UserID      string
	OrderNumber string
	Status      string
}

// orderUpdateChannels puts email first: order confirmations are receipts.
var orderUpdateChannels = []entity.ChannelKind{entity.ChannelEmail, entity.ChannelInApp}

// SendVaccinationReminder implements Service.SendVaccinationReminder.
func (s *service) SendVaccinationReminder(ctx context.Context, r VaccinationReminder) (*entity.Notification, error) {
	due := r.DueDate.In(s.location).Format(dateLayout)
	meta := entity.Meta{
		Type: entity.MetaVaccinationReminder,
		Fields: map[string]string{
			entity.MetaKeyPetName:     r.PetName,
			entity.MetaKeyVaccineName: r.VaccineName,
			entity.MetaKeyDueDate:     due,
			entity.MetaKeyMilestone:   r.Milestone.String(),
		},
	}
	title := fmt.Sprintf("%s: %s vaccination %s", r.PetName, r.VaccineName, duePhrase(r.Milestone.String()))
	body := fmt.Sprintf("%s's %s vaccination is due on %s.", r.PetName, r.VaccineName, due)
	return s.Notify(ctx, r.UserID, title, body, Options{
		Channels: entity.DefaultReminderChannels,
		Meta:     meta,
	})
}

// SendFoodDepletionReminder implements Service.SendFoodDepletionReminder.
func (s *service) SendFoodDepletionReminder(ctx context.Context, r FoodDepletionReminder) (*entity.Notification, error) {
	depletes := r.DepletionDate.In(s.location).Format(dateLayout)
	fields := map[string]string{
		entity.MetaKeyPetName:       r.PetName,
		entity.MetaKeyProductName:   r.ProductName,
		entity.MetaKeyDepletionDate: depletes,
		entity.MetaKeyDailyGrams:    strconv.FormatFloat(r.DailyGrams, 'f', -1, 64),
	}
	if r.DaysLeft > 0 {
		fields[entity.MetaKeyDaysLeft] = strconv.Itoa(r.DaysLeft)
	}
	if r.ProductName == "" {
		fields[entity.MetaKeyProductName] = "The food"
	}
	title := fmt.Sprintf("%s's food is running low", r.PetName)
	body := fmt.Sprintf("Expected to run out on %s at %s g per day.", depletes, fields[entity.MetaKeyDailyGrams])
	return s.Notify(ctx, r.UserID, title, body, Options{
		Channels: entity.DefaultReminderChannels,
		Meta:     entity.Meta{Type: entity.MetaFoodDepletion, Fields: fields},
	})
}

// SendOrderUpdate implements Service.SendOrderUpdate.
func (s *service) SendOrderUpdate(ctx context.Context, u OrderUpdate) (*entity.Notification, error) {
	title := fmt.Sprintf("Order %s: %s", u.OrderNumber, u.Status)
	body := fmt.Sprintf("Your order %s is now %s.", u.OrderNumber, u.Status)
	return s.Notify(ctx, u.UserID, title, body, Options{
		Channels: orderUpdateChannels,
		Meta: entity.Meta{
			Type: entity.MetaOrderUpdate,
			Fields: map[string]string{
				entity.MetaKeyOrderNumber: u.OrderNumber,
				entity.MetaKeyOrderStatus: u.Status,
			},
		},
	})
}
