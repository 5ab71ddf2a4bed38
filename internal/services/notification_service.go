package services

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/doarsal/readymarket-backend-sub002/internal/models"
)

// NotificationService fans failure alerts out to every configured operator
// recipient over email and WhatsApp. Delivery is strictly best effort: one
// dead recipient or channel never stops the others, and nothing here ever
// feeds back into the pipeline's outcome.
type NotificationService struct {
	db    *gorm.DB
	email *EmailService
	waha  *WahaService
}

func NewNotificationService(db *gorm.DB, email *EmailService, waha *WahaService) *NotificationService {
	return &NotificationService{db: db, email: email, waha: waha}
}

// NotifyFailure sends the alert to all active recipients on every channel
// they have an address for.
func (s *NotificationService) NotifyFailure(order *models.Order, message string, details map[string]string) {
	var recipients []models.NotificationRecipient
	if err := s.db.Where("is_active = ?", true).Find(&recipients).Error; err != nil {
		log.Printf("failed to load notification recipients: %v", err)
		return
	}
	if len(recipients) == 0 {
		log.Printf("no notification recipients configured, dropping alert: %s", message)
		return
	}

	subject := message
	if order != nil {
		subject = fmt.Sprintf("[%s] %s", order.OrderNumber, message)
	}
	body := buildAlertBody(message, details)

	for _, r := range recipients {
		if r.Email != "" && s.email != nil {
			if err := s.email.SendEmail([]string{r.Email}, subject, body); err != nil {
				log.Printf("alert email to %s failed: %v", r.Email, err)
			}
		}
		if r.Phone != "" && s.waha != nil {
			if err := s.waha.SendMessage(r.Phone, subject+"\n\n"+body); err != nil {
				log.Printf("alert whatsapp to %s failed: %v", r.Phone, err)
			}
		}
	}
}

func buildAlertBody(message string, details map[string]string) string {
	var sb strings.Builder
	sb.WriteString(message)
	sb.WriteString("\n")

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if details[k] == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, details[k]))
	}
	return sb.String()
}
