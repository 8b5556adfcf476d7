package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/hypertrain"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/notifications"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const MaxBodyBytes = int64(65536)

const (
	metaUserID   = "userId"
	metaProduct  = "product"
	metaQuantity = "quantity"
	metaItemID   = "itemId"
)

var (
	errInvalidMetadata = errors.New("invalid checkout metadata")
	errDuplicateEvent  = errors.New("event already processed")
)

var handledEvents = map[stripe.EventType]bool{
	stripe.EventTypeCheckoutSessionCompleted:             true,
	stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded: true,
}

type purchase struct {
	UserID   string
	Product  Product
	Quantity int
	ItemID   string
}

func parsePurchase(metadata map[string]string) (*purchase, error) {
	p := &purchase{
		UserID:  metadata[metaUserID],
		Product: Product(metadata[metaProduct]),
		ItemID:  metadata[metaItemID],
	}
	if p.UserID == "" {
		return nil, fmt.Errorf("%w: missing %s", errInvalidMetadata, metaUserID)
	}
	q, err := strconv.Atoi(metadata[metaQuantity])
	if err != nil || q < MinQuantity || q > MaxQuantity {
		return nil, fmt.Errorf("%w: bad %s %q", errInvalidMetadata, metaQuantity, metadata[metaQuantity])
	}
	p.Quantity = q

	switch p.Product {
	case ProductPokes, ProductBoosts:
	case ProductHypertrain:
		if p.ItemID == "" {
			return nil, fmt.Errorf("%w: missing %s", errInvalidMetadata, metaItemID)
		}
	default:
		return nil, fmt.Errorf("%w: unknown product %q", errInvalidMetadata, p.Product)
	}
	return p, nil
}

func addCredits(tx *gorm.DB, userID, column string, n int) error {
	res := tx.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn(column, gorm.Expr(column+" + ?", n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: unknown user %s", errInvalidMetadata, userID)
	}
	return nil
}

// fulfil applies the side effects of a paid checkout session.
func fulfil(tx *gorm.DB, p *purchase, s *stripe.CheckoutSession, now time.Time) error {
	switch p.Product {
	case ProductPokes:
		if err := addCredits(tx, p.UserID, "available_pokes", p.Quantity); err != nil {
			return err
		}
	case ProductBoosts:
		if err := addCredits(tx, p.UserID, "available_boosts", p.Quantity); err != nil {
			return err
		}
	case ProductHypertrain:
		target, err := hypertrain.ResolveTarget(tx, p.UserID, p.ItemID)
		if errors.Is(err, hypertrain.ErrUnknownTarget) {
			return fmt.Errorf("%w: %v", errInvalidMetadata, err)
		}
		if err != nil {
			return err
		}
		if _, err := hypertrain.Grant(tx, p.UserID, target, p.Quantity, now); err != nil {
			return err
		}
	}

	if s.Customer != nil && s.Customer.ID != "" {
		if err := tx.Model(&models.User{}).Where("id = ? AND (stripe_customer_id = '' OR stripe_customer_id IS NULL)", p.UserID).
			Update("stripe_customer_id", s.Customer.ID).Error; err != nil {
			return err
		}
	}

	return notifications.Notify(tx, p.UserID, models.NotificationPurchaseCompleted, map[string]interface{}{
		"product":    string(p.Product),
		"quantity":   p.Quantity,
		"item_id":    p.ItemID,
		"session_id": s.ID,
	})
}

// process records the event and fulfils the purchase in one transaction so
// a replayed event is a no-op.
func process(db *gorm.DB, event stripe.Event, p *purchase, s *stripe.CheckoutSession) error {
	now := time.Now().UTC()
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.StripeEvent{
			ID:          event.ID,
			Type:        string(event.Type),
			ProcessedAt: now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errDuplicateEvent
		}
		return fulfil(tx, p, s, now)
	})
}

func StripeWebhook(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, c.Request.Header.Get("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			logger.L().Warn("stripe webhook signature verification failed", "error", err)
			utils.WebhookEvents.WithLabelValues("stripe", "unknown", "bad_signature").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}

		eventType := string(event.Type)
		ack := func(outcome string) {
			utils.WebhookEvents.WithLabelValues("stripe", eventType, outcome).Inc()
			c.JSON(http.StatusOK, gin.H{"received": true})
		}

		if !handledEvents[event.Type] {
			ack("ignored")
			return
		}

		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			logger.L().Error("failed to parse checkout session", "event_id", event.ID, "error", err)
			ack("malformed")
			return
		}
		if event.Type == stripe.EventTypeCheckoutSessionCompleted && s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// async payment methods settle later with their own event
			ack("unpaid")
			return
		}

		p, err := parsePurchase(s.Metadata)
		if err != nil {
			logger.L().Error("checkout session has unusable metadata", "event_id", event.ID, "session_id", s.ID, "error", err)
			ack("invalid_metadata")
			return
		}

		err = process(utils.DB, event, p, &s)
		switch {
		case err == nil:
			logger.L().Info("checkout fulfilled", "event_id", event.ID, "user_id", p.UserID, "product", p.Product, "quantity", p.Quantity)
			ack("processed")
		case errors.Is(err, errDuplicateEvent):
			ack("duplicate")
		case errors.Is(err, errInvalidMetadata):
			logger.L().Error("checkout session references missing records", "event_id", event.ID, "error", err)
			ack("invalid_metadata")
		default:
			logger.L().Error("failed to fulfil checkout", "event_id", event.ID, "error", err)
			utils.WebhookEvents.WithLabelValues("stripe", eventType, "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		}
	}
}
