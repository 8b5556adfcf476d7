package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/testutil"
)

const webhookSecret = "whsec_test_secret"

var testCatalog = NewCatalog(config.StripeSettings{
	PokesPriceID:      "price_pokes",
	BoostsPriceID:     "price_boosts",
	HypertrainPriceID: "price_train",
})

func stubCheckout(t *testing.T) *[]*stripe.CheckoutSessionParams {
	t.Helper()
	var calls []*stripe.CheckoutSessionParams
	prev := newCheckoutSession
	newCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		calls = append(calls, params)
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}
	t.Cleanup(func() { newCheckoutSession = prev })
	return &calls
}

func TestNewCatalog_SkipsUnpricedProducts(t *testing.T) {
	catalog := NewCatalog(config.StripeSettings{PokesPriceID: "price_pokes"})

	price, ok := catalog.Price(ProductPokes)
	assert.True(t, ok)
	assert.Equal(t, "price_pokes", price)
	_, ok = catalog.Price(ProductBoosts)
	assert.False(t, ok)
}

func TestCreateCheckout(t *testing.T) {
	db := testutil.SetupDB(t)
	calls := stubCheckout(t)
	user := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)

	w := testutil.Call(t, CreateCheckout(testCatalog, "https://im-vestor.com/"), http.MethodPost, "/checkout",
		CreateCheckoutRequest{Product: ProductPokes, Quantity: 5, ItemID: "ignored"}, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	testutil.Decode(t, w, &resp)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", resp["url"])

	require.Len(t, *calls, 1)
	params := (*calls)[0]
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "price_pokes", *params.LineItems[0].Price)
	assert.Equal(t, int64(5), *params.LineItems[0].Quantity)
	assert.Equal(t, user.Email, *params.CustomerEmail)
	assert.Equal(t, "https://im-vestor.com/billing/cancelled", *params.CancelURL)
	assert.Equal(t, map[string]string{
		"userId":   user.ID,
		"product":  "POKES",
		"quantity": "5",
		"itemId":   "",
	}, params.Metadata)
}

func TestCreateCheckout_Validation(t *testing.T) {
	db := testutil.SetupDB(t)
	calls := stubCheckout(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	other := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	project := testutil.CreateProject(t, db, other, testutil.AreaID(t, db, "SaaS"), 10, 100)

	tests := []struct {
		name string
		req  CreateCheckoutRequest
	}{
		{"unknown product", CreateCheckoutRequest{Product: "GOLD", Quantity: 1}},
		{"zero quantity", CreateCheckoutRequest{Product: ProductBoosts, Quantity: 0}},
		{"quantity over limit", CreateCheckoutRequest{Product: ProductBoosts, Quantity: 101}},
		{"hypertrain without item", CreateCheckoutRequest{Product: ProductHypertrain, Quantity: 3}},
		{"hypertrain for someone else's project", CreateCheckoutRequest{Product: ProductHypertrain, Quantity: 3, ItemID: project.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Call(t, CreateCheckout(testCatalog, "https://im-vestor.com"), http.MethodPost, "/checkout", tt.req, owner)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, *calls)
}

func TestCreateCheckout_StripeFailure(t *testing.T) {
	db := testutil.SetupDB(t)
	user := testutil.CreateUser(t, db, models.UserTypeInvestor)
	prev := newCheckoutSession
	newCheckoutSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("stripe down")
	}
	t.Cleanup(func() { newCheckoutSession = prev })

	w := testutil.Call(t, CreateCheckout(testCatalog, "https://im-vestor.com"), http.MethodPost, "/checkout",
		CreateCheckoutRequest{Product: ProductBoosts, Quantity: 1}, user)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func checkoutEvent(id string, eventType stripe.EventType, paymentStatus string, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_test_" + id,
				"object":         "checkout.session",
				"payment_status": paymentStatus,
				"customer":       "cus_123",
				"metadata":       metadata,
			},
		},
	}
}

func postEvent(t *testing.T, event interface{}, secret string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	StripeWebhook(webhookSecret)(c)
	return w
}

func loadUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return u
}

func TestStripeWebhook_PokesIdempotent(t *testing.T) {
	db := testutil.SetupDB(t)
	user := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	event := checkoutEvent("evt_1", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{
		"userId": user.ID, "product": "POKES", "quantity": "5",
	})

	w := postEvent(t, event, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = postEvent(t, event, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)

	stored := loadUser(t, db, user.ID)
	assert.Equal(t, 5, stored.AvailablePokes)
	assert.Equal(t, "cus_123", stored.StripeCustomerID)

	var notes int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", user.ID, models.NotificationPurchaseCompleted).Count(&notes)
	assert.Equal(t, int64(1), notes)

	var events int64
	db.Model(&models.StripeEvent{}).Count(&events)
	assert.Equal(t, int64(1), events)
}

func TestStripeWebhook_AsyncPaymentFlow(t *testing.T) {
	db := testutil.SetupDB(t)
	user := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	metadata := map[string]string{"userId": user.ID, "product": "BOOSTS", "quantity": "3"}

	w := postEvent(t, checkoutEvent("evt_a", stripe.EventTypeCheckoutSessionCompleted, "unpaid", metadata), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, loadUser(t, db, user.ID).AvailableBoosts)

	w = postEvent(t, checkoutEvent("evt_b", stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, "paid", metadata), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, loadUser(t, db, user.ID).AvailableBoosts)
}

func TestStripeWebhook_Hypertrain(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	project := testutil.CreateProject(t, db, owner, testutil.AreaID(t, db, "SaaS"), 10, 100)

	for i, id := range []string{"evt_h1", "evt_h2"} {
		w := postEvent(t, checkoutEvent(id, stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{
			"userId": owner.ID, "product": "HYPERTRAIN", "quantity": "2", "itemId": project.ID,
		}), webhookSecret)
		require.Equal(t, http.StatusOK, w.Code, "event %d", i)
	}

	var items []models.HyperTrainItem
	require.NoError(t, db.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, project.ID, items[0].ExternalID)
	assert.WithinDuration(t, time.Now().UTC().Add(96*time.Hour), items[0].ExpirationDate, time.Minute)
}

func TestStripeWebhook_IgnoredAndRejected(t *testing.T) {
	db := testutil.SetupDB(t)
	user := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)

	tests := []struct {
		name     string
		event    map[string]interface{}
		secret   string
		expected int
	}{
		{"bad signature", checkoutEvent("evt_s", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{"userId": user.ID, "product": "POKES", "quantity": "1"}), "whsec_wrong", http.StatusBadRequest},
		{"event outside allow-list", checkoutEvent("evt_i", "invoice.paid", "paid", map[string]string{"userId": user.ID, "product": "POKES", "quantity": "1"}), webhookSecret, http.StatusOK},
		{"missing user", checkoutEvent("evt_m1", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{"product": "POKES", "quantity": "1"}), webhookSecret, http.StatusOK},
		{"bad quantity", checkoutEvent("evt_m2", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{"userId": user.ID, "product": "POKES", "quantity": "many"}), webhookSecret, http.StatusOK},
		{"unknown product", checkoutEvent("evt_m3", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{"userId": user.ID, "product": "GOLD", "quantity": "1"}), webhookSecret, http.StatusOK},
		{"unknown user id", checkoutEvent("evt_m4", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{"userId": "ghost", "product": "POKES", "quantity": "1"}), webhookSecret, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postEvent(t, tt.event, tt.secret)
			assert.Equal(t, tt.expected, w.Code, w.Body.String())
		})
	}

	assert.Zero(t, loadUser(t, db, user.ID).AvailablePokes)
	var events int64
	db.Model(&models.StripeEvent{}).Count(&events)
	assert.Zero(t, events)
}

func TestStripeWebhook_DatabaseFailureAsksForRetry(t *testing.T) {
	db := testutil.SetupDB(t)
	user := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	require.NoError(t, db.Migrator().DropTable(&models.StripeEvent{}))

	w := postEvent(t, checkoutEvent("evt_db", stripe.EventTypeCheckoutSessionCompleted, "paid", map[string]string{
		"userId": user.ID, "product": "POKES", "quantity": "1",
	}), webhookSecret)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, loadUser(t, db, user.ID).AvailablePokes)
}
