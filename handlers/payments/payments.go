package payments

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"

	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/auth"
	"github.com/Im-Vestor/im-vestor-full-sub002/handlers/hypertrain"
	"github.com/Im-Vestor/im-vestor-full-sub002/logger"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

// newCheckoutSession is swapped out in tests.
var newCheckoutSession = session.New

type CreateCheckoutRequest struct {
	Product  Product `json:"product" binding:"required"`
	Quantity int     `json:"quantity" binding:"required"`
	ItemID   string  `json:"item_id"`
}

func CreateCheckout(catalog Catalog, appURL string) gin.HandlerFunc {
	appURL = strings.TrimRight(appURL, "/")

	return func(c *gin.Context) {
		user, ok := auth.MustUser(c)
		if !ok {
			return
		}

		var req CreateCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		price, ok := catalog.Price(req.Product)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown product"})
			return
		}
		if req.Quantity < MinQuantity || req.Quantity > MaxQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be between 1 and 100"})
			return
		}

		if req.Product == ProductHypertrain {
			if req.ItemID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required for hypertrain"})
				return
			}
			_, err := hypertrain.ResolveTarget(utils.DB, user.ID, req.ItemID)
			if errors.Is(err, hypertrain.ErrUnknownTarget) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "item_id must be one of your projects or your investor profile"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve item"})
				return
			}
		} else {
			req.ItemID = ""
		}

		params := &stripe.CheckoutSessionParams{
			Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Price:    stripe.String(price),
				Quantity: stripe.Int64(int64(req.Quantity)),
			}},
			SuccessURL:        stripe.String(appURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:         stripe.String(appURL + "/billing/cancelled"),
			ClientReferenceID: stripe.String(user.ID),
		}
		if user.StripeCustomerID != "" {
			params.Customer = stripe.String(user.StripeCustomerID)
		} else {
			params.CustomerEmail = stripe.String(user.Email)
			params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
		}
		params.AddMetadata(metaUserID, user.ID)
		params.AddMetadata(metaProduct, string(req.Product))
		params.AddMetadata(metaQuantity, strconv.Itoa(req.Quantity))
		params.AddMetadata(metaItemID, req.ItemID)

		s, err := newCheckoutSession(params)
		if err != nil {
			logger.L().Error("failed to create checkout session", "user_id", user.ID, "product", req.Product, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"url": s.URL, "session_id": s.ID})
	}
}
