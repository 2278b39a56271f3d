package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nekogravitycat/court-booking-engine/internal/assignment"
	"github.com/nekogravitycat/court-booking-engine/internal/auth"
	"github.com/nekogravitycat/court-booking-engine/internal/booking"
	courtHttp "github.com/nekogravitycat/court-booking-engine/internal/court/http"
	"github.com/nekogravitycat/court-booking-engine/internal/hold"
	holdHttp "github.com/nekogravitycat/court-booking-engine/internal/hold/http"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/apperror"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/request"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/response"
	"github.com/nekogravitycat/court-booking-engine/internal/pkg/timeutil"
	pricingHttp "github.com/nekogravitycat/court-booking-engine/internal/pricing/http"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "Stripe-Signature"

type Handler struct {
	flow  booking.Service
	holds hold.Service
}

func NewHandler(flow booking.Service, holds hold.Service) *Handler {
	return &Handler{flow: flow, holds: holds}
}

func (h *Handler) renderHold(hd *hold.Hold) holdHttp.HoldResponse {
	return holdHttp.NewHoldResponse(hd, h.holds.Deadline(hd))
}

// session binds the request body into a booking session for the caller.
func (h *Handler) session(c *gin.Context) (booking.Session, bool) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return booking.Session{}, false
	}
	start, err := timeutil.ParseTimeKey(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be formatted as HH:MM"})
		return booking.Session{}, false
	}
	return booking.Session{
		Customer:         auth.GetCustomer(c),
		Date:             req.Date,
		StartMinutes:     start,
		DurationMinutes:  req.DurationMinutes,
		Strategy:         assignment.Strategy(req.Strategy),
		Preferences:      req.Preferences,
		TentativeCourtID: req.TentativeCourtID,
	}, true
}

func holdID(c *gin.Context) (string, bool) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hold id"})
		return "", false
	}
	return uri.ID, true
}

// Preview shows the tentatively assigned court and its duration ladder.
func (h *Handler) Preview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	p, err := h.flow.Preview(c.Request.Context(), s)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := PreviewResponse{
		Session:      NewSessionResponse(p.Session, timeutil.TimeKey(p.Session.StartMinutes)),
		Court:        courtHttp.NewCourtTag(p.Court),
		Prices:       pricingHttp.NewDurationPriceResponses(p.Prices),
		Alternatives: courtHttp.NewCourtTags(p.Alternatives),
		Message:      p.Message,
	}
	if p.Estimate != nil {
		resp.Estimate = &EstimateResponse{
			Price:      p.Estimate.Price,
			CourtCount: p.Estimate.CourtCount,
			IsEstimate: p.Estimate.IsEstimate,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Create reserves a court for the chosen duration and places a hold.
func (h *Handler) Create(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	r, err := h.flow.Reserve(c.Request.Context(), s)
	if err != nil {
		if r != nil {
			response.ErrorWithData(c, err, ReservationResponse{
				Session:      NewSessionResponse(r.Session, timeutil.TimeKey(r.Session.StartMinutes)),
				Alternatives: courtHttp.NewCourtTags(r.Alternatives),
				Message:      r.Message,
			})
			return
		}
		response.Error(c, err)
		return
	}

	held := h.renderHold(r.Hold)
	c.JSON(http.StatusCreated, ReservationResponse{
		Session:      NewSessionResponse(r.Session, timeutil.TimeKey(r.Session.StartMinutes)),
		Court:        courtHttp.NewCourtTag(r.Court),
		Price:        r.Price,
		Hold:         &held,
		Alternatives: courtHttp.NewCourtTags(nil),
		Message:      r.Message,
	})
}

// StartPayment returns the payment intent the client completes.
// Repeated calls reuse the same intent while it is still usable.
func (h *Handler) StartPayment(c *gin.Context) {
	id, ok := holdID(c)
	if !ok {
		return
	}

	started, err := h.flow.StartPayment(c.Request.Context(), id, auth.GetCustomer(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, PaymentResponse{
		Hold:          h.renderHold(started.Hold),
		PaymentIntent: NewIntentResponse(started.Intent),
	})
}

// Confirm finalizes a hold once its payment has succeeded.
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := holdID(c)
	if !ok {
		return
	}
	var req ConfirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	customer := auth.GetCustomer(c)
	hd, err := h.flow.Confirm(c.Request.Context(), id, req.PaymentIntentID, &customer)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, h.renderHold(hd))
}

// Heartbeat keeps a hold alive while the customer is on the checkout page.
func (h *Handler) Heartbeat(c *gin.Context) {
	id, ok := holdID(c)
	if !ok {
		return
	}

	hd, err := h.flow.Heartbeat(c.Request.Context(), id, auth.GetCustomer(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, h.renderHold(hd))
}

// Cancel releases a hold. Navigating away is ignored while a payment is in flight.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := holdID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}
	reason := hold.Reason(req.Reason)
	if reason == "" {
		reason = hold.ReasonUserCancelled
	}

	hd, err := h.flow.Cancel(c.Request.Context(), id, reason, auth.GetCustomer(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, h.renderHold(hd))
}

// Webhook receives payment gateway notifications. It is not behind the
// customer auth middleware; the signature authenticates the sender.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := h.flow.HandleWebhook(c.Request.Context(), payload, c.GetHeader(SignatureHeader)); err != nil {
		if apperror.KindOf(err) != apperror.KindValidation {
			log.Ctx(c.Request.Context()).Error().Err(err).Msg("Webhook processing failed")
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
