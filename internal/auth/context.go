package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-booking-engine/internal/pricing"
)

const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
	ctxMember    = "member"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetUserEmail returns the authenticated user's email or empty string.
func GetUserEmail(c *gin.Context) string {
	return c.GetString(ctxUserEmail)
}

// IsMember reports whether the authenticated user holds a membership.
func IsMember(c *gin.Context) bool {
	return c.GetBool(ctxMember)
}

// GetCustomer returns the authenticated user as a booking customer.
func GetCustomer(c *gin.Context) pricing.Customer {
	return pricing.Customer{
		ID:     GetUserID(c),
		Email:  GetUserEmail(c),
		Member: IsMember(c),
	}
}
