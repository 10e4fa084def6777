package handler

import (
	"customerhub/internal/customer/models"
	id "customerhub/pkg/domain"
)

// ListResponse is the HTTP response for GET /customers.
type ListResponse struct {
	Customers []*models.CustomerView `json:"customers"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
}

type ValidCardsResponse struct {
	Cards []models.CardView `json:"cards"`
}

type PaymentEligibilityResponse struct {
	CustomerID      id.CustomerID `json:"customer_id"`
	CanMakePayments bool          `json:"can_make_payments"`
}
