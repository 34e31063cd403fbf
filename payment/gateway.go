package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"storefront/models"
)

// Gateway charges an amount and returns the resulting payment record.
type Gateway interface {
	Charge(ctx context.Context, amount float64) (models.PaymentInfo, error)
}

// dummyGateway simulates a payment provider that always succeeds
// immediately. There is no asynchronous confirmation step.
type dummyGateway struct{}

func NewDummyGateway() Gateway {
	return dummyGateway{}
}

func (dummyGateway) Charge(ctx context.Context, amount float64) (models.PaymentInfo, error) {
	return models.PaymentInfo{
		ConfirmationID: "DUMMY_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:         models.PaymentSuccess,
		Method:         "dummy",
	}, nil
}
