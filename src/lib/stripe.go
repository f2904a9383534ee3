package lib

import (
	"context"
	"os"

	"tix/src/types"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

var centsPerUnit = decimal.NewFromInt(100)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// StripeGateway implements PaymentGateway on top of Stripe Checkout.
// The checkout session id doubles as the transaction reference.
type StripeGateway struct{}

func (g *StripeGateway) CreateTransaction(ctx context.Context, in CreateTransactionInput) (CreateTransactionResult, error) {
	sc := GetStripeClient()
	params := stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(in.ReturnURL),
		CancelURL:     stripe.String(in.ReturnURL),
		CustomerEmail: stripe.String(in.UserEmail),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.Amount.Mul(centsPerUnit).IntPart()),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(in.Description),
					},
				},
			},
		},
	}
	session, err := sc.V1CheckoutSessions.Create(ctx, &params)
	if err != nil {
		return CreateTransactionResult{}, err
	}
	return CreateTransactionResult{
		TransactionID: session.ID,
		RedirectURL:   session.URL,
	}, nil
}

func (g *StripeGateway) GetTransactionStatus(ctx context.Context, transactionID string) (types.GatewayStatus, error) {
	sc := GetStripeClient()
	session, err := sc.V1CheckoutSessions.Retrieve(ctx, transactionID, nil)
	if err != nil {
		return "", err
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return types.GATEWAY_PAID, nil
	}
	switch session.Status {
	case stripe.CheckoutSessionStatusExpired:
		return types.GATEWAY_FAILED, nil
	default:
		return types.GATEWAY_AWAITING, nil
	}
}
