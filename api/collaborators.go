package api

import (
	"context"

	"github.com/papercomputeco/quill/pkg/auth"
	"github.com/papercomputeco/quill/pkg/generate"
	"github.com/papercomputeco/quill/pkg/oauth"
	"github.com/papercomputeco/quill/pkg/payments"
	"github.com/papercomputeco/quill/pkg/trends"
)

// Generator produces story text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (generate.Result, error)
}

// Registrar signs users up with the auth provider.
type Registrar interface {
	Register(ctx context.Context, reg auth.Registration) (*auth.User, error)
}

// PaymentIntents creates payment intents with the payment processor.
type PaymentIntents interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*payments.Intent, error)
}

// Connector starts OAuth authorizations with social platforms.
type Connector interface {
	AuthURL(platform string) (*oauth.Authorization, error)
}

// TrendLookup fetches related search trends.
type TrendLookup interface {
	Lookup(ctx context.Context, query, geo string) ([]trends.Trend, error)
}

// Collaborators are the external services the routes adapt. A nil
// collaborator disables its routes with 503 Service Unavailable.
type Collaborators struct {
	Generator Generator
	Registrar Registrar
	Payments  PaymentIntents
	Connector Connector
	Trends    TrendLookup
}
