package models

import "context"

// MarketDataSource supplies the inputs of one analysis
type MarketDataSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetFundingRate(ctx context.Context, symbol string) (*FundingRate, error)
	GetOpenInterest(ctx context.Context, symbol string) ([]OpenInterestPoint, error)
}

// Deliverer sends formatted text to a chat
type Deliverer interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SubscriptionStore persists chat subscriptions
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, chatID int64) (*Subscription, error)
	SaveSubscription(ctx context.Context, sub *Subscription) error
	DeleteSubscription(ctx context.Context, chatID int64) error
	ListSubscriptions(ctx context.Context) ([]*Subscription, error)
}

// TrackingStore persists take-profit trackings
type TrackingStore interface {
	SaveTracking(ctx context.Context, t *TPTracking) error
	ListTrackings(ctx context.Context, activeOnly bool) ([]*TPTracking, error)
}
