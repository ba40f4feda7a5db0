package models

// Requests for the HTTP endpoints. Bound from path/query and validated.

type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=10,symbol"`
}

type HistoricalRequest struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=10,symbol"`
	Days   int    `query:"days" default:"30" validate:"gte=1,lte=365"`
}

type FutureRequest struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=10,symbol"`
	Days   int    `query:"days" default:"7" validate:"gte=1,lte=365"`
}

type DashboardRequest struct {
	Symbol      string `param:"symbol" validate:"required,min=1,max=10,symbol"`
	HistoryDays int    `query:"history_days" default:"90" validate:"gte=1,lte=365"`
	FutureDays  int    `query:"future_days" default:"7" validate:"gte=1,lte=365"`
}

type AccuracyRequest struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=10,symbol"`
	Model  string `query:"model" default:"ARIMA" validate:"oneof=ARIMA LSTM LINEAR arima lstm linear linear-regression"`
	Days   int    `query:"days" default:"30" validate:"gte=2,lte=365"`
}

type SnapshotsRequest struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=10,symbol"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
}
