package models

// PredictRequest is the query payload for single-item prediction.
type PredictRequest struct {
	ItemID int64  `param:"item_id" validate:"required,gt=0"`
	Days   int    `query:"days" default:"7" validate:"gte=1,lte=30"`
	Mode   string `query:"mode" default:"bid" validate:"oneof=bid scan"`
}

// BatchPredictRequest is the body payload for batch prediction.
type BatchPredictRequest struct {
	ItemIDs []int64 `json:"item_ids" validate:"required,min=1,max=100,dive,gt=0"`
	Days    int     `json:"days" default:"7" validate:"gte=1,lte=30"`
	Mode    string  `json:"mode" default:"bid" validate:"oneof=bid scan"`
}

// TrainRequest forces a training cycle for one item.
type TrainRequest struct {
	ItemID int64 `param:"item_id" validate:"required,gt=0"`
	Days   int   `json:"days" default:"30" validate:"gte=7,lte=90"`
}

// AlertsRequest filters the active-alert listing.
type AlertsRequest struct {
	ItemID int64  `query:"item_id" validate:"gte=0"`
	Since  string `query:"since"`
}

// AckAlertRequest acknowledges one alert.
type AckAlertRequest struct {
	AlertID string `param:"id" validate:"required"`
	Actor   string `json:"actor" default:"operator" validate:"min=1,max=64"`
}
