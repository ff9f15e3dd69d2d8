package model

import "time"

// ForecastMethod names the estimator that produced a forecast.
type ForecastMethod uint8

const (
	MethodNone ForecastMethod = iota
	MethodSmoothing
	MethodTrend
)

func (m ForecastMethod) String() string {
	switch m {
	case MethodSmoothing:
		return "smoothing"
	case MethodTrend:
		return "trend"
	default:
		return "none"
	}
}

// Forecast is the advisory demand estimate for one content item over Horizon.
type Forecast struct {
	ContentID  ContentID
	Predicted  int64
	Confidence float64
	Horizon    time.Duration
	Samples    int
	Method     ForecastMethod
}

// ZeroForecast is returned for content without history.
func ZeroForecast(id ContentID, horizon time.Duration) Forecast {
	return Forecast{ContentID: id, Horizon: horizon, Method: MethodNone}
}
