package handler

import (
	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/service"
)

type variantRequest struct {
	Name              string  `json:"name"`
	TrafficAllocation float64 `json:"traffic_allocation"`
	IsControl         bool    `json:"is_control"`
}

type metricRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Kind string `json:"kind,omitempty"`
}

type createExperimentRequest struct {
	Name     string               `json:"name"`
	Variants []variantRequest     `json:"variants"`
	Metrics  []metricRequest      `json:"metrics"`
	Config   models.Configuration `json:"config"`
}

func (r createExperimentRequest) toParams() service.CreateParams {
	params := service.CreateParams{
		Name:   r.Name,
		Config: r.Config,
	}
	for _, v := range r.Variants {
		params.Variants = append(params.Variants, models.Variant{
			Name:              v.Name,
			TrafficAllocation: v.TrafficAllocation,
			IsControl:         v.IsControl,
		})
	}
	for _, m := range r.Metrics {
		params.Metrics = append(params.Metrics, models.Metric{
			Name: m.Name,
			Type: models.MetricType(m.Type),
			Kind: models.MetricKind(m.Kind),
		})
	}
	return params
}

type stopExperimentRequest struct {
	Reason string `json:"reason"`
}

type assignRequest struct {
	UserID  string            `json:"user_id"`
	Context map[string]string `json:"context,omitempty"`
}

type trackConversionRequest struct {
	UserID   string            `json:"user_id"`
	Value    float64           `json:"value"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
