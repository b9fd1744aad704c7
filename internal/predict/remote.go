package predict

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteClient talks to the remote model-inference service. One
// bounded attempt per request; retries are the caller's responsibility.
type RemoteClient struct {
	base string
	rest *resty.Client
}

// NewRemoteClient builds a client for the inference service at base.
func NewRemoteClient(base string, timeout time.Duration) *RemoteClient {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	return &RemoteClient{base: base, rest: r}
}

// remoteResponse is the service's flat wire format.
type remoteResponse struct {
	VesselID           string            `json:"vessel_id"`
	PredictedPosition  []float64         `json:"predicted_position"`
	UncertaintyNM      float64           `json:"uncertainty_nm"`
	UncertaintyDegrees []float64         `json:"uncertainty_degrees"`
	Method             string            `json:"method"`
	ModelConfidence    *float64          `json:"model_confidence,omitempty"`
	ProbabilityCloud   FeatureCollection `json:"probability_cloud"`
}

type healthResponse struct {
	Status              string `json:"status"`
	LSTMAvailable       bool   `json:"lstm_available"`
	NormalizerAvailable bool   `json:"normalizer_available"`
}

// Forecast posts the request to the service. The aggression factor is
// passed through unmodified; the service applies the horizon scaling on
// its side. Any transport error, non-200 status, or geometrically
// unusable payload is reported as ErrUpstreamUnavailable.
func (c *RemoteClient) Forecast(ctx context.Context, req Request) (Result, FeatureCollection, error) {
	var out remoteResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(c.base + "/predict")
	if err != nil {
		return Result{}, FeatureCollection{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return Result{}, FeatureCollection{}, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode())
	}
	if err := validateRemote(out); err != nil {
		return Result{}, FeatureCollection{}, err
	}

	method := out.Method
	if method == "" {
		method = MethodLearned
	}

	return Result{
		PredictedPosition:  [2]float64{out.PredictedPosition[0], out.PredictedPosition[1]},
		UncertaintyNM:      out.UncertaintyNM,
		UncertaintyDegrees: [2]float64{out.UncertaintyDegrees[0], out.UncertaintyDegrees[1]},
		Method:             method,
		Confidence:         out.ModelConfidence,
	}, out.ProbabilityCloud, nil
}

// Health probes the service's readiness endpoint.
func (c *RemoteClient) Health(ctx context.Context) error {
	var out healthResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.base + "/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode())
	}
	return nil
}

func validateRemote(out remoteResponse) error {
	if len(out.PredictedPosition) != 2 || len(out.UncertaintyDegrees) != 2 {
		return fmt.Errorf("%w: malformed prediction payload", ErrUpstreamUnavailable)
	}
	values := []float64{
		out.PredictedPosition[0], out.PredictedPosition[1],
		out.UncertaintyNM,
		out.UncertaintyDegrees[0], out.UncertaintyDegrees[1],
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in prediction", ErrUpstreamUnavailable)
		}
	}
	if out.UncertaintyNM <= 0 {
		return fmt.Errorf("%w: non-positive uncertainty", ErrUpstreamUnavailable)
	}
	return nil
}
