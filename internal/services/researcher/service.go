package researcher

import (
	"context"

	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
)

const researchPath = "research"

// Service speaks the plain research contract: POST {base}/research with
// {"transcript": ...}.
type Service struct {
	endpoints *gateway.Endpoints
	http      *gateway.Client
}

// NewService constructs the service provider.
func NewService(endpoints *gateway.Endpoints, opts ...gateway.Option) *Service {
	return &Service{
		endpoints: endpoints,
		http:      gateway.NewClient(gateway.Research, opts...),
	}
}

type serviceRequest struct {
	Transcript string `json:"transcript"`
}

type serviceResponse struct {
	Notes       string     `json:"notes"`
	Citations   []Citation `json:"citations"`
	DraftTweets []string   `json:"draftTweets"`
}

// Research implements Researcher.
func (s *Service) Research(ctx context.Context, transcript string) (Result, error) {
	endpoint, err := s.endpoints.Resolve(gateway.Research, researchPath)
	if err != nil {
		return Result{}, s.http.Fail(services.KindUnreachable, 0, "", "invalid base URL", err)
	}
	resp, err := s.http.PostJSON(ctx, endpoint, serviceRequest{Transcript: transcript})
	if err != nil {
		return Result{}, err
	}
	var payload serviceResponse
	if err := s.http.Decode(resp, &payload); err != nil {
		return Result{}, err
	}
	result, err := validate(Result{
		Notes:       payload.Notes,
		Citations:   payload.Citations,
		DraftTweets: payload.DraftTweets,
	})
	if err != nil {
		return Result{}, s.http.Malformed(err.Error())
	}
	return result, nil
}
