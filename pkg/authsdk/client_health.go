package authsdk

import "context"

// GetLiveness calls /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, PathLivez, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReadiness calls /readyz. A not-ready service yields an error.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, PathReadyz, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
