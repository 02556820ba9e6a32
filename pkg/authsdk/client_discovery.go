package authsdk

import (
	"context"
	"net/http"
)

// GetJWKS fetches the public signing keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var out JWKSResponse
	if err := c.getJSON(ctx, PathJWKS, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMetadata fetches the RFC 8414 server metadata.
func (c *SDKClient) GetMetadata(ctx context.Context) (*ServerMetadata, error) {
	var out ServerMetadata
	if err := c.getJSON(ctx, PathMetadata, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) getJSON(ctx context.Context, path string, target any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}
