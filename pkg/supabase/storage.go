package supabase

import (
	"context"
	"fmt"
	"net/http"
)

// Upload stores an object, overwriting any existing object with the same name.
// It authenticates with the service key because buckets are written server-side only.
func (c *Client) Upload(ctx context.Context, bucket, name, contentType string, data []byte) error {
	header := http.Header{}
	header.Set("apikey", c.anonKey)
	header.Set("Authorization", "Bearer "+c.serviceKey)
	header.Set("Content-Type", contentType)
	header.Set("x-upsert", "true")

	target := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, escapePath(bucket), escapePath(name))
	resp, err := c.req.Do(ctx, http.MethodPost, target, header, data)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	return nil
}

// PublicURL is the CDN URL of an object in a public bucket.
func (c *Client) PublicURL(bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, escapePath(bucket), escapePath(name))
}
