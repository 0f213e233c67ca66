package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// IPFSClient pins evidence documents and returns their content addresses.
// The service stores only the returned CIDs; it never dereferences them.
type IPFSClient interface {
	PinFile(ctx context.Context, body io.Reader) (string, error)
	PinJSON(ctx context.Context, payload interface{}) (string, error)
	UnpinFile(ctx context.Context, cid string) error
}

type httpIPFSClient struct {
	apiURL string
	client *http.Client
}

// NewIPFSClient creates a client against an IPFS node's HTTP API
func NewIPFSClient(apiURL string) IPFSClient {
	return &httpIPFSClient{
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *httpIPFSClient) PinFile(ctx context.Context, body io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "evidence")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, body); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/add?pin=true", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs add failed: status %d", resp.StatusCode)
	}

	var result struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Hash, nil
}

func (c *httpIPFSClient) PinJSON(ctx context.Context, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return c.PinFile(ctx, bytes.NewReader(data))
}

func (c *httpIPFSClient) UnpinFile(ctx context.Context, cid string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/pin/rm?arg="+cid, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ipfs unpin failed: status %d", resp.StatusCode)
	}
	return nil
}

// mockIPFSClient for tests and offline development
type mockIPFSClient struct{}

func NewMockIPFSClient() IPFSClient {
	return &mockIPFSClient{}
}

func (c *mockIPFSClient) PinFile(ctx context.Context, body io.Reader) (string, error) {
	return "QmMockCID123456789", nil
}

func (c *mockIPFSClient) PinJSON(ctx context.Context, payload interface{}) (string, error) {
	return "QmMockCID123456789", nil
}

func (c *mockIPFSClient) UnpinFile(ctx context.Context, cid string) error {
	return nil
}
