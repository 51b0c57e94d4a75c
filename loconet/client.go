package loconet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to an HTTP LocoNet gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string { return "LocoNet HTTP gateway" }

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) get(path string, result any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("loconet GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, result)
}

func (c *Client) post(path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("loconet marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bodyReader)
	if err != nil {
		return fmt.Errorf("loconet POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, result)
}

func (c *Client) decode(resp *http.Response, result any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("loconet read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("loconet HTTP %d: %s", resp.StatusCode, string(data))
	}
	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("loconet decode: %w", err)
		}
	}
	return nil
}

func (c *Client) checkResponse(r *Response) error {
	if r.Code != 0 {
		return fmt.Errorf("loconet error %d: %s", r.Code, r.Msg)
	}
	return nil
}

// ReadSlots fetches the gateway's current slot table.
func (c *Client) ReadSlots() ([]SlotData, error) {
	var resp SlotsResponse
	if err := c.get("/slots", &resp); err != nil {
		return nil, err
	}
	if err := c.checkResponse(&resp.Response); err != nil {
		return nil, err
	}
	return resp.Slots, nil
}

// Send puts a message on the bus through the gateway.
func (c *Client) Send(msg Message) error {
	var resp Response
	if err := c.post("/send", &SendRequest{Hex: msg.Hex()}, &resp); err != nil {
		return err
	}
	return c.checkResponse(&resp)
}

func (c *Client) Ping() error {
	var resp Response
	if err := c.get("/ping", &resp); err != nil {
		return err
	}
	return c.checkResponse(&resp)
}
