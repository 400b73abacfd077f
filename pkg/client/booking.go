package client

import (
	"context"
	"net/url"

	"parksphere/pkg/model"
)

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

// WithRequester sets the X-Requester-ID header on every request.
func (c *BookingClient) WithRequester(requesterID string) *BookingClient {
	c.httpClient.Headers["X-Requester-ID"] = requesterID
	return c
}

func (c *BookingClient) Create(ctx context.Context, req *model.BookingRequest) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/bookings", req)
}

// CreateIdempotent sends the request with an Idempotency-Key so a retried
// POST replays the first response instead of booking twice.
func (c *BookingClient) CreateIdempotent(ctx context.Context, req *model.BookingRequest, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(ctx, "/api/v1/bookings", req, map[string]string{
		"Idempotency-Key": key,
	})
}

func (c *BookingClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
}

func (c *BookingClient) Cancel(ctx context.Context, id, requesterID string) (*Response, error) {
	path := "/api/v1/bookings/id/" + url.PathEscape(id) + "/cancel"
	if requesterID == "" {
		return c.httpClient.PATCH(ctx, path, nil)
	}
	return c.httpClient.PATCH(ctx, path, model.CancelRequest{RequesterID: requesterID})
}

func (c *BookingClient) GetByRequester(ctx context.Context, requesterID string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/bookings/requester/"+url.PathEscape(requesterID))
}

func (c *BookingClient) Occupancy(ctx context.Context, lotID, date, at string) (*Response, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("time", at)
	return c.httpClient.GET(ctx, "/api/v1/lots/id/"+url.PathEscape(lotID)+"/occupancy?"+q.Encode())
}

// Book creates a booking and decodes the confirmed view.
func (c *BookingClient) Book(ctx context.Context, req *model.BookingRequest) (*model.BookingView, error) {
	resp, err := c.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	var view model.BookingView
	if err := DecodeData(resp, &view); err != nil {
		return nil, err
	}
	return &view, nil
}
