package client

import (
	"context"
	"fmt"
	"net/url"

	"parksphere/pkg/model"
)

type LotClient struct {
	httpClient *HttpClient
}

func NewLotClient(baseUrl string) *LotClient {
	return &LotClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *LotClient) Create(ctx context.Context, lot *model.Lot) (*Response, error) {
	return c.httpClient.POST(ctx, "/api/v1/lots", lot)
}

func (c *LotClient) GetAll(ctx context.Context, limit int, offset int64) (*Response, error) {
	return c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/lots?limit=%d&offset=%d", limit, offset))
}

func (c *LotClient) GetByID(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/lots/id/"+url.PathEscape(id))
}
