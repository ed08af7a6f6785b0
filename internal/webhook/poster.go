package webhook

import (
	"context"

	"github.com/go-resty/resty/v2"
)

// RestyPoster is the production Poster, backed by go-resty.
type RestyPoster struct {
	client *resty.Client
}

func NewRestyPoster() *RestyPoster {
	return &RestyPoster{client: resty.New().SetTimeout(Timeout)}
}

func (p *RestyPoster) Post(ctx context.Context, url string, headers map[string]string, body []byte) (int, string, error) {
	req := p.client.R().SetContext(ctx).SetBody(body)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	resp, err := req.Post(url)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), string(resp.Body()), nil
}
