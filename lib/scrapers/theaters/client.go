package theaters

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"filmcalendar-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Client is the shared fetch side of every scraper: one resty client with
// browser headers behind the cloudflare bypass transport, plus a page cache
// that lives for a single run. Scrapers run strictly one at a time, the
// cache is not synchronized.
type Client struct {
	http  *resty.Client
	cache map[string][]byte
	sleep func(time.Duration)
}

func NewClient(output restyutil.InstrumentOutput) *Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, output)

	return &Client{
		http:  client,
		cache: make(map[string][]byte),
		sleep: time.Sleep,
	}
}

// Get fetches url at most once per run; later calls return the cached
// body. Non-2xx responses are errors.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.cache[url]; ok {
		return body, nil
	}

	res, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("GET %s: %s", url, res.Status())
	}

	body := res.Body()
	c.cache[url] = body
	return body, nil
}

// Document fetches url and parses the body as html.
func (c *Client) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewBuffer(body))
}

// Delay pauses between consecutive detail-page fetches. Listing pages
// don't need it, detail pages hammer the same origin dozens of times in a
// row.
func (c *Client) Delay(d time.Duration) {
	c.sleep(d)
}
