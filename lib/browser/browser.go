package browser

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("filmcalendar.lib.browser")

// PageStableTimeout bounds waits for JS-rendered content to settle.
const PageStableTimeout = time.Second * 10

// Interface is one headless browser session. A session is exclusively
// owned by whoever opened it and must be closed before the next site's
// run, cookies and page state never outlive an owner.
type Interface interface {
	WithPage(ctx context.Context, url string, fn func(page *rod.Page) error) error
	Close() error
}

type headless struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// Headless launches a headless chromium and connects to it.
func Headless() (Interface, error) {
	l := launcher.New()
	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	b := rod.New().ControlURL(controlURL)
	err = b.Connect()
	if err != nil {
		l.Kill()
		return nil, err
	}
	return &headless{launcher: l, browser: b}, nil
}

func (h *headless) WithPage(ctx context.Context, url string, fn func(page *rod.Page) error) error {
	ctx, span := tracer.Start(ctx, "WithPage")
	defer span.End()

	page, err := h.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open page")
		return err
	}
	defer page.Close()

	page = page.Context(ctx)
	err = page.WaitLoad()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to wait for page load")
		return err
	}
	return fn(page)
}

func (h *headless) Close() error {
	err := h.browser.Close()
	h.launcher.Cleanup()
	return err
}

// RenderFunc is the seam scrapers of JS-heavy sites depend on: load a url,
// optionally run interactions against the live page, return the rendered
// html. Tests substitute a closure over fixture files.
type RenderFunc func(ctx context.Context, url string, interact func(page *rod.Page) error) (string, error)

// Renderer adapts a session into a RenderFunc.
func Renderer(b Interface) RenderFunc {
	return func(ctx context.Context, url string, interact func(page *rod.Page) error) (string, error) {
		var html string
		err := b.WithPage(ctx, url, func(page *rod.Page) error {
			if interact != nil {
				err := interact(page)
				if err != nil {
					return err
				}
			}
			var err error
			html, err = page.HTML()
			return err
		})
		return html, err
	}
}
