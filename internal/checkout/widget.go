package checkout

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

// DefaultScriptURL is the gateway's hosted checkout script.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

// Outcome is how the customer left the widget.
type Outcome int

const (
	// OutcomePaid carries a completion claim.
	OutcomePaid Outcome = iota + 1
	// OutcomeDismissed means the customer closed the widget.
	OutcomeDismissed
	// OutcomeFailed carries the gateway's failure description.
	OutcomeFailed
)

// Completion is what a widget session ends with.
type Completion struct {
	Outcome Outcome
	Claim   payment.Claim
	// Reason is set for OutcomeFailed; empty means a generic failure.
	Reason string
}

// Widget is a loaded gateway checkout UI. Open blocks until the customer
// pays, dismisses the widget, or ctx is done.
type Widget interface {
	Open(ctx context.Context, opts Options) (Completion, error)
}

// Prefill seeds the widget's contact form.
type Prefill struct {
	Name    string
	Email   string
	Contact string
}

// Theme controls the widget colours.
type Theme struct {
	Color         string
	BackdropColor string
	HideTopbar    bool
}

// Merchant is the storefront branding shown in the widget.
type Merchant struct {
	Name        string
	Description string
	Image       string
	Theme       Theme
	// ConfirmClose asks the customer before the widget is dismissed.
	ConfirmClose bool
}

// DefaultLogo is the storefront's firecracker logo as an inline SVG.
const DefaultLogo = `data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>🧨</text></svg>`

// DefaultMerchant is the storefront's branding.
var DefaultMerchant = Merchant{
	Name:        "SSS Crackers",
	Description: "Premium Crackers for Your Celebration",
	Image:       DefaultLogo,
	Theme: Theme{
		Color:         "#ff6a00",
		BackdropColor: "rgba(11,11,26,0.75)",
	},
	ConfirmClose: true,
}

// Options configures one widget session. Key is the public key id; the key
// secret never reaches the client.
type Options struct {
	Key      string
	Amount   int64
	Currency string
	OrderID  string
	Merchant Merchant
	Prefill  Prefill
	Notes    map[string]string
}

// Encode writes the options object accepted by the hosted checkout script.
func (o Options) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("key", func(e *jx.Encoder) { e.Str(o.Key) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(o.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(o.Currency) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Merchant.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(o.Merchant.Description) })
		if o.Merchant.Image != "" {
			e.Field("image", func(e *jx.Encoder) { e.Str(o.Merchant.Image) })
		}
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.OrderID) })
		e.Field("prefill", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(o.Prefill.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Prefill.Email) })
				e.Field("contact", func(e *jx.Encoder) { e.Str(o.Prefill.Contact) })
			})
		})
		e.Field("notes", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for k, v := range o.Notes {
					e.Field(k, func(e *jx.Encoder) { e.Str(v) })
				}
			})
		})
		e.Field("theme", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("color", func(e *jx.Encoder) { e.Str(o.Merchant.Theme.Color) })
				if o.Merchant.Theme.BackdropColor != "" {
					e.Field("backdrop_color", func(e *jx.Encoder) { e.Str(o.Merchant.Theme.BackdropColor) })
				}
				e.Field("hide_topbar", func(e *jx.Encoder) { e.Bool(o.Merchant.Theme.HideTopbar) })
			})
		})
		e.Field("modal", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("confirm_close", func(e *jx.Encoder) { e.Bool(o.Merchant.ConfirmClose) })
				e.Field("animation", func(e *jx.Encoder) { e.Bool(true) })
			})
		})
	})
}

// LoadFunc produces a ready widget.
type LoadFunc func(ctx context.Context) (Widget, error)

// WidgetLoader loads the widget at most once per process. Concurrent Load
// calls share one in-flight load; a failed load is forgotten so the next
// call tries again. Share one WidgetLoader between all coordinators.
type WidgetLoader struct {
	load  LoadFunc
	group singleflight.Group

	mu     sync.Mutex
	widget Widget
}

// NewWidgetLoader returns a loader around load.
func NewWidgetLoader(load LoadFunc) *WidgetLoader {
	return &WidgetLoader{load: load}
}

// Load returns the loaded widget, loading it first if needed. The shared
// load is detached from ctx so one caller giving up does not fail the
// others; ctx only bounds how long this caller waits.
func (l *WidgetLoader) Load(ctx context.Context) (Widget, error) {
	if w := l.loaded(); w != nil {
		return w, nil
	}

	ch := l.group.DoChan("widget", func() (any, error) {
		if w := l.loaded(); w != nil {
			return w, nil
		}
		w, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if w == nil {
			return nil, errors.New("loader returned no widget")
		}
		l.mu.Lock()
		l.widget = w
		l.mu.Unlock()
		return w, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Widget), nil
	}
}

func (l *WidgetLoader) loaded() Widget {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.widget
}

// ScriptLoadFunc fetches the hosted checkout script and hands it to mount,
// which embeds it in the host (a webview, for example) and returns the
// widget. A nil client means http.DefaultClient.
func ScriptLoadFunc(client *http.Client, url string, mount func(ctx context.Context, script []byte) (Widget, error)) LoadFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (Widget, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Wrap(err, "fetch script")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("fetch script: status %d", resp.StatusCode)
		}
		script, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read script")
		}
		if len(script) == 0 {
			return nil, errors.New("empty script")
		}
		return mount(ctx, script)
	}
}
