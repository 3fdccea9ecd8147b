package gamplo

import (
	"net/http"
	"time"

	"github.com/gamplo/gamplo-go/internal/chat"
	"github.com/gamplo/gamplo-go/internal/config"
	"github.com/gamplo/gamplo-go/internal/obs"
	"github.com/gamplo/gamplo-go/pkg/backoff"
	"github.com/gamplo/gamplo-go/pkg/model"
	"golang.org/x/text/encoding"
	"golang.org/x/time/rate"
)

// Logger receives diagnostics from the SDK and its background chat streams.
type Logger = chat.Logger

// Option configures an SDK.
type Option func(*options)

type options struct {
	cfg         *config.Config
	apiURL      string
	timeout     time.Duration
	httpClient  *http.Client
	token       string
	sessionID   string
	args        []string
	policy      *backoff.Policy
	logger      Logger
	encoding    encoding.Encoding
	charset     string
	metrics     *obs.Metrics
	sendLimit   *rate.Limiter
	onChatError func(room model.RoomID, err error)
}

// WithConfig replaces the configuration read from the environment.
func WithConfig(cfg config.Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithAPIURL sets the backend root url.
func WithAPIURL(url string) Option {
	return func(o *options) { o.apiURL = url }
}

// WithTimeout sets the timeout of one-shot requests. Chat streams are not affected.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithHTTPClient sets the client used for all requests. It should not set its own Timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithToken sets the platform token Init authenticates with.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithSessionID starts the SDK with an existing session.
func WithSessionID(sessionID string) Option {
	return func(o *options) { o.sessionID = sessionID }
}

// WithArgs sets the arguments Init searches for a token. Default os.Args[1:].
func WithArgs(args []string) Option {
	return func(o *options) { o.args = args }
}

// WithRetryPolicy sets the reconnect policy of chat streams.
func WithRetryPolicy(policy backoff.Policy) Option {
	return func(o *options) { o.policy = &policy }
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEncoding sets the text encoding of chat streams. Default UTF-8.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) { o.encoding = enc }
}

// WithCharset sets the text encoding of chat streams by its IANA or WHATWG name, e.g. "utf-16le".
func WithCharset(name string) Option {
	return func(o *options) { o.charset = name }
}

// WithMetrics shares a metrics container with the caller.
func WithMetrics(metrics *obs.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithOnChatFailure registers a callback for rooms dropped after their reconnect attempts are exhausted.
func WithOnChatFailure(fn func(room model.RoomID, err error)) Option {
	return func(o *options) { o.onChatError = fn }
}

// WithSendRate limits SendMessage to perSecond messages with bursts of up to burst.
// SendMessage waits for its turn or for its context to be done.
func WithSendRate(perSecond float64, burst int) Option {
	return func(o *options) {
		if perSecond <= 0 {
			o.sendLimit = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.sendLimit = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}
