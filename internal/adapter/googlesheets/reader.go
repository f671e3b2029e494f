package googlesheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/model"
)

// DefaultRange is read when the caller does not name a range.
const DefaultRange = "A1:Z1000"

const opReadRange = "read range"

// AccessTokenSource yields a bearer token for the Sheets API.
type AccessTokenSource interface {
	AccessToken(ctx context.Context) (model.AccessToken, error)
}

// Config holds Reader settings. Zero values select the defaults.
type Config struct {
	Endpoint     string        // Sheets API base URL, e.g. "https://sheets.googleapis.com/"
	DefaultRange string        // A1 range used when none is given
	Timeout      time.Duration // per-attempt timeout, defaults to 15s
	MaxRetries   int           // retries of 429/5xx/timeouts
	HTTPClient   *http.Client  // base transport
	NewBackOff   func() backoff.BackOff
	Logger       *zap.Logger
}

// Reader reads cell ranges from Google Sheets.
type Reader struct {
	tokens AccessTokenSource
	cfg    Config
}

// NewReader creates a Reader that authenticates with tokens.
func NewReader(tokens AccessTokenSource, cfg Config) *Reader {
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = DefaultRange
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Endpoint != "" && !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	return &Reader{tokens: tokens, cfg: cfg}
}

// ReadRange returns the raw values of rng in the spreadsheet. Cells come back
// as the strings the API rendered; short rows stay short.
func (r *Reader) ReadRange(ctx context.Context, spreadsheetID, rng string) (*model.SheetValues, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, adapter.NewError(adapter.KindMissingParameter, opReadRange, "spreadsheetId is required", nil)
	}
	if rng == "" {
		rng = r.cfg.DefaultRange
	}

	tok, err := r.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	srv, err := r.service(ctx, tok)
	if err != nil {
		return nil, adapter.NewError(adapter.KindConfiguration, opReadRange, "create Sheets client: "+err.Error(), err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.cfg.NewBackOff(), uint64(r.cfg.MaxRetries)), ctx)
	resp, err := backoff.RetryNotifyWithData(func() (*sheets.ValueRange, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		vr, err := srv.Spreadsheets.Values.Get(spreadsheetID, rng).Context(attemptCtx).Do()
		if err != nil {
			e := classify(err)
			if !e.Transient() {
				return nil, backoff.Permanent(e)
			}
			return nil, e
		}
		return vr, nil
	}, b, func(err error, wait time.Duration) {
		r.cfg.Logger.Warn("sheets read failed, retrying",
			zap.String("sheet_id", spreadsheetID),
			zap.String("range", rng),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		if adapter.KindOf(err) == "" {
			return nil, classify(err)
		}
		return nil, err
	}

	return &model.SheetValues{
		Range:          resp.Range,
		MajorDimension: resp.MajorDimension,
		Values:         toStrings(resp.Values),
	}, nil
}

func (r *Reader) service(ctx context.Context, tok model.AccessToken) (*sheets.Service, error) {
	base := context.WithValue(ctx, oauth2.HTTPClient, r.cfg.HTTPClient)
	client := oauth2.NewClient(base, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tok.Value,
		TokenType:   "Bearer",
	}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if r.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(r.cfg.Endpoint))
	}
	return sheets.NewService(ctx, opts...)
}

// classify turns a Sheets client error into an Upstream error. Non-2xx
// responses carry the response body; anything else is a transport failure.
func classify(err error) *adapter.Error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		e := adapter.NewError(adapter.KindUpstream, opReadRange, "Failed to read from Google Sheets: "+body, err)
		e.StatusCode = gerr.Code
		return e
	}
	e := adapter.NewError(adapter.KindUpstream, opReadRange, fmt.Sprintf("Failed to read from Google Sheets: %v", err), err)
	e.Temporary = true
	return e
}

func toStrings(rows [][]interface{}) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case string:
				cells[j] = v
			case nil:
				cells[j] = ""
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}
