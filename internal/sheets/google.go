package sheets

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	// ReadOnlyScope and ReadWriteScope are the OAuth2 scopes the hub asks for.
	ReadOnlyScope  = gsheets.SpreadsheetsReadonlyScope
	ReadWriteScope = gsheets.SpreadsheetsScope
)

// GoogleValues implements ValuesAPI on top of the generated Sheets client.
type GoogleValues struct {
	svc *gsheets.Service
}

// ServiceAccountOptions are the client options for server credentials: the
// service-account file when one is given (else application default credentials)
// limited to scope.
func ServiceAccountOptions(credentialsFile, scope string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(scope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return opts
}

// NewGoogleValues builds the Sheets client from client options (credentials file, token
// source, endpoint).
func NewGoogleValues(ctx context.Context, opts ...option.ClientOption) (*GoogleValues, error) {
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleValues{svc: svc}, nil
}

// NewGoogleValuesForToken builds a client that acts as the user owning accessToken.
func NewGoogleValuesForToken(ctx context.Context, accessToken string, base *http.Client) (*GoogleValues, error) {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return NewGoogleValues(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
}

func (g *GoogleValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = cellString(cell)
		}
		out[i] = cells
	}
	return out, nil
}

func (g *GoogleValues) BatchUpdate(ctx context.Context, spreadsheetID string, updates []CellUpdate) error {
	data := make([]*gsheets.ValueRange, 0, len(updates))
	for _, update := range updates {
		data = append(data, &gsheets.ValueRange{
			Range:  update.Range,
			Values: [][]interface{}{{update.Value}},
		})
	}
	_, err := g.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

func (g *GoogleValues) Append(ctx context.Context, spreadsheetID, rng string, row []string) error {
	cells := make([]interface{}, len(row))
	for i, value := range row {
		cells[i] = value
	}
	_, err := g.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{cells},
	}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (g *GoogleValues) Ping(ctx context.Context, spreadsheetID string) error {
	_, err := g.svc.Spreadsheets.Get(spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	return err
}

func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(v)
	}
}
