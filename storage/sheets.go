package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/utils"
)

const (
	sheetsScope   = "https://www.googleapis.com/auth/spreadsheets"
	maxCellLength = 49000
	lastColumn    = "ZZ"
)

// ServiceAccount is the subset of a Google service-account key file needed
// for the JWT bearer flow.
type ServiceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// LoadServiceAccount reads a service-account key file.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: read credentials")
	}
	var sa ServiceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, eris.Wrap(err, "sheets: decode credentials")
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, eris.New("sheets: credentials missing client_email or private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = "https://oauth2.googleapis.com/token"
	}
	return &sa, nil
}

// SheetsClient mirrors records into one worksheet of a spreadsheet using the
// Sheets v4 REST API.
type SheetsClient struct {
	http          *resty.Client
	spreadsheetID string
	worksheet     string
	tokens        *tokenSource
	logger        *utils.Logger

	ensured bool
	props   sheetProperties
}

// NewSheetsClient creates a client for spreadsheetID/worksheet.
func NewSheetsClient(baseURL, spreadsheetID, worksheet string, sa *ServiceAccount, logger *utils.Logger) (*SheetsClient, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, eris.Wrap(err, "sheets: parse private key")
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Content-Type", "application/json")

	return &SheetsClient{
		http:          client,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		tokens:        &tokenSource{http: resty.New().SetTimeout(30 * time.Second), sa: sa, key: key},
		logger:        logger,
	}, nil
}

// URL is the browser link to the spreadsheet.
func (c *SheetsClient) URL() string {
	return "https://docs.google.com/spreadsheets/d/" + c.spreadsheetID
}

func (c *SheetsClient) a1(cells string) string {
	return fmt.Sprintf("'%s'!%s", c.worksheet, cells)
}

func (c *SheetsClient) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", c.spreadsheetID), nil
}

func checkResponse(res *resty.Response, err error, op string) error {
	if err != nil {
		return eris.Wrapf(err, "sheets: %s", op)
	}
	if res.IsError() {
		return eris.Errorf("sheets: %s: status %d: %s", op, res.StatusCode(), truncateCell(res.String()))
	}
	return nil
}

// gridProperties is the size of a worksheet.
type gridProperties struct {
	RowCount    int `json:"rowCount"`
	ColumnCount int `json:"columnCount"`
}

type sheetProperties struct {
	SheetID        int            `json:"sheetId"`
	Title          string         `json:"title"`
	GridProperties gridProperties `json:"gridProperties"`
}

func (c *SheetsClient) batchUpdate(ctx context.Context, op string, requests ...any) (*resty.Response, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	res, err := req.
		SetBody(map[string]any{"requests": requests}).
		Post("/v4/spreadsheets/{id}:batchUpdate")
	return res, checkResponse(res, err, op)
}

// ensureWorksheet creates the worksheet when the spreadsheet lacks it, sized
// for rows x cols plus headroom.
func (c *SheetsClient) ensureWorksheet(ctx context.Context, rows, cols int) error {
	if c.ensured {
		return nil
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	var meta struct {
		Sheets []struct {
			Properties sheetProperties `json:"properties"`
		} `json:"sheets"`
	}
	res, err := req.
		SetQueryParam("fields", "sheets.properties(sheetId,title,gridProperties)").
		SetResult(&meta).
		Get("/v4/spreadsheets/{id}")
	if err := checkResponse(res, err, "get spreadsheet"); err != nil {
		return err
	}
	for _, s := range meta.Sheets {
		if s.Properties.Title == c.worksheet {
			c.props = s.Properties
			c.ensured = true
			return nil
		}
	}

	grid := gridProperties{RowCount: max(rows+10, 100), ColumnCount: max(cols+2, 10)}
	res, err = c.batchUpdate(ctx, "add worksheet", map[string]any{
		"addSheet": map[string]any{"properties": map[string]any{
			"title":          c.worksheet,
			"gridProperties": grid,
		}},
	})
	if err != nil {
		return err
	}
	var reply struct {
		Replies []struct {
			AddSheet struct {
				Properties sheetProperties `json:"properties"`
			} `json:"addSheet"`
		} `json:"replies"`
	}
	c.props = sheetProperties{Title: c.worksheet, GridProperties: grid}
	if err := json.Unmarshal(res.Body(), &reply); err == nil && len(reply.Replies) > 0 {
		c.props.SheetID = reply.Replies[0].AddSheet.Properties.SheetID
	}
	c.logger.Info("[sheets] Created worksheet %s (%dx%d)", c.worksheet, grid.RowCount, grid.ColumnCount)
	c.ensured = true
	return nil
}

// growGrid enlarges the worksheet so rows x cols values fit. It never shrinks.
func (c *SheetsClient) growGrid(ctx context.Context, rows, cols int) error {
	cur := c.props.GridProperties
	if rows <= cur.RowCount && cols <= cur.ColumnCount {
		return nil
	}
	grid := gridProperties{RowCount: max(cur.RowCount, rows), ColumnCount: max(cur.ColumnCount, cols)}
	if _, err := c.batchUpdate(ctx, "resize worksheet", map[string]any{
		"updateSheetProperties": map[string]any{
			"properties": map[string]any{
				"sheetId":        c.props.SheetID,
				"gridProperties": grid,
			},
			"fields": "gridProperties(rowCount,columnCount)",
		},
	}); err != nil {
		return err
	}
	c.logger.Info("[sheets] Resized %s to %dx%d", c.worksheet, grid.RowCount, grid.ColumnCount)
	c.props.GridProperties = grid
	return nil
}

// Clear removes all data rows below the header.
func (c *SheetsClient) Clear(ctx context.Context) error {
	if err := c.ensureWorksheet(ctx, 0, 0); err != nil {
		return err
	}
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	res, err := req.
		SetPathParam("range", c.a1("A2:"+lastColumn)).
		SetBody(map[string]any{}).
		Post("/v4/spreadsheets/{id}/values/{range}:clear")
	return checkResponse(res, err, "clear")
}

// Upload clears the data rows then writes the header and one row per record
// starting at A1, growing the worksheet first when the values would not fit.
func (c *SheetsClient) Upload(ctx context.Context, records []*models.Property) error {
	cols := models.Columns(records)
	values := make([][]any, 0, len(records)+1)
	header := make([]any, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	values = append(values, header)
	for _, r := range records {
		row := r.Row()
		line := make([]any, len(cols))
		for i, col := range cols {
			line[i] = sheetValue(row[col])
		}
		values = append(values, line)
	}

	if err := c.ensureWorksheet(ctx, len(values), len(cols)); err != nil {
		return err
	}
	if err := c.Clear(ctx); err != nil {
		return err
	}
	if err := c.growGrid(ctx, len(values), len(cols)); err != nil {
		return err
	}

	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	res, err := req.
		SetPathParam("range", c.a1("A1")).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(map[string]any{"majorDimension": "ROWS", "values": values}).
		Put("/v4/spreadsheets/{id}/values/{range}")
	if err := checkResponse(res, err, "update"); err != nil {
		return err
	}
	c.logger.Info("[sheets] Uploaded %d rows to %s", len(records), c.worksheet)
	return nil
}

// Read returns every data row keyed by the header row. Short rows are padded
// with empty strings.
func (c *SheetsClient) Read(ctx context.Context) ([]map[string]string, error) {
	if err := c.ensureWorksheet(ctx, 0, 0); err != nil {
		return nil, err
	}
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Values [][]any `json:"values"`
	}
	res, err := req.
		SetPathParam("range", c.a1("A1:"+lastColumn)).
		SetResult(&payload).
		Get("/v4/spreadsheets/{id}/values/{range}")
	if err := checkResponse(res, err, "read"); err != nil {
		return nil, err
	}
	if len(payload.Values) == 0 {
		return nil, nil
	}

	header := make([]string, len(payload.Values[0]))
	for i, h := range payload.Values[0] {
		header[i] = cellString(h)
	}
	rows := make([]map[string]string, 0, len(payload.Values)-1)
	for _, line := range payload.Values[1:] {
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(line) {
				row[h] = cellString(line[i])
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// sheetValue sanitises a value for the values API: nulls and non-finite
// numbers become "", text is capped below the cell limit.
func sheetValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return t
	case int, int64, bool:
		return t
	case string:
		return truncateCell(t)
	default:
		return truncateCell(cellString(t))
	}
}

func truncateCell(s string) string {
	if len(s) <= maxCellLength {
		return s
	}
	// back off to a rune boundary
	end := maxCellLength
	for end > 0 && s[end]&0xC0 == 0x80 {
		end--
	}
	return s[:end]
}

// tokenSource exchanges a signed service-account JWT for an access token and
// caches it until shortly before expiry.
type tokenSource struct {
	mu     sync.Mutex
	http   *resty.Client
	sa     *ServiceAccount
	key    any
	token  string
	expiry time.Time
}

func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expiry) {
		return ts.token, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   ts.sa.ClientEmail,
		"scope": sheetsScope,
		"aud":   ts.sa.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.key)
	if err != nil {
		return "", eris.Wrap(err, "sheets: sign assertion")
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	res, err := ts.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "urn:ietf:params:oauth:grant-type:jwt-bearer",
			"assertion":  assertion,
		}).
		SetResult(&out).
		Post(ts.sa.TokenURI)
	if err != nil {
		return "", eris.Wrap(err, "sheets: token exchange")
	}
	if res.StatusCode() != http.StatusOK || out.AccessToken == "" {
		return "", eris.Errorf("sheets: token exchange: status %d", res.StatusCode())
	}

	ts.token = out.AccessToken
	ts.expiry = now.Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return ts.token, nil
}
