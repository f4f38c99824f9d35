package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devleads/models"
	"devleads/utils"
)

// fakeSheets is an in-memory stand-in for the token endpoint and the Sheets
// values API.
type fakeSheets struct {
	mu         sync.Mutex
	worksheets []string
	values     [][]any
	cleared    []string
	added      []string
	resized    []string
	columns    int
	tokenCalls int
}

func (f *fakeSheets) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))
		assert.NotEmpty(t, r.Form.Get("assertion"))
		f.mu.Lock()
		f.tokenCalls++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`)) //nolint:errcheck
	})
	mux.HandleFunc("/v4/spreadsheets/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		path := r.URL.Path
		switch {
		case r.Method == http.MethodGet && path == "/v4/spreadsheets/sheet-1":
			cols := f.columns
			if cols == 0 {
				cols = 26
			}
			var sheets []any
			for i, ws := range f.worksheets {
				sheets = append(sheets, map[string]any{"properties": map[string]any{
					"sheetId":        i,
					"title":          ws,
					"gridProperties": map[string]any{"rowCount": 1000, "columnCount": cols},
				}})
			}
			json.NewEncoder(w).Encode(map[string]any{"sheets": sheets}) //nolint:errcheck
		case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
			body, _ := io.ReadAll(r.Body)
			if strings.Contains(string(body), "updateSheetProperties") {
				f.resized = append(f.resized, string(body))
				w.Write([]byte(`{"replies":[{}]}`)) //nolint:errcheck
				return
			}
			f.added = append(f.added, string(body))
			f.worksheets = append(f.worksheets, "DevelopmentLeads")
			w.Write([]byte(`{"replies":[{"addSheet":{"properties":{"sheetId":42,"title":"DevelopmentLeads"}}}]}`)) //nolint:errcheck
		case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
			f.cleared = append(f.cleared, strings.TrimSuffix(strings.TrimPrefix(path, "/v4/spreadsheets/sheet-1/values/"), ":clear"))
			if len(f.values) > 1 {
				f.values = f.values[:1]
			}
			w.Write([]byte(`{}`)) //nolint:errcheck
		case r.Method == http.MethodPut:
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			var body struct {
				Values [][]any `json:"values"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.values = body.Values
			w.Write([]byte(`{}`)) //nolint:errcheck
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"values": f.values}) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return mux
}

func testServiceAccount(t *testing.T, tokenURL string) *ServiceAccount {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	path := filepath.Join(t.TempDir(), "google_credentials.json")
	data, err := json.Marshal(map[string]string{
		"client_email": "pipeline@example.iam.gserviceaccount.com",
		"private_key":  string(pemBytes),
		"token_uri":    tokenURL,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	sa, err := LoadServiceAccount(path)
	require.NoError(t, err)
	return sa
}

func newTestSheets(t *testing.T, fake *fakeSheets) *SheetsClient {
	t.Helper()
	ts := httptest.NewServer(fake.handler(t))
	t.Cleanup(ts.Close)

	c, err := NewSheetsClient(ts.URL, "sheet-1", "DevelopmentLeads", testServiceAccount(t, ts.URL+"/token"), utils.NopLogger())
	require.NoError(t, err)
	return c
}

func TestSheetsUploadAndRead(t *testing.T) {
	fake := &fakeSheets{worksheets: []string{"DevelopmentLeads"}}
	c := newTestSheets(t, fake)
	ctx := context.Background()

	require.NoError(t, c.Upload(ctx, sampleRecords()))
	assert.Equal(t, []string{"'DevelopmentLeads'!A2:ZZ"}, fake.cleared)
	assert.Empty(t, fake.added)
	assert.Empty(t, fake.resized)
	require.Len(t, fake.values, 3)
	assert.Equal(t, "address", fake.values[0][0])
	assert.Equal(t, "", fake.values[2][3]) // null price

	rows, err := c.Read(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "12 Elm St", rows[0]["address"])
	assert.Equal(t, "750000", rows[0]["price"])
	assert.Equal(t, "HIGH", rows[0]["label"])
	assert.Equal(t, "", rows[1]["price"])
	assert.Equal(t, 1, fake.tokenCalls)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1", c.URL())
}

func TestSheetsCreatesMissingWorksheet(t *testing.T) {
	fake := &fakeSheets{worksheets: []string{"Sheet1"}}
	c := newTestSheets(t, fake)

	require.NoError(t, c.Clear(context.Background()))
	require.Len(t, fake.added, 1)
	assert.Contains(t, fake.added[0], `"addSheet"`)
	assert.Contains(t, fake.added[0], "DevelopmentLeads")
}

func TestSheetsCreatesWorksheetSizedForUpload(t *testing.T) {
	fake := &fakeSheets{worksheets: []string{"Sheet1"}}
	c := newTestSheets(t, fake)

	require.NoError(t, c.Upload(context.Background(), wideRecords(30)))
	require.Len(t, fake.added, 1)

	var body struct {
		Requests []struct {
			AddSheet struct {
				Properties sheetProperties `json:"properties"`
			} `json:"addSheet"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal([]byte(fake.added[0]), &body))
	require.Len(t, body.Requests, 1)
	grid := body.Requests[0].AddSheet.Properties.GridProperties
	assert.Equal(t, 100, grid.RowCount)
	assert.Equal(t, len(fake.values[0])+2, grid.ColumnCount)
	assert.Empty(t, fake.resized)
}

func TestSheetsGrowsNarrowWorksheet(t *testing.T) {
	fake := &fakeSheets{worksheets: []string{"DevelopmentLeads"}, columns: 26}
	c := newTestSheets(t, fake)
	records := wideRecords(3)

	require.NoError(t, c.Upload(context.Background(), records))
	require.Len(t, fake.resized, 1)
	assert.Greater(t, len(fake.values[0]), 26)

	var body struct {
		Requests []struct {
			UpdateSheetProperties struct {
				Properties sheetProperties `json:"properties"`
				Fields     string          `json:"fields"`
			} `json:"updateSheetProperties"`
		} `json:"requests"`
	}
	require.NoError(t, json.Unmarshal([]byte(fake.resized[0]), &body))
	require.Len(t, body.Requests, 1)
	update := body.Requests[0].UpdateSheetProperties
	assert.Equal(t, 0, update.Properties.SheetID)
	assert.Equal(t, len(fake.values[0]), update.Properties.GridProperties.ColumnCount)
	assert.Equal(t, 1000, update.Properties.GridProperties.RowCount)
	assert.Equal(t, "gridProperties(rowCount,columnCount)", update.Fields)

	// the grown size is remembered
	require.NoError(t, c.Upload(context.Background(), records))
	assert.Len(t, fake.resized, 1)
}

func TestSheetsClearKeepsHeader(t *testing.T) {
	fake := &fakeSheets{worksheets: []string{"DevelopmentLeads"}, values: [][]any{{"url"}, {"https://x/1"}}}
	c := newTestSheets(t, fake)

	require.NoError(t, c.Clear(context.Background()))
	rows, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, [][]any{{"url"}}, fake.values)
}

func TestSheetValue(t *testing.T) {
	assert.Equal(t, "", sheetValue(nil))
	assert.Equal(t, 1.5, sheetValue(1.5))
	assert.Equal(t, true, sheetValue(true))
	assert.Len(t, sheetValue(strings.Repeat("x", maxCellLength*2)), maxCellLength)
}

func TestLoadServiceAccountRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"a@b"}`), 0600))
	_, err := LoadServiceAccount(path)
	assert.Error(t, err)
}

// wideRecords returns n records whose extras push the table past the default
// 26 worksheet columns.
func wideRecords(n int) []*models.Property {
	records := make([]*models.Property, n)
	for i := range records {
		records[i] = &models.Property{
			URL: fmt.Sprintf("https://x/%d", i),
			Extra: map[string]any{
				"description": "builder special",
				"snippet":     "tear down",
				"zip":         "02459",
				"year_built":  1952.0,
			},
		}
	}
	return records
}
