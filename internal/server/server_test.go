package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/report"
	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/store/sqlite"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

const ordersCSV = "NOrdem_OSv,Data_OSv,Status_OSv,Fabricante_Mot,Descricao_Mot,ModeloVei_Osv,ObsCorpo_OSv,RazaoSocial_Cli,TotalProd_OSv,TotalServ_OSv,Total_OSv\n" +
	"OS1,2024-05-10,G,Cummins,,,,,200,50,150\n" +
	"OS2,2024-06-01,X,MWM,,,,,10,10,10\n" +
	"OS3,2023-02-11,GU,MWM,,,,,40,5,25\n"

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Rules.ReferenceDate = "2025-03-15"
	cfg.Store.Driver = config.DriverNone

	var loader *store.Loader
	if withStore {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "orders.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.Migrate(context.Background()))
		loader = store.NewLoader(s, 100, false, zap.NewNop())
		cfg.Store.Driver = config.DriverSQLite
	}

	srv := New(cfg, loader, zap.NewNop())
	srv.now = func() time.Time { return time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC) }
	return srv
}

func uploadRequest(t *testing.T, target, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestServer(t, false), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUpload_CSV(t *testing.T) {
	srv := newTestServer(t, false)

	rec := serve(srv, uploadRequest(t, "/api/uploads", "orders.csv", []byte(ordersCSV)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc report.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, "orders.csv", doc.SourceFile)
	assert.Equal(t, 3, doc.Summary.TotalRows)
	assert.Equal(t, 2, doc.Summary.ValidRows)
	require.Len(t, doc.Rejections, 1)
	assert.Equal(t, types.CauseInvalidStatus, doc.Rejections[0].Cause)
	assert.Equal(t, 3, doc.Rejections[0].RowNumber)
	require.Len(t, doc.Yearly, 2)
	assert.Nil(t, doc.Load)
}

func TestUpload_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Tabela")
	require.NoError(t, err)
	require.NoError(t, f.DeleteSheet("Sheet1"))

	for i, line := range strings.Split(strings.TrimSpace(ordersCSV), "\n") {
		cells := strings.Split(line, ",")
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Tabela", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rec := serve(newTestServer(t, false), uploadRequest(t, "/api/uploads", "orders.xlsx", buf.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc report.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Tabela", doc.SheetName)
	assert.Equal(t, 2, doc.Summary.ValidRows)
}

func TestUpload_LoadThenQuery(t *testing.T) {
	srv := newTestServer(t, true)

	rec := serve(srv, uploadRequest(t, "/api/uploads?load=true", "orders.csv", []byte(ordersCSV)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc report.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.NotNil(t, doc.Load)
	assert.Equal(t, "sqlite", doc.Load.Driver)
	assert.Equal(t, int64(2), doc.Load.Inserted)
	assert.True(t, doc.Load.Verified)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/orders/count", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/orders/sample?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var sample struct {
		Orders []types.NormalizedRecord `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sample))
	require.Len(t, sample.Orders, 1)
	assert.Equal(t, "OS1", sample.Orders[0].OrderNumber)
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		filename string
		content  string
		status   int
		contains string
	}{
		{"unsupported extension", "/api/uploads", "orders.txt", ordersCSV, http.StatusBadRequest, ".xlsx and .csv"},
		{"missing column", "/api/uploads", "orders.csv", "NOrdem_OSv\nOS1\n", http.StatusUnprocessableEntity, "missing source column"},
		{"empty csv", "/api/uploads", "orders.csv", "", http.StatusUnprocessableEntity, "empty"},
		{"load without store", "/api/uploads?load=true", "orders.csv", ordersCSV, http.StatusConflict, "no store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestServer(t, false), uploadRequest(t, tt.target, tt.filename, []byte(tt.content)))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.contains)
		})
	}
}

func TestUpload_MissingField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("nothing"))
	req.Header.Set("Content-Type", "text/plain")

	rec := serve(newTestServer(t, false), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	srv := newTestServer(t, false)
	srv.cfg.Server.MaxUploadMB = 1

	big := bytes.Repeat([]byte("a"), 2<<20)
	rec := serve(srv, uploadRequest(t, "/api/uploads", "orders.csv", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestOrders_WithoutStore(t *testing.T) {
	srv := newTestServer(t, false)
	for _, path := range []string{"/api/orders/count", "/api/orders/sample"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestSample_Limit(t *testing.T) {
	srv := newTestServer(t, true)

	for _, raw := range []string{"0", "-3", "abc"} {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/orders/sample?limit="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/orders/sample?limit=1000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
}
