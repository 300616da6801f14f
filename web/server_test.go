package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripvault/auth"
	"tripvault/config"
	"tripvault/db/mem"
	"tripvault/ledger"
	"tripvault/mq/goch"
	"tripvault/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	router *gin.Engine
	jwt    *auth.JWTManager
	files  *storage.LocalFileStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, &config.Config{IsDev: true, RateLimit: 10000})
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	trips := mem.NewInMemoryTripDBWrapper()
	users := mem.NewInMemoryUserDBWrapper()
	files, err := storage.NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	events := goch.NewGoChanExpenseMessageQueueWrapper(goch.DefaultBufferSize)
	t.Cleanup(events.Close)

	jwtManager := auth.NewJWTManager(testSecret, time.Hour)
	router := NewRouter(cfg, Dependencies{
		Ledger: ledger.New(trips, users, files, events),
		Users:  users,
		Files:  files,
		Events: events,
		JWT:    jwtManager,
	})
	return &testServer{router: router, jwt: jwtManager, files: files}
}

func (s *testServer) token(t *testing.T, userID, firstName string) string {
	t.Helper()
	token, err := s.jwt.Generate(userID, auth.Claims{FirstName: firstName, Email: userID + "@example.com"})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID, strings.ToUpper(userID[:1])+userID[1:]))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createTrip makes alice the Admin of a trip with bob and carol.
func (s *testServer) createTrip(t *testing.T) tripResponse {
	t.Helper()
	// bob signs in once so his profile is known
	s.do(t, http.MethodGet, "/api/payment-settings", "bob", nil)

	w := s.do(t, http.MethodPost, "/api/trips", "alice", gin.H{
		"name":    "Goa",
		"members": []gin.H{{"userId": "bob"}, {"userId": "carol", "role": "Viewer"}},
		"budget":  gin.H{"total": 5000},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[tripResponse](t, w)
}

func (s *testServer) createExpense(t *testing.T, tripID string, body gin.H) expenseResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/trips/"+tripID+"/expenses", "alice", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[expenseResponse](t, w)
}

func dinner() gin.H {
	return gin.H{
		"title":    "Dinner",
		"amount":   1000,
		"category": "food",
		"splits":   []gin.H{{"userId": "alice", "percentage": 50}, {"userId": "bob", "percentage": 50}},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", "", nil)
	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/payment-settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, auth.ErrMissingToken.Error(), decode[errorResponse](t, w).Message)

	req := httptest.NewRequest(http.MethodGet, "/api/payment-settings", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/payment-settings?token="+s.token(t, "alice", "Alice"), nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTripAndExpenseFlow(t *testing.T) {
	s := newTestServer(t)
	trip := s.createTrip(t)
	require.Len(t, trip.Members, 3)
	assert.Equal(t, "Admin", trip.Members[0].Role)
	assert.Equal(t, "Alice", trip.Members[0].UserName)
	assert.Equal(t, "Bob", trip.Members[1].UserName)

	expense := s.createExpense(t, trip.ID, dinner())
	assert.Equal(t, "alice", expense.PaidBy)
	require.Len(t, expense.Splits, 2)
	assert.Equal(t, 500.0, expense.Splits[1].Amount)
	assert.Equal(t, "Bob", expense.Splits[1].UserName)

	w := s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/balance", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bal := decode[balanceResponse](t, w)
	assert.Equal(t, -500.0, bal.Balance)
	assert.Equal(t, 500.0, bal.UserOwes)
	require.Len(t, bal.BalancesWith, 1)
	assert.Equal(t, "alice", bal.BalancesWith[0].UserID)
	assert.Equal(t, "Alice", bal.BalancesWith[0].UserName)
	assert.Equal(t, -500.0, bal.BalancesWith[0].Amount)

	w = s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/statistics", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[statisticsResponse](t, w)
	assert.Equal(t, 1000.0, stats.TotalExpenses)
	assert.Equal(t, 4000.0, stats.RemainingBudget)
	assert.Equal(t, 20.0, stats.BudgetPercentage)
	assert.Equal(t, categoryResponse{Total: 1000, Count: 1, Percentage: 100}, stats.CategoryBreakdown["food"])

	w = s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/settlements", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []transferResponse{{From: "bob", FromName: "Bob", To: "alice", ToName: "Alice", Amount: 500}},
		decode[[]transferResponse](t, w))

	w = s.do(t, http.MethodPut, "/api/expenses/"+expense.ID+"/splits/bob/paid", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[expenseResponse](t, w).Splits[1].IsPaid)

	w = s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/balance?includeSettled=true", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bal = decode[balanceResponse](t, w)
	assert.Equal(t, 0.0, bal.Balance)
	require.Len(t, bal.BalancesWith, 1)
	assert.True(t, bal.BalancesWith[0].IsPaid)

	w = s.do(t, http.MethodPut, "/api/expenses/"+expense.ID, "alice", gin.H{"amount": 1200})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[expenseResponse](t, w)
	assert.Equal(t, 600.0, updated.Splits[1].Amount)
	assert.False(t, updated.Splits[1].IsPaid)

	w = s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/expenses?sortBy=amount", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]expenseResponse](t, w), 1)

	w = s.do(t, http.MethodDelete, "/api/expenses/"+expense.ID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/expenses/"+expense.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	trip := s.createTrip(t)

	bad := dinner()
	bad["splits"] = []gin.H{{"userId": "alice", "percentage": 50}, {"userId": "bob", "percentage": 45}}
	w := s.do(t, http.MethodPost, "/api/trips/"+trip.ID+"/expenses", "alice", bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorResponse](t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "splits", resp.Field)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 95.0, *resp.Total)

	w = s.do(t, http.MethodGet, "/api/trips/"+trip.ID, "mallory", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/trips/00000000-0000-0000-0000-000000000001", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/trips/not-a-uuid", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/balance?includeSettled=maybe", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	expense := s.createExpense(t, trip.ID, dinner())
	w = s.do(t, http.MethodPut, "/api/expenses/"+expense.ID, "carol", gin.H{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/trips/"+trip.ID+"/budget", "bob", gin.H{"total": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/trips", "alice", gin.H{"members": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const pngMagic = "\x89PNG\r\n\x1a\n"

func (s *testServer) postExpenseForm(t *testing.T, tripID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Hotel"))
	require.NoError(t, mw.WriteField("amount", "3000"))
	require.NoError(t, mw.WriteField("category", "accommodation"))
	require.NoError(t, mw.WriteField("expenseDate", "2026-04-30"))
	require.NoError(t, mw.WriteField("splits", `[{"userId":"alice","percentage":60},{"userId":"bob","percentage":40}]`))
	part, err := mw.CreateFormFile("billImage", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/trips/"+tripID+"/expenses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(t, "alice", "Alice"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestCreateExpenseMultipart(t *testing.T) {
	s := newTestServer(t)
	trip := s.createTrip(t)

	w := s.postExpenseForm(t, trip.ID, "bill.png", pngMagic+"bill")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	expense := decode[expenseResponse](t, w)
	assert.Equal(t, 1200.0, expense.Splits[1].Amount)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), expense.ExpenseDate)
	require.True(t, strings.HasPrefix(expense.BillImage, filesPath+"bills/"), expense.BillImage)

	w = s.do(t, http.MethodGet, expense.BillImage, "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngMagic+"bill", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	w = s.do(t, http.MethodGet, filesPath+"bills/missing.png", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateExpenseMultipart_RejectsActiveContent(t *testing.T) {
	s := newTestServer(t)
	trip := s.createTrip(t)

	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"html file", "bill.html", "<html><script>alert(1)</script></html>"},
		{"svg file", "bill.svg", `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`},
		{"html named png", "bill.png", "<html><script>alert(1)</script></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postExpenseForm(t, trip.ID, tt.filename, tt.content)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decode[errorResponse](t, w)
			assert.Equal(t, "billImage", resp.Field)
		})
	}

	w := s.do(t, http.MethodGet, "/api/trips/"+trip.ID+"/expenses", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]expenseResponse](t, w))
}

func TestGetFile_UnknownTypeIsDownloadOnly(t *testing.T) {
	s := newTestServer(t)
	ref, err := s.files.Save(context.Background(), "bills", "legacy.html", strings.NewReader("<script>alert(1)</script>"))
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, filesPath+ref, "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment", w.Header().Get("Content-Disposition"))
}

func TestPaymentSettings(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/payment-settings", "bob", gin.H{"upiId": "bob@okbank", "phoneNumber": "+919876543210"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "bob@okbank", decode[paymentSettingsResponse](t, w).UPIID)

	w = s.do(t, http.MethodGet, "/api/payment-settings/bob", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+919876543210", decode[paymentSettingsResponse](t, w).PhoneNumber)

	w = s.do(t, http.MethodPut, "/api/payment-settings", "bob", gin.H{"upiId": "not a upi"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "upiId", decode[errorResponse](t, w).Field)

	w = s.do(t, http.MethodGet, "/api/payment-settings/nobody", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)
	trip := s.createTrip(t)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/trips/" + trip.ID + "/events?token=" + s.token(t, "bob", "Bob")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	received := make(chan eventResponse, 16)
	go func() {
		defer close(received)
		for {
			var ev eventResponse
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			received <- ev
		}
	}()

	// subscriptions are set up asynchronously, so keep creating until one arrives
	var got eventResponse
	require.Eventually(t, func() bool {
		s.createExpense(t, trip.ID, dinner())
		select {
		case got = <-received:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "create", got.Action)
	assert.Equal(t, trip.ID, got.TripID)
	assert.Equal(t, "alice", got.Actor)
	assert.Equal(t, 1000.0, got.Amount)
}

func TestEventStream_AllowedOrigins(t *testing.T) {
	s := newTestServerWithConfig(t, &config.Config{RateLimit: 10000, AllowedOrigins: []string{"http://app.test"}})
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })
	trip := s.createTrip(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/trips/" + trip.ID + "/events?token=" + s.token(t, "bob", "Bob")

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://app.test"}})
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()

	_, resp, err = websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEventStream_NonMember(t *testing.T) {
	s := newTestServer(t)
	trip := s.createTrip(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/trips/" + trip.ID + "/events?token=" + s.token(t, "mallory", "Mallory")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
