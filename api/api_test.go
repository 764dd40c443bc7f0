package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	appErrors "github.com/fatali-fataliyev/migasto/errors"
	"github.com/fatali-fataliyev/migasto/internal/auth"
	"github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/fatali-fataliyev/migasto/internal/rates"
	"github.com/fatali-fataliyev/migasto/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubRates struct {
	rates rates.Rates
	err   error
}

func (s stubRates) FetchRates(ctx context.Context) (rates.Rates, error) {
	return s.rates, s.err
}

type testEnv struct {
	handler http.Handler
	store   *storage.InMemoryStorage
	tokens  *auth.TokenManager
}

func newTestEnv(t *testing.T, rateProvider rates.Provider) *testEnv {
	t.Helper()
	store := storage.NewInMemoryStorage()
	tokens := auth.NewTokenManager("api-test-secret", time.Hour)
	gate := auth.NewGate(store, tokens, auth.PasswordHasher{Cost: bcrypt.MinCost})
	if rateProvider == nil {
		rateProvider = stubRates{rates: rates.Rates{Base: "USD", USDToLocal: 950, EURToLocal: 1000}}
	}
	api := NewApi(budget.NewBudgetTracker(store), gate, rateProvider)
	return &testEnv{handler: NewRouter(api, []string{"*"}), store: store, tokens: tokens}
}

func (env *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := env.tokens.Issue(auth.PublicUser{ID: 1, Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestMovementsRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"No header", ""},
		{"Wrong scheme", "Basic abc"},
		{"Empty token", "Bearer "},
		{"Garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/movimientos", strings.NewReader(`{"tipo":"gasto","categoria":"Food","monto":5000,"fecha":"2025-01-01"}`))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}

	movements, err := env.store.ListMovements(context.Background())
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestMovementCRUD(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t)

	rec := env.do(t, http.MethodPost, "/movimientos", token, `{"tipo":"gasto","categoria":"Food","monto":"5000","fecha":"2025-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[MovementResponse](t, rec)
	assert.Equal(t, "gasto", created.Tipo)
	assert.Equal(t, 5000.0, created.Monto)
	assert.Equal(t, "", created.Descripcion)
	assert.NotEmpty(t, rec.Header().Get(TraceIDHeader))

	path := "/movimientos/" + itoa(created.ID)
	rec = env.do(t, http.MethodPut, path, token, `{"monto":0,"descripcion":"","categoria":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[MovementResponse](t, rec)
	assert.Equal(t, 0.0, updated.Monto)
	assert.Equal(t, "Food", updated.Categoria)

	rec = env.do(t, http.MethodGet, "/movimientos", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]MovementResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, updated, list[0])

	rec = env.do(t, http.MethodDelete, path, token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, path, token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Movimiento no encontrado", decode[ErrorResponse](t, rec).Error)
}

func TestMovementBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"Missing fields", http.MethodPost, "/movimientos", `{"tipo":"gasto"}`, 400},
		{"Non numeric amount", http.MethodPost, "/movimientos", `{"tipo":"gasto","categoria":"x","monto":"abc","fecha":"2025-01-01"}`, 400},
		{"Negative amount", http.MethodPost, "/movimientos", `{"tipo":"gasto","categoria":"x","monto":-5,"fecha":"2025-01-01"}`, 400},
		{"Bad kind", http.MethodPost, "/movimientos", `{"tipo":"loan","categoria":"x","monto":5,"fecha":"2025-01-01"}`, 400},
		{"Broken JSON", http.MethodPost, "/movimientos", `{"tipo":`, 400},
		{"Bad id", http.MethodPut, "/movimientos/abc", `{}`, 400},
		{"Unknown id", http.MethodPut, "/movimientos/77", `{"categoria":"x"}`, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestGoalsAndDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.token(t)

	rec := env.do(t, http.MethodPost, "/metas", token, `{"nombre":"Trip","montoObjetivo":100000,"montoActual":25000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	goal := decode[GoalResponse](t, rec)
	assert.Equal(t, 25, goal.Progreso)
	assert.False(t, goal.Completada)

	rec = env.do(t, http.MethodPut, "/metas/"+itoa(goal.ID), token, `{"montoActual":100000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	goal = decode[GoalResponse](t, rec)
	assert.True(t, goal.Completada)
	assert.Equal(t, "Trip", goal.Nombre)

	rec = env.do(t, http.MethodPost, "/metas", token, `{"nombre":"Zero","montoObjetivo":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.do(t, http.MethodPost, "/movimientos", token, `{"tipo":"gasto","categoria":"Food","monto":5000,"fecha":"2025-01-01"}`)
	env.do(t, http.MethodPost, "/movimientos", token, `{"tipo":"ingreso","categoria":"Salary","monto":20000,"fecha":"2025-01-02"}`)

	rec = env.do(t, http.MethodGet, "/dashboard", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dashboard := decode[DashboardResponse](t, rec)
	assert.Equal(t, 15000.0, dashboard.Saldo)
	assert.Equal(t, []CategoryTotalResponse{{Categoria: "Food", Total: 5000}}, dashboard.GastosPorCategoria)
	assert.Equal(t, 1, dashboard.Metas.Completadas)
	require.Len(t, dashboard.TopMetas, 1)
	assert.Equal(t, 100, dashboard.TopMetas[0].ProgresoVisible)

	rec = env.do(t, http.MethodGet, "/dashboard?top=0", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/metas/"+itoa(goal.ID), token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/metas/"+itoa(goal.ID), token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/auth/register", "", `{"nombre":"Ana","email":"ana@example.com","password":"secreto1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[UserResponse](t, rec)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotContains(t, rec.Body.String(), "secreto1")

	rec = env.do(t, http.MethodPost, "/auth/register", "", `{"nombre":"Ana","email":"ANA@example.com","password":"otra"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/register", "", `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	wrongPassword := env.do(t, http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"nope"}`)
	unknownEmail := env.do(t, http.MethodPost, "/auth/login", "", `{"email":"nobody@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"ana@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"secreto1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[LoginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, user, login.Usuario)

	rec = env.do(t, http.MethodGet, "/auth/me", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, decode[UserResponse](t, rec))

	rec = env.do(t, http.MethodGet, "/movimientos", login.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRatesHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/divisas", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RatesResponse{Base: "USD", USDCLP: 950, EURCLP: 1000}, decode[RatesResponse](t, rec))

	failing := newTestEnv(t, stubRates{err: appErrors.New(appErrors.ErrUpstream, "No se pudo obtener tasas de cambio")})
	rec = failing.do(t, http.MethodGet, "/divisas", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "No se pudo obtener tasas de cambio", decode[ErrorResponse](t, rec).Error)
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, HealthResponse{Status: "ok", Message: "Backend MiGasto funcionando", Storage: "inmemory"}, decode[HealthResponse](t, rec))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/movimientos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseAmount(t *testing.T) {
	num := func(s string) *json.Number {
		n := json.Number(s)
		return &n
	}

	got, err := parseAmount("monto", nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseAmount("monto", num("12.5"))
	require.NoError(t, err)
	assert.Equal(t, 12.5, *got)

	_, err = parseAmount("monto", num("NaN"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)

	_, err = parseAmount("monto", num("1e400"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidInput)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
