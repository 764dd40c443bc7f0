package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/0xcafe-io/iz"
	appErrors "github.com/fatali-fataliyev/migasto/errors"
	"github.com/fatali-fataliyev/migasto/internal/auth"
	"github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/fatali-fataliyev/migasto/internal/stats"
)

// REQUESTS START:

// Amounts arrive either as JSON numbers or numeric strings, so they are
// kept as json.Number until validated.
type MovementRequest struct {
	Tipo        *string      `json:"tipo"`
	Categoria   *string      `json:"categoria"`
	Monto       *json.Number `json:"monto"`
	Fecha       *string      `json:"fecha"`
	Descripcion *string      `json:"descripcion"`
}

type GoalRequest struct {
	Nombre        *string      `json:"nombre"`
	MontoObjetivo *json.Number `json:"montoObjetivo"`
	MontoActual   *json.Number `json:"montoActual"`
	FechaLimite   *string      `json:"fechaLimite"`
	Descripcion   *string      `json:"descripcion"`
}

type RegisterRequest struct {
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// REQUESTS END:

// RESPONSES:

type ErrorResponse struct {
	Error string `json:"error"`
}

type MovementResponse struct {
	ID          int64   `json:"id"`
	Tipo        string  `json:"tipo"`
	Categoria   string  `json:"categoria"`
	Monto       float64 `json:"monto"`
	Fecha       string  `json:"fecha"`
	Descripcion string  `json:"descripcion"`
}

type GoalResponse struct {
	ID            int64   `json:"id"`
	Nombre        string  `json:"nombre"`
	MontoObjetivo float64 `json:"montoObjetivo"`
	MontoActual   float64 `json:"montoActual"`
	FechaLimite   string  `json:"fechaLimite"`
	Descripcion   string  `json:"descripcion"`
	Progreso      int     `json:"progreso"`
	Completada    bool    `json:"completada"`
}

type UserResponse struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
	Email  string `json:"email"`
}

type LoginResponse struct {
	Token   string       `json:"token"`
	Usuario UserResponse `json:"usuario"`
}

type RatesResponse struct {
	Base   string  `json:"base"`
	USDCLP float64 `json:"usd_clp"`
	EURCLP float64 `json:"eur_clp"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Storage string `json:"storage"`
}

type CategoryTotalResponse struct {
	Categoria string  `json:"categoria"`
	Total     float64 `json:"total"`
}

type GoalSummaryResponse struct {
	Cantidad       int     `json:"cantidad"`
	Completadas    int     `json:"completadas"`
	TotalAhorrado  float64 `json:"totalAhorrado"`
	TotalObjetivo  float64 `json:"totalObjetivo"`
	ProgresoGlobal int     `json:"progresoGlobal"`
}

type TopGoalResponse struct {
	GoalResponse
	ProgresoVisible int `json:"progresoVisible"`
}

type DashboardResponse struct {
	TotalIngresos      float64                 `json:"totalIngresos"`
	TotalGastos        float64                 `json:"totalGastos"`
	Saldo              float64                 `json:"saldo"`
	GastosPorCategoria []CategoryTotalResponse `json:"gastosPorCategoria"`
	Metas              GoalSummaryResponse     `json:"metas"`
	TopMetas           []TopGoalResponse       `json:"topMetas"`
}

// RESPONSES END:

func (req MovementRequest) toCreate() (budget.MovementRequest, error) {
	amount, err := parseAmount("monto", req.Monto)
	if err != nil {
		return budget.MovementRequest{}, err
	}
	return budget.MovementRequest{
		Kind:        deref(req.Tipo),
		Category:    deref(req.Categoria),
		Amount:      amount,
		Date:        deref(req.Fecha),
		Description: deref(req.Descripcion),
	}, nil
}

func (req MovementRequest) toPatch() (budget.MovementPatch, error) {
	amount, err := parseAmount("monto", req.Monto)
	if err != nil {
		return budget.MovementPatch{}, err
	}
	return budget.MovementPatch{
		Kind:        req.Tipo,
		Category:    req.Categoria,
		Amount:      amount,
		Date:        req.Fecha,
		Description: req.Descripcion,
	}, nil
}

func (req GoalRequest) toCreate() (budget.GoalRequest, error) {
	target, err := parseAmount("montoObjetivo", req.MontoObjetivo)
	if err != nil {
		return budget.GoalRequest{}, err
	}
	current, err := parseAmount("montoActual", req.MontoActual)
	if err != nil {
		return budget.GoalRequest{}, err
	}
	return budget.GoalRequest{
		Name:          deref(req.Nombre),
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      deref(req.FechaLimite),
		Description:   deref(req.Descripcion),
	}, nil
}

func (req GoalRequest) toPatch() (budget.GoalPatch, error) {
	target, err := parseAmount("montoObjetivo", req.MontoObjetivo)
	if err != nil {
		return budget.GoalPatch{}, err
	}
	current, err := parseAmount("montoActual", req.MontoActual)
	if err != nil {
		return budget.GoalPatch{}, err
	}
	return budget.GoalPatch{
		Name:          req.Nombre,
		TargetAmount:  target,
		CurrentAmount: current,
		Deadline:      req.FechaLimite,
		Description:   req.Descripcion,
	}, nil
}

// parseAmount returns nil for an absent or null amount.
func parseAmount(field string, raw *json.Number) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw.String(), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("%s debe ser un número", field))
	}
	return &value, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.New(appErrors.ErrInvalidInput, fmt.Sprintf("id inválido: '%s'", raw))
	}
	return id, nil
}

func MovementToHttp(m budget.Movement) MovementResponse {
	return MovementResponse{
		ID:          m.ID,
		Tipo:        string(m.Kind),
		Categoria:   m.Category,
		Monto:       m.Amount,
		Fecha:       m.Date,
		Descripcion: m.Description,
	}
}

func GoalToHttp(g budget.Goal) GoalResponse {
	return GoalResponse{
		ID:            g.ID,
		Nombre:        g.Name,
		MontoObjetivo: g.TargetAmount,
		MontoActual:   g.CurrentAmount,
		FechaLimite:   g.Deadline,
		Descripcion:   g.Description,
		Progreso:      g.ProgressPercent(),
		Completada:    g.Completed(),
	}
}

func UserToHttp(u auth.PublicUser) UserResponse {
	return UserResponse{ID: u.ID, Nombre: u.Name, Email: u.Email}
}

func DashboardToHttp(d stats.Dashboard) DashboardResponse {
	resp := DashboardResponse{
		TotalIngresos:      d.TotalIncome,
		TotalGastos:        d.TotalExpense,
		Saldo:              d.Balance,
		GastosPorCategoria: make([]CategoryTotalResponse, 0, len(d.SpendByCategory)),
		Metas: GoalSummaryResponse{
			Cantidad:       d.Goals.Count,
			Completadas:    d.Goals.CompletedCount,
			TotalAhorrado:  d.Goals.TotalSaved,
			TotalObjetivo:  d.Goals.TotalTarget,
			ProgresoGlobal: d.Goals.GlobalProgressPercent,
		},
		TopMetas: make([]TopGoalResponse, 0, len(d.TopGoals)),
	}
	for _, c := range d.SpendByCategory {
		resp.GastosPorCategoria = append(resp.GastosPorCategoria, CategoryTotalResponse{Categoria: c.Category, Total: c.Total})
	}
	for _, g := range d.TopGoals {
		resp.TopMetas = append(resp.TopMetas, TopGoalResponse{GoalResponse: GoalToHttp(g.Goal), ProgresoVisible: g.DisplayPercent})
	}
	return resp
}

func httpStatusFromError(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrNotFound):
		return 404 // not found
	case errors.Is(err, appErrors.ErrInvalidInput):
		return 400 // bad request
	case errors.Is(err, appErrors.ErrAuth):
		return 401 // unauthorized
	case errors.Is(err, appErrors.ErrConflict):
		return 400 // duplicate values are reported as bad requests
	case errors.Is(err, appErrors.ErrUpstream):
		return 500 // third party failure
	default:
		return 500 // internal error
	}
}

// errorJSON answers with {"error": msg}. Messages of unexpected errors are
// replaced with fallback so internals never leak.
func errorJSON(err error, fallback string) iz.Responder {
	status := httpStatusFromError(err)
	msg := appErrors.PublicMessage(err, fallback)
	if status == 500 && !errors.Is(err, appErrors.ErrUpstream) {
		msg = fallback
	}
	return iz.Respond().Status(status).JSON(ErrorResponse{Error: msg})
}
