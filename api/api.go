package api

import (
	"encoding/json"
	"strconv"

	"github.com/0xcafe-io/iz"
	appErrors "github.com/fatali-fataliyev/migasto/errors"
	"github.com/fatali-fataliyev/migasto/internal/auth"
	"github.com/fatali-fataliyev/migasto/internal/budget"
	"github.com/fatali-fataliyev/migasto/internal/contextutil"
	"github.com/fatali-fataliyev/migasto/internal/rates"
	"github.com/fatali-fataliyev/migasto/internal/stats"
	"github.com/fatali-fataliyev/migasto/logging"
)

const invalidBodyMessage = "cuerpo de la solicitud inválido"

type Api struct {
	Service *budget.BudgetTracker
	Gate    *auth.Gate
	Rates   rates.Provider
}

func NewApi(service *budget.BudgetTracker, gate *auth.Gate, rateProvider rates.Provider) *Api {
	return &Api{
		Service: service,
		Gate:    gate,
		Rates:   rateProvider,
	}
}

// MOVEMENT HANDLERS.

func (api *Api) ListMovementsHandler(r *iz.Request) iz.Responder {
	movements, err := api.Service.ListMovements(r.Context())
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list movements | Error: %v", contextutil.TraceIDFromContext(r.Context()), err)
		return errorJSON(err, "No se pudieron obtener los movimientos")
	}

	resp := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		resp = append(resp, MovementToHttp(m))
	}
	return iz.Respond().Status(200).JSON(resp)
}

func (api *Api) SaveMovementHandler(r *iz.Request) iz.Responder {
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badBody(r, err)
	}

	newMovement, err := req.toCreate()
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	created, err := api.Service.SaveMovement(r.Context(), newMovement)
	if err != nil {
		return errorJSON(err, "No se pudo crear el movimiento")
	}
	return iz.Respond().Status(201).JSON(MovementToHttp(created))
}

func (api *Api) UpdateMovementHandler(r *iz.Request) iz.Responder {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badBody(r, err)
	}

	patch, err := req.toPatch()
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	updated, err := api.Service.UpdateMovement(r.Context(), id, patch)
	if err != nil {
		return errorJSON(err, "No se pudo actualizar el movimiento")
	}
	return iz.Respond().Status(200).JSON(MovementToHttp(updated))
}

func (api *Api) DeleteMovementHandler(r *iz.Request) iz.Responder {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	if err := api.Service.DeleteMovement(r.Context(), id); err != nil {
		return errorJSON(err, "No se pudo eliminar el movimiento")
	}
	return iz.Respond().Status(204).Text("")
}

// GOAL HANDLERS.

func (api *Api) ListGoalsHandler(r *iz.Request) iz.Responder {
	goals, err := api.Service.ListGoals(r.Context())
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to list goals | Error: %v", contextutil.TraceIDFromContext(r.Context()), err)
		return errorJSON(err, "No se pudieron obtener las metas")
	}

	resp := make([]GoalResponse, 0, len(goals))
	for _, g := range goals {
		resp = append(resp, GoalToHttp(g))
	}
	return iz.Respond().Status(200).JSON(resp)
}

func (api *Api) SaveGoalHandler(r *iz.Request) iz.Responder {
	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badBody(r, err)
	}

	newGoal, err := req.toCreate()
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	created, err := api.Service.SaveGoal(r.Context(), newGoal)
	if err != nil {
		return errorJSON(err, "No se pudo crear la meta")
	}
	return iz.Respond().Status(201).JSON(GoalToHttp(created))
}

func (api *Api) UpdateGoalHandler(r *iz.Request) iz.Responder {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	var req GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badBody(r, err)
	}

	patch, err := req.toPatch()
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	updated, err := api.Service.UpdateGoal(r.Context(), id, patch)
	if err != nil {
		return errorJSON(err, "No se pudo actualizar la meta")
	}
	return iz.Respond().Status(200).JSON(GoalToHttp(updated))
}

func (api *Api) DeleteGoalHandler(r *iz.Request) iz.Responder {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		return errorJSON(err, invalidBodyMessage)
	}

	if err := api.Service.DeleteGoal(r.Context(), id); err != nil {
		return errorJSON(err, "No se pudo eliminar la meta")
	}
	return iz.Respond().Status(204).Text("")
}

// STATISTICS HANDLERS.

func (api *Api) DashboardHandler(r *iz.Request) iz.Responder {
	topN := stats.DEFAULT_TOP_GOALS
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return errorJSON(appErrors.New(appErrors.ErrInvalidInput, "top debe ser un entero positivo"), invalidBodyMessage)
		}
		topN = n
	}

	movements, goals, err := api.Service.Snapshot(r.Context())
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to build dashboard | Error: %v", contextutil.TraceIDFromContext(r.Context()), err)
		return errorJSON(err, "No se pudo calcular el resumen")
	}

	dashboard := stats.Summarize(movements, goals, topN)
	return iz.Respond().Status(200).JSON(DashboardToHttp(dashboard))
}

// USER HANDLERS.

func (api *Api) RegisterHandler(r *iz.Request) iz.Responder {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badBody(r, err)
	}

	user, err := api.Gate.Register(r.Context(), auth.NewUser{
		Name:          req.Nombre,
		Email:         req.Email,
		PasswordPlain: req.Password,
	})
	if err != nil {
		if httpStatusFromError(err) == 500 {
			logging.Logger.Errorf("[TraceID=%s] | registration failed | Error: %v", contextutil.TraceIDFromContext(r.Context()), err)
		}
		return errorJSON(err, "Error en el registro")
	}
	return iz.Respond().Status(201).JSON(UserToHttp(user))
}

func (api *Api) LoginHandler(r *iz.Request) iz.Responder {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badBody(r, err)
	}

	result, err := api.Gate.Login(r.Context(), auth.UserCredentialsPure{
		Email:         req.Email,
		PasswordPlain: req.Password,
	})
	if err != nil {
		if httpStatusFromError(err) == 500 {
			logging.Logger.Errorf("[TraceID=%s] | login failed | Error: %v", contextutil.TraceIDFromContext(r.Context()), err)
		}
		return errorJSON(err, "Error en el login")
	}

	resp := LoginResponse{
		Token:   result.Token,
		Usuario: UserToHttp(result.User),
	}
	return iz.Respond().Status(200).JSON(resp)
}

func (api *Api) MeHandler(r *iz.Request) iz.Responder {
	identity, ok := contextutil.IdentityFromContext(r.Context())
	if !ok {
		return errorJSON(appErrors.New(appErrors.ErrAuth, "token requerido"), "token requerido")
	}
	return iz.Respond().Status(200).JSON(UserResponse{
		ID:     identity.ID,
		Nombre: identity.Name,
		Email:  identity.Email,
	})
}

// PUBLIC HANDLERS.

func (api *Api) RatesHandler(r *iz.Request) iz.Responder {
	snapshot, err := api.Rates.FetchRates(r.Context())
	if err != nil {
		return errorJSON(err, "No se pudo obtener tasas de cambio")
	}

	resp := RatesResponse{
		Base:   snapshot.Base,
		USDCLP: snapshot.USDToLocal,
		EURCLP: snapshot.EURToLocal,
	}
	return iz.Respond().Status(200).JSON(resp)
}

func (api *Api) HealthHandler(r *iz.Request) iz.Responder {
	resp := HealthResponse{
		Status:  "ok",
		Message: "Backend MiGasto funcionando",
		Storage: api.Service.StorageType,
	}
	return iz.Respond().Status(200).JSON(resp)
}

func badBody(r *iz.Request, err error) iz.Responder {
	logging.Logger.Debugf("[TraceID=%s] | invalid request body: %v", contextutil.TraceIDFromContext(r.Context()), err)
	return iz.Respond().Status(400).JSON(ErrorResponse{Error: invalidBodyMessage})
}
