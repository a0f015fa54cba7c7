package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refledger/models"
	"refledger/service"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Request/response structs use snake_case JSON.

type RegisterRequest struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID           int64           `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	Balance      decimal.Decimal `json:"balance"`
	TotalEarned  decimal.Decimal `json:"total_earned"`
	ReferralCode string          `json:"referral_code"`
	IsAdmin      bool            `json:"is_admin"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type CreateWithdrawalRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails string          `json:"payment_details"`
}

type WithdrawalDecisionRequest struct {
	Status       string `json:"status"`
	AdminComment string `json:"admin_comment"`
}

type ReferralLevelResponse struct {
	Level      int             `json:"level"`
	Count      int64           `json:"count"`
	Earned     decimal.Decimal `json:"earned"`
	Percentage decimal.Decimal `json:"percentage"`
}

type RecentEarningResponse struct {
	Username  string          `json:"username"`
	Level     int             `json:"level"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type ReferralStatsResponse struct {
	Levels         []ReferralLevelResponse `json:"levels"`
	TotalReferrals int64                   `json:"total_referrals"`
	TotalEarnings  decimal.Decimal         `json:"total_earnings"`
	Recent         []RecentEarningResponse `json:"recent"`
}

type WithdrawalResponse struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Username        string          `json:"username,omitempty"`
	Email           string          `json:"email,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentDetails  string          `json:"payment_details"`
	Status          string          `json:"status"`
	AdminComment    string          `json:"admin_comment,omitempty"`
	ProcessedByName string          `json:"processed_by_name,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Handler struct {
	userService       service.UserService
	referralService   service.ReferralService
	withdrawalService service.WithdrawalService
}

func NewHandler(userService service.UserService, referralService service.ReferralService, withdrawalService service.WithdrawalService) *Handler {
	return &Handler{
		userService:       userService,
		referralService:   referralService,
		withdrawalService: withdrawalService,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, token, err := h.userService.Register(r.Context(), req.Email, req.Username, req.Password, req.ReferralCode)
	if err != nil {
		h.writeServiceError(w, err, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: userToResponse(user)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: userToResponse(user)})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *Handler) ReferralStats(w http.ResponseWriter, r *http.Request) {
	user := UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := h.referralService.GetStats(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, err, "failed to load referral stats")
		return
	}
	writeJSON(w, http.StatusOK, statsToResponse(stats))
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	user := UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	request, err := h.withdrawalService.Create(r.Context(), user.ID, req.Amount, req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		h.writeServiceError(w, err, "failed to create withdrawal request")
		return
	}
	writeJSON(w, http.StatusCreated, withdrawalToResponse(request))
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	user := UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	requests, err := h.withdrawalService.List(r.Context(), user.ID, user.IsAdmin)
	if err != nil {
		h.writeServiceError(w, err, "failed to list withdrawal requests")
		return
	}

	responses := make([]WithdrawalResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, withdrawalToResponse(request))
	}
	writeJSON(w, http.StatusOK, responses)
}

// DecideWithdrawal handles PUT /api/v1/withdrawals/{id}.
func (h *Handler) DecideWithdrawal(w http.ResponseWriter, r *http.Request) {
	user := UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	idPart := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	requestID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}

	var req WithdrawalDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	request, err := h.withdrawalService.Transition(r.Context(), requestID, user.ID, user.IsAdmin,
		models.WithdrawalStatus(req.Status), req.AdminComment)
	if err != nil {
		h.writeServiceError(w, err, "failed to update withdrawal request")
		return
	}
	writeJSON(w, http.StatusOK, withdrawalToResponse(request))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing required fields")
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid status transition")
	case errors.Is(err, service.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, service.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "admin access required")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.WithError(err).Error(fallback)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Username:     user.Username,
		Balance:      user.Balance,
		TotalEarned:  user.TotalEarned,
		ReferralCode: user.ReferralCode,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
	}
}

func statsToResponse(stats *models.ReferralStats) ReferralStatsResponse {
	resp := ReferralStatsResponse{
		Levels:         make([]ReferralLevelResponse, 0, models.MaxReferralLevels),
		TotalReferrals: stats.TotalReferrals,
		TotalEarnings:  stats.TotalEarnings,
		Recent:         make([]RecentEarningResponse, 0, len(stats.Recent)),
	}
	for level := 1; level <= models.MaxReferralLevels; level++ {
		ls := stats.Levels[level]
		resp.Levels = append(resp.Levels, ReferralLevelResponse{
			Level:      ls.Level,
			Count:      ls.Count,
			Earned:     ls.Earned,
			Percentage: ls.Percentage,
		})
	}
	for _, detail := range stats.Recent {
		resp.Recent = append(resp.Recent, RecentEarningResponse{
			Username:  detail.Username,
			Level:     detail.Level,
			Amount:    detail.Amount,
			CreatedAt: detail.CreatedAt,
		})
	}
	return resp
}

func withdrawalToResponse(request *models.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID:              request.ID,
		UserID:          request.UserID,
		Username:        request.Username,
		Email:           request.Email,
		Amount:          request.Amount,
		PaymentMethod:   request.PaymentMethod,
		PaymentDetails:  request.PaymentDetails,
		Status:          string(request.Status),
		AdminComment:    request.AdminComment,
		ProcessedByName: request.ProcessedByName,
		ProcessedAt:     request.ProcessedAt,
		CreatedAt:       request.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
