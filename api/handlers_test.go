package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"refledger/models"
	"refledger/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stub services return canned values so handler tests exercise only the HTTP
// mapping: decoding, status codes, and error translation.

type stubUserService struct {
	registerUser *models.User
	registerErr  error
	loginUser    *models.User
	loginErr     error
	tokenUserID  int64
	tokenErr     error
	getUser      *models.User
	getErr       error
}

func (s *stubUserService) Register(ctx context.Context, email, username, password, referralCodeInput string) (*models.User, string, error) {
	if s.registerErr != nil {
		return nil, "", s.registerErr
	}
	return s.registerUser, "token", nil
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if s.loginErr != nil {
		return nil, "", s.loginErr
	}
	return s.loginUser, "token", nil
}

func (s *stubUserService) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	return s.getUser, s.getErr
}

func (s *stubUserService) ValidateToken(token string) (int64, error) {
	return s.tokenUserID, s.tokenErr
}

type stubWithdrawalService struct {
	created       *models.WithdrawalRequest
	createErr     error
	transitioned  *models.WithdrawalRequest
	transitionErr error
	listed        []*models.WithdrawalRequest

	gotRequestID int64
	gotStatus    models.WithdrawalStatus
	gotIsAdmin   bool
}

func (s *stubWithdrawalService) Create(ctx context.Context, userID int64, amount decimal.Decimal, paymentMethod, paymentDetails string) (*models.WithdrawalRequest, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.created, nil
}

func (s *stubWithdrawalService) Transition(ctx context.Context, requestID, adminID int64, isAdmin bool, newStatus models.WithdrawalStatus, comment string) (*models.WithdrawalRequest, error) {
	s.gotRequestID = requestID
	s.gotStatus = newStatus
	s.gotIsAdmin = isAdmin
	if s.transitionErr != nil {
		return nil, s.transitionErr
	}
	return s.transitioned, nil
}

func (s *stubWithdrawalService) List(ctx context.Context, userID int64, isAdmin bool) ([]*models.WithdrawalRequest, error) {
	return s.listed, nil
}

type stubReferralService struct {
	stats *models.ReferralStats
	err   error
}

func (s *stubReferralService) PropagateRegistrationBonus(ctx context.Context, uow service.UnitOfWork, newUserID, directReferrerID int64, baseBonus decimal.Decimal) error {
	return nil
}

func (s *stubReferralService) GetStats(ctx context.Context, userID int64) (*models.ReferralStats, error) {
	return s.stats, s.err
}

func authedRequest(method, path, body string, user *models.User) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if user != nil {
		r = r.WithContext(WithUser(r.Context(), user))
	}
	return r
}

func TestHandler_Register(t *testing.T) {
	users := &stubUserService{registerUser: &models.User{ID: 1, Email: "a@example.com", Username: "a"}}
	handler := NewHandler(users, &stubReferralService{}, &stubWithdrawalService{})

	w := httptest.NewRecorder()
	handler.Register(w, authedRequest(http.MethodPost, "/api/v1/auth/register",
		`{"email":"a@example.com","username":"a","password":"pw"}`, nil))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "token", resp.Token)
	assert.Equal(t, int64(1), resp.User.ID)
}

func TestHandler_Register_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"missing fields", service.ErrMissingFields, http.StatusBadRequest},
		{"duplicate email", service.ErrDuplicateEmail, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(&stubUserService{registerErr: tc.err}, &stubReferralService{}, &stubWithdrawalService{})

			w := httptest.NewRecorder()
			handler.Register(w, authedRequest(http.MethodPost, "/api/v1/auth/register", `{}`, nil))
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestHandler_Login_InvalidCredentials(t *testing.T) {
	handler := NewHandler(&stubUserService{loginErr: service.ErrInvalidCredentials}, &stubReferralService{}, &stubWithdrawalService{})

	w := httptest.NewRecorder()
	handler.Login(w, authedRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"a@example.com","password":"wrong"}`, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_CreateWithdrawal(t *testing.T) {
	withdrawals := &stubWithdrawalService{created: &models.WithdrawalRequest{
		ID:     11,
		UserID: 1,
		Amount: decimal.NewFromInt(50),
		Status: models.WithdrawalStatusPending,
	}}
	handler := NewHandler(&stubUserService{}, &stubReferralService{}, withdrawals)

	w := httptest.NewRecorder()
	handler.CreateWithdrawal(w, authedRequest(http.MethodPost, "/api/v1/withdrawals",
		`{"amount":"50","payment_method":"paypal","payment_details":"a@example.com"}`,
		&models.User{ID: 1}))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp WithdrawalResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(11), resp.ID)
	assert.Equal(t, "pending", resp.Status)
}

func TestHandler_CreateWithdrawal_Unauthenticated(t *testing.T) {
	handler := NewHandler(&stubUserService{}, &stubReferralService{}, &stubWithdrawalService{})

	w := httptest.NewRecorder()
	handler.CreateWithdrawal(w, authedRequest(http.MethodPost, "/api/v1/withdrawals", `{}`, nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_DecideWithdrawal(t *testing.T) {
	withdrawals := &stubWithdrawalService{transitioned: &models.WithdrawalRequest{
		ID:     11,
		Status: models.WithdrawalStatusApproved,
	}}
	handler := NewHandler(&stubUserService{}, &stubReferralService{}, withdrawals)

	w := httptest.NewRecorder()
	handler.DecideWithdrawal(w, authedRequest(http.MethodPut, "/api/v1/withdrawals/11",
		`{"status":"approved","admin_comment":"ok"}`,
		&models.User{ID: 99, IsAdmin: true}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(11), withdrawals.gotRequestID)
	assert.Equal(t, models.WithdrawalStatusApproved, withdrawals.gotStatus)
	assert.True(t, withdrawals.gotIsAdmin)
}

func TestHandler_DecideWithdrawal_Errors(t *testing.T) {
	t.Run("bad id", func(t *testing.T) {
		handler := NewHandler(&stubUserService{}, &stubReferralService{}, &stubWithdrawalService{})
		w := httptest.NewRecorder()
		handler.DecideWithdrawal(w, authedRequest(http.MethodPut, "/api/v1/withdrawals/abc", `{}`,
			&models.User{ID: 99, IsAdmin: true}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("forbidden", func(t *testing.T) {
		handler := NewHandler(&stubUserService{}, &stubReferralService{}, &stubWithdrawalService{transitionErr: service.ErrForbidden})
		w := httptest.NewRecorder()
		handler.DecideWithdrawal(w, authedRequest(http.MethodPut, "/api/v1/withdrawals/11",
			`{"status":"approved"}`, &models.User{ID: 5}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		handler := NewHandler(&stubUserService{}, &stubReferralService{}, &stubWithdrawalService{transitionErr: service.ErrInvalidTransition})
		w := httptest.NewRecorder()
		handler.DecideWithdrawal(w, authedRequest(http.MethodPut, "/api/v1/withdrawals/11",
			`{"status":"completed"}`, &models.User{ID: 99, IsAdmin: true}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_ReferralStats(t *testing.T) {
	stats := &models.ReferralStats{
		Levels:         map[int]*models.ReferralLevelStats{},
		TotalReferrals: 2,
		TotalEarnings:  decimal.NewFromInt(15),
	}
	for level := 1; level <= models.MaxReferralLevels; level++ {
		stats.Levels[level] = &models.ReferralLevelStats{
			Level:      level,
			Earned:     decimal.Zero,
			Percentage: models.ReferralLevelPercents[level],
		}
	}
	stats.Levels[1].Count = 2
	stats.Levels[1].Earned = decimal.NewFromInt(15)

	handler := NewHandler(&stubUserService{}, &stubReferralService{stats: stats}, &stubWithdrawalService{})

	w := httptest.NewRecorder()
	handler.ReferralStats(w, authedRequest(http.MethodGet, "/api/v1/referrals/stats", "", &models.User{ID: 1}))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ReferralStatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Levels, models.MaxReferralLevels)
	assert.Equal(t, int64(2), resp.Levels[0].Count)
	assert.Equal(t, int64(2), resp.TotalReferrals)
}

func TestRequireAuth(t *testing.T) {
	user := &models.User{ID: 7, Username: "authed"}
	users := &stubUserService{tokenUserID: 7, getUser: user}

	var seen *models.User
	protected := RequireAuth(users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		bad := &stubUserService{tokenErr: service.ErrInvalidToken}
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		RequireAuth(bad)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler reached with invalid token")
		})).ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		protected.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, int64(7), seen.ID)
	})
}
