package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"Rondin/Controllers"
	"Rondin/Deadlines"
	"Rondin/Models"
	"Rondin/Notifications"
	"Rondin/middleware"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var userSeq int32

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	evaluator *Deadlines.Evaluator
	pushCalls *int32
	pushFail  *int32 // when non-zero the fake sender errors out
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Models.Migrate(db))
	Models.DB = db

	evaluator := Deadlines.NewEvaluator(-5)

	var pushCalls, pushFail int32
	dispatcher := Notifications.NewDispatcher(db)
	dispatcher.Send = func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		atomic.AddInt32(&pushCalls, 1)
		if atomic.LoadInt32(&pushFail) != 0 {
			return nil, fmt.Errorf("push service unreachable")
		}
		return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}

	handler := Controllers.NewTaskController(db, evaluator, dispatcher)

	app := fiber.New()
	tasks := app.Group("/api/tasks", middleware.Verify(1))
	tasks.Post("/mark-missed", middleware.Verify(3), handler.MarkMissedTasks)
	tasks.Get("/", handler.GetTasks)
	tasks.Get("/:id", handler.GetTask)
	tasks.Post("/:id/complete", handler.CompleteTask)
	tasks.Post("/:id/audit", middleware.Verify(2), handler.AuditExecution)
	tasks.Post("/:id/cancel", middleware.Verify(3), handler.CancelTask)

	return &testEnv{app: app, db: db, evaluator: evaluator, pushCalls: &pushCalls, pushFail: &pushFail}
}

func (e *testEnv) createUser(t *testing.T, permission int, companyID uint) Models.User {
	t.Helper()
	n := atomic.AddInt32(&userSeq, 1)
	user := Models.User{
		Name:       fmt.Sprintf("User %d", n),
		Email:      fmt.Sprintf("user%d@example.com", n),
		Password:   []byte("not-a-real-hash"),
		Permission: permission,
		CompanyID:  companyID,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user Models.User) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    strconv.Itoa(int(user.ID)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.SecretKey())
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, url string, body interface{}, user *Models.User) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *user))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func f64(v float64) *float64 { return &v }

func (e *testEnv) createRoutine(t *testing.T, companyID uint, requireGPS, requireInventory bool) Models.Routine {
	t.Helper()
	routine := Models.Routine{
		CompanyID:        companyID,
		Name:             "Exhibition check",
		RequireGPS:       requireGPS,
		RequireInventory: requireInventory,
	}
	require.NoError(t, e.db.Create(&routine).Error)
	return routine
}

func (e *testEnv) createPDV(t *testing.T, companyID uint, lat, lng, radius *float64) Models.PDV {
	t.Helper()
	pdv := Models.PDV{
		CompanyID:      companyID,
		Name:           "Store 42",
		Latitude:       lat,
		Longitude:      lng,
		GeofenceRadius: radius,
	}
	require.NoError(t, e.db.Create(&pdv).Error)
	return pdv
}

func (e *testEnv) createTask(t *testing.T, routine Models.Routine, pdv Models.PDV, scheduledDate, estado string) Models.TaskInstance {
	t.Helper()
	task := Models.TaskInstance{
		CompanyID:     routine.CompanyID,
		RoutineID:     routine.ID,
		PDVID:         pdv.ID,
		ScheduledDate: scheduledDate,
		Estado:        estado,
		AuditStatus:   Models.AuditUnreviewed,
	}
	require.NoError(t, e.db.Create(&task).Error)
	return task
}

func (e *testEnv) reloadTask(t *testing.T, id uint) Models.TaskInstance {
	t.Helper()
	var task Models.TaskInstance
	require.NoError(t, e.db.First(&task, id).Error)
	return task
}

// futureDate and pastDate are civil dates safely on either side of "now".
func (e *testEnv) futureDate() string {
	return e.evaluator.Today(time.Now().Add(48 * time.Hour))
}

func (e *testEnv) pastDate() string {
	return e.evaluator.Today(time.Now().Add(-72 * time.Hour))
}
