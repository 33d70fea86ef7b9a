package Notifications_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"Rondin/Models"
	"Rondin/Notifications"
	"Rondin/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, Models.User) {
	t.Helper()
	db := setupTestDB(t)
	Models.DB = db

	user := Models.User{
		Name:       "Field User",
		Email:      t.Name() + "@example.com",
		Password:   []byte("not-a-real-hash"),
		Permission: Models.PermissionFieldUser,
		CompanyID:  1,
	}
	require.NoError(t, db.Create(&user).Error)

	app := fiber.New()
	app.Post("/api/Subscribe", middleware.Verify(1), Notifications.Subscribe)
	app.Post("/api/SendPush", middleware.Verify(1), Notifications.SendPush)
	app.Get("/api/GetNotifications", middleware.Verify(1), Notifications.ReturnNotifications)
	app.Post("/api/notifications/:id/read", middleware.Verify(1), Notifications.MarkNotificationRead)
	return app, user
}

func doRequest(t *testing.T, app *fiber.App, method, url string, body interface{}, user Models.User) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")

	claims := jwt.RegisteredClaims{
		Issuer:    strconv.Itoa(int(user.ID)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.SecretKey())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestSubscribeUpsertsByEndpoint(t *testing.T) {
	app, user := setupTestApp(t)

	status, _ := doRequest(t, app, "POST", "/api/Subscribe", map[string]string{
		"endpoint": "https://push.example.com/reg-1",
		"p256dh":   "key-one",
		"auth":     "auth-one",
	}, user)
	require.Equal(t, fiber.StatusOK, status)

	// Same endpoint with rotated keys updates in place
	status, _ = doRequest(t, app, "POST", "/api/Subscribe", map[string]string{
		"endpoint": "https://push.example.com/reg-1",
		"p256dh":   "key-two",
		"auth":     "auth-two",
	}, user)
	require.Equal(t, fiber.StatusOK, status)

	var subs []Models.PushSubscription
	require.NoError(t, Models.DB.Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, "key-two", subs[0].P256dh)
	assert.Equal(t, user.ID, subs[0].UserID)
}

func TestSubscribeTransfersEndpointOwnership(t *testing.T) {
	app, user := setupTestApp(t)

	status, _ := doRequest(t, app, "POST", "/api/Subscribe", map[string]string{
		"endpoint": "https://push.example.com/shared-device",
		"p256dh":   "key-one",
		"auth":     "auth-one",
	}, user)
	require.Equal(t, fiber.StatusOK, status)

	// A second account on the same device re-registers the endpoint
	other := Models.User{
		Name:       "Other User",
		Email:      t.Name() + "-other@example.com",
		Password:   []byte("not-a-real-hash"),
		Permission: Models.PermissionFieldUser,
		CompanyID:  1,
	}
	require.NoError(t, Models.DB.Create(&other).Error)

	status, _ = doRequest(t, app, "POST", "/api/Subscribe", map[string]string{
		"endpoint": "https://push.example.com/shared-device",
		"p256dh":   "key-two",
		"auth":     "auth-two",
	}, other)
	require.Equal(t, fiber.StatusOK, status)

	var subs []Models.PushSubscription
	require.NoError(t, Models.DB.Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, other.ID, subs[0].UserID)
	assert.Equal(t, "key-two", subs[0].P256dh)
}

func TestSubscribeValidatesInput(t *testing.T) {
	app, user := setupTestApp(t)

	status, _ := doRequest(t, app, "POST", "/api/Subscribe", map[string]string{
		"endpoint": "not-a-url",
	}, user)
	require.Equal(t, fiber.StatusBadRequest, status)
}

func TestSendPushWithoutEndpointsSucceeds(t *testing.T) {
	app, user := setupTestApp(t)

	status, data := doRequest(t, app, "POST", "/api/SendPush", map[string]interface{}{
		"userId": 12345,
		"title":  "Hello",
		"body":   "World",
	}, user)
	require.Equal(t, fiber.StatusOK, status)

	var out struct {
		Success bool                           `json:"success"`
		Results []Notifications.DeliveryResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Success)
	assert.Empty(t, out.Results)
}

func TestReturnNotificationsNewestFirst(t *testing.T) {
	app, user := setupTestApp(t)

	for i, title := range []string{"first", "second"} {
		n := Models.Notification{UserID: user.ID, Type: "task_audit", Title: title, EntityID: uint(i + 1)}
		require.NoError(t, Models.DB.Create(&n).Error)
		require.NoError(t, Models.DB.Model(&n).
			Update("created_at", time.Now().Add(time.Duration(i)*time.Minute)).Error)
	}
	// Another user's rows stay invisible
	require.NoError(t, Models.DB.Create(&Models.Notification{UserID: user.ID + 1, Title: "other"}).Error)

	status, data := doRequest(t, app, "GET", "/api/GetNotifications", nil, user)
	require.Equal(t, fiber.StatusOK, status)

	var out []Models.Notification
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[0].Title)
}

func TestMarkNotificationRead(t *testing.T) {
	app, user := setupTestApp(t)

	n := Models.Notification{UserID: user.ID, Type: "task_audit", Title: "to read"}
	require.NoError(t, Models.DB.Create(&n).Error)

	status, _ := doRequest(t, app, "POST", "/api/notifications/"+strconv.Itoa(int(n.ID))+"/read", nil, user)
	require.Equal(t, fiber.StatusOK, status)

	var saved Models.Notification
	require.NoError(t, Models.DB.First(&saved, n.ID).Error)
	assert.True(t, saved.Read)

	// Someone else's notification reads as not found
	other := Models.Notification{UserID: user.ID + 1, Title: "theirs"}
	require.NoError(t, Models.DB.Create(&other).Error)
	status, _ = doRequest(t, app, "POST", "/api/notifications/"+strconv.Itoa(int(other.ID))+"/read", nil, user)
	require.Equal(t, fiber.StatusNotFound, status)
}
