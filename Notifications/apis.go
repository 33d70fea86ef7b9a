package Notifications

import (
	"errors"
	"strconv"

	"Rondin/Models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh" validate:"required"`
	Auth     string `json:"auth" validate:"required"`
}

// Subscribe registers or refreshes a push endpoint for the caller.
func Subscribe(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	var req SubscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// The endpoint is the identity; keys and owner are refreshed in place so a
	// browser rotating its keys never trips the unique index.
	var sub Models.PushSubscription
	err := Models.DB.Where("endpoint = ?", req.Endpoint).First(&sub).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save subscription"})
	}

	sub.Endpoint = req.Endpoint
	sub.UserID = user.ID
	sub.P256dh = req.P256dh
	sub.Auth = req.Auth
	if err := Models.DB.Save(&sub).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save subscription"})
	}

	return c.JSON(fiber.Map{"message": "Subscription saved"})
}

type SendPushRequest struct {
	UserID uint   `json:"userId" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Body   string `json:"body" validate:"required"`
	URL    string `json:"url"`
}

// SendPush is the collaborator boundary for the dispatcher.
func SendPush(c *fiber.Ctx) error {
	var req SendPushRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	results, err := NewDispatcher(Models.DB).Dispatch(req.UserID, req.Title, req.Body, req.URL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load push subscriptions"})
	}

	return c.JSON(fiber.Map{"success": true, "results": results})
}

// ReturnNotifications lists the caller's inbox, newest first.
func ReturnNotifications(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	var notifications []Models.Notification
	if err := Models.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(100).
		Find(&notifications).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load notifications"})
	}

	return c.JSON(notifications)
}

// MarkNotificationRead flags one of the caller's inbox rows as read.
func MarkNotificationRead(c *fiber.Ctx) error {
	user, ok := c.Locals("user").(Models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not Logged In."})
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification ID"})
	}

	res := Models.DB.Model(&Models.Notification{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Update("read", true)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notification"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	}

	return c.JSON(fiber.Map{"success": true})
}
