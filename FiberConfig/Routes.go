package FiberConfig

import (
	"log"
	"os"
	"strings"

	"Rondin/Controllers"
	"Rondin/Deadlines"
	"Rondin/Models"
	"Rondin/Notifications"
	"Rondin/Reports"
	"Rondin/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize handlers
	evaluator := Deadlines.NewEvaluator(Deadlines.OffsetHoursFromEnv())
	dispatcher := Notifications.NewDispatcher(db)
	taskHandler := Controllers.NewTaskController(db, evaluator, dispatcher)

	app.Post("/api/Login", Controllers.Login)
	app.Post("/api/Logout", Controllers.Logout)
	app.Get("/api/User", middleware.Verify(1), Controllers.User)
	app.Post("/api/RegisterUser", middleware.Verify(4), Controllers.RegisterUser)

	api := app.Group("/api")

	// Push + inbox routes
	api.Post("/Subscribe", middleware.Verify(1), Notifications.Subscribe)
	api.Post("/SendPush", middleware.Verify(3), Notifications.SendPush)
	api.Get("/GetNotifications", middleware.Verify(1), Notifications.ReturnNotifications)
	api.Post("/notifications/:id/read", middleware.Verify(1), Notifications.MarkNotificationRead)

	// Task workflow routes
	tasks := api.Group("/tasks", middleware.Verify(1))

	// Place the batch route BEFORE the ID routes to avoid conflicts
	tasks.Post("/mark-missed", middleware.Verify(3), taskHandler.MarkMissedTasks)

	tasks.Get("/", taskHandler.GetTasks)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/complete", taskHandler.CompleteTask)
	tasks.Post("/:id/audit", middleware.Verify(2), taskHandler.AuditExecution)
	tasks.Post("/:id/cancel", middleware.Verify(3), taskHandler.CancelTask)

	// Reports
	api.Get("/reports/compliance", middleware.Verify(3), Reports.ComplianceReport)
}

func FiberConfig() {
	app := fiber.New()

	app.Use(middleware.Logger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestCompression,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           300,
	}))

	SetupRoutes(app, Models.DB)

	log.Println("Server Up...")
	if err := app.Listen(listenAddr()); err != nil {
		log.Fatal(err)
	}
}

// listenAddr resolves the listen address from PORT, tolerating a bare port number.
func listenAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		return ":3001"
	}
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}
