package main

import (
	"log"

	"Rondin/CronJobs"
	"Rondin/Deadlines"
	"Rondin/FiberConfig"
	"Rondin/Models"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using process environment")
	}

	Models.Connect()

	sweeper := CronJobs.NewMissedTaskSweeper(
		Models.DB,
		Deadlines.NewEvaluator(Deadlines.OffsetHoursFromEnv()),
		false,
	)
	if err := sweeper.Start(); err != nil {
		log.Printf("Failed to start missed-task sweeper: %v", err)
	}

	FiberConfig.FiberConfig()
}
