package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dmarsh/guardops-api-go/pkg/auth"
	"github.com/dmarsh/guardops-api-go/pkg/database"
	"github.com/dmarsh/guardops-api-go/pkg/handlers"
	"github.com/dmarsh/guardops-api-go/pkg/logging"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logging.New()
	defer log.Sync()

	db := database.InitDB()
	if err := auth.EnsureAdminExists(db, log); err != nil {
		log.Fatal("could not ensure admin user", zap.Error(err))
	}
	h := handlers.NewHandler(db, log)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	handlers.RegisterRoutes(r, h)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	log.Info("server starting", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		log.Fatal("could not run server", zap.Error(err))
	}
}
