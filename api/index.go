package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dmarsh/guardops-api-go/pkg/auth"
	"github.com/dmarsh/guardops-api-go/pkg/database"
	"github.com/dmarsh/guardops-api-go/pkg/handlers"
	"github.com/dmarsh/guardops-api-go/pkg/logging"
)

var r *gin.Engine

func init() {
	// Load .env if it exists (for local testing with vercel dev)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	log := logging.New()

	db := database.InitDB()
	_ = auth.EnsureAdminExists(db, log)
	h := handlers.NewHandler(db, log)

	gin.SetMode(gin.ReleaseMode)
	r = gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	handlers.RegisterRoutes(r, h)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, r_req *http.Request) {
	r.ServeHTTP(w, r_req)
}
