package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/UmeshKumar0143/Utour-devbhoomi/internal/health"
)

type readinessReporter interface {
	Report() health.Report
}

// ReadinessHandler serves the dependency report: 200 when every dependency is
// healthy, 503 otherwise.
func ReadinessHandler(r readinessReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep := r.Report()
		code := http.StatusOK
		if !rep.Ready() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, rep)
	}
}
