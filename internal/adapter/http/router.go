package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ondegooltd/fortisel-api/internal/adapter/http/middleware"
	"github.com/ondegooltd/fortisel-api/internal/logging"
	"github.com/ondegooltd/fortisel-api/internal/recovery"
)

type Handlers struct {
	Orders   *OrderHandler
	Payments *PaymentHandler
	Users    *UserHandler
	Webhooks *WebhookHandler
	Token    *TokenHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, healthChecks []recovery.HealthCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		st := recovery.CheckHealth(c.Request.Context(), 2*time.Second, healthChecks)
		checks := make(map[string]string, len(st.Checks))
		for name, err := range st.Checks {
			if err != nil {
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}
		code := http.StatusOK
		if !st.Healthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"ok": st.Healthy, "checks": checks})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", h.Token.IssueToken)

	// Gateway callback authenticates itself via HMAC, not JWT.
	r.POST("/webhooks/paystack", h.Webhooks.HandlePaystack)

	v1 := r.Group("/v1")
	{
		v1.POST("/users", h.Users.Register)

		v1.POST("/orders", authz.Require("orders.write"), h.Orders.CreateOrder)
		v1.GET("/orders/:id", authz.Require("orders.read"), h.Orders.GetOrderByID)
		v1.POST("/orders/:id/cancel", authz.Require("orders.write"), h.Orders.CancelOrder)

		v1.POST("/payments", authz.Require("payments.write"), h.Payments.CreatePayment)
		v1.POST("/payments/:id/initialize", authz.Require("payments.write"), h.Payments.InitializePayment)
		v1.GET("/payments/verify/:reference", authz.Require("payments.read"), h.Payments.VerifyPayment)
	}

	return r
}
