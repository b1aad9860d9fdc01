package router

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"carhub/internal/auth"
	"carhub/internal/handler"
	"carhub/internal/metrics"
	"carhub/internal/service"
)

// IdentityKey is the echo context key holding the caller's auth.Identity.
const IdentityKey = "user"

// Deps collects everything the routes need.
type Deps struct {
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Auth     service.AuthService
	Catalog  service.CatalogService
}

// Register wires routes and middleware.
func Register(e *echo.Echo, d Deps) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	e.HideBanner = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(requestLogger(log)))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(d.Metrics.Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	authHandler := handler.NewAuthHandler(d.Auth)
	categoryHandler := handler.NewCategoryHandler(d.Catalog)
	carHandler := handler.NewCarHandler(d.Catalog)

	// Public routes
	e.POST("/auth/signup", authHandler.Signup)
	e.POST("/auth/login", authHandler.Login)

	// Secured routes (require a bearer token). The middleware is scoped to the
	// resource prefixes so unmatched paths elsewhere still answer 404 or 405.
	bearer := echojwt.WithConfig(echojwt.Config{
		ContextKey:  IdentityKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(_ echo.Context, token string) (interface{}, error) {
			return d.Auth.Authenticate(token)
		},
		ErrorHandler: func(_ echo.Context, err error) error {
			return handler.Unauthorized(err)
		},
	})

	categories := e.Group("/category", bearer)
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.ListCategories)
	categories.GET("/:id", categoryHandler.GetCategory)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	cars := e.Group("/car", bearer)
	cars.POST("", carHandler.CreateCar)
	cars.GET("", carHandler.ListCars)
	cars.GET("/count", carHandler.CountCars)
	cars.GET("/:id", carHandler.GetCar)
	cars.PUT("/:id", carHandler.UpdateCar)
	cars.DELETE("/:id", carHandler.DeleteCar)
}

func requestLogger(log *zap.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if id, ok := c.Get(IdentityKey).(auth.Identity); ok {
				fields = append(fields, zap.String("user_id", id.UserID.String()))
			}
			if v.Status >= http.StatusInternalServerError {
				log.Warn("request", fields...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports field errors under their JSON names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
