package middleware

import (
	"github.com/iou-concept/kompas/pkg/graph"
	"github.com/iou-concept/kompas/pkg/store"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

type AppUser struct {
	UserID string
	Role   string
}

// App bundles the shared service dependencies handed to every request.
type App struct {
	DBConn     *pgxpool.Pool
	Queue      *amqp091.Channel
	Key        *keyfunc.Keyfunc
	S3         *s3.Client
	Store      store.GraphStore
	Pipeline   *graph.Pipeline
	Discoverer *graph.Discoverer

	MasterAPIKey   string
	MasterUserID   string
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
