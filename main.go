package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"flaremail/config"
	"flaremail/gateway"
	"flaremail/handlers/api"
	"flaremail/handlers/web"
	"flaremail/middleware"
	"flaremail/push"
	"flaremail/storage"
	"flaremail/store"
	"flaremail/utils"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	if err := godotenv.Load(); err != nil {
		utils.Log.Debug("No .env file loaded: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		return
	}

	// Initialize i18n system
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Durable session snapshots
	db, err := storage.InitDB(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open snapshot database: %v", err)
		return
	}
	defer db.Close()
	snapshots := storage.NewSessionStorage(db, cfg.Auth.SnapshotKey)

	// External services
	identity := gateway.NewIdentityClient(cfg.Identity.BaseURL, cfg.Identity.APIKey)
	mailbox := gateway.NewMailboxClient(cfg.Database.BaseURL)

	// State registry and the change-event hub
	hub := push.NewHub()
	manager := store.NewManager(identity, mailbox, snapshots)
	manager.SetOnMailChange(func(email, view string) {
		payload, err := json.Marshal(fiber.Map{"view": view})
		if err != nil {
			return
		}
		hub.Broadcast(email, payload)
	})

	sessions := session.New(session.Config{
		Expiration:     24 * time.Hour,
		CookieSecure:   false, // Set to true in production with HTTPS
		CookieHTTPOnly: true,
	})

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")

	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("upper", strings.ToUpper)
	engine.AddFunc("trim", strings.TrimSpace)

	engine.AddFunc("t", func(messageID string) string {
		return utils.T(utils.Localizer, messageID)
	})
	engine.AddFunc("tWithData", func(messageID string, data map[string]interface{}) string {
		return utils.TWithData(utils.Localizer, messageID, data)
	})

	// Mail timestamps are epoch milliseconds on the wire.
	engine.AddFunc("formatDate", func(ms int64) string {
		return time.UnixMilli(ms).Format("Jan 02, 2006 15:04")
	})
	engine.AddFunc("preview", func(body string) string {
		return utils.PreviewText(body, 120)
	})
	// Mail bodies are sanitized before they are stored, so rendering them
	// unescaped here is safe.
	engine.AddFunc("safeHTML", func(s string) template.HTML {
		return template.HTML(s)
	})

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				utils.Log.Error("Application error: %v", appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			if api.IsAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline';",
	}))

	app.Use(middleware.LocaleMiddleware())

	// Rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	app.Use(middleware.CSRFProtection())

	// Serve static files
	app.Static("/assets", "./assets", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Initialize handlers
	webAuthHandler := web.NewAuthHandler(sessions, cfg, manager)
	webMailHandler := web.NewMailHandler(cfg.Poll.Interval())
	wsHandler := web.NewWSHandler(hub, cfg.Poll.Interval())
	apiMailHandler := api.NewMailHandler()

	// Public routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/login")
	})
	app.Get("/login", webAuthHandler.ShowLogin)
	app.Post("/login", webAuthHandler.HandleLogin)
	app.Post("/signup", webAuthHandler.HandleSignup)
	app.Get("/logout", webAuthHandler.HandleLogout)

	// Protected routes group
	protected := app.Group("", api.SessionMiddleware(sessions, manager, cfg.Auth.JWTSecret))

	// Main web routes
	protected.Get("/home", webMailHandler.HandleHome)
	protected.Get("/inbox", webMailHandler.HandleInbox)
	protected.Get("/sent", webMailHandler.HandleSent)
	protected.Get("/compose", webMailHandler.ShowCompose)
	protected.Post("/compose", webMailHandler.HandleCompose)

	// API routes
	apiRoutes := protected.Group("/api")
	{
		apiRoutes.Get("/inbox", apiMailHandler.GetInbox)
		apiRoutes.Get("/sent", apiMailHandler.GetSent)
		apiRoutes.Post("/compose", apiMailHandler.Compose)
		apiRoutes.Post("/mail/:id/read", apiMailHandler.MarkRead)
		apiRoutes.Delete("/inbox/:id", apiMailHandler.DeleteInbox)
		apiRoutes.Delete("/sent/:id", apiMailHandler.DeleteSent)
	}

	// HTMX routes (partial template renders)
	htmx := protected.Group("/htmx")
	{
		htmx.Get("/mailbox/:view", webMailHandler.MailList)
		htmx.Get("/mailbox/:view/:id", webMailHandler.ViewMail)
		htmx.Post("/mailbox/:view/close", webMailHandler.CloseMail)
		htmx.Delete("/mailbox/:view/:id", webMailHandler.DeleteMail)
	}

	// Websocket endpoint for mailbox change events
	protected.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	protected.Get("/ws/mailbox", websocket.New(wsHandler.HandleMailbox))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Undefined routes land on the login page, API callers get a 404.
	app.Use(func(c *fiber.Ctx) error {
		if api.IsAPIRequest(c) {
			localizer, _ := c.Locals("localizer").(*i18n.Localizer)
			if localizer == nil {
				localizer = utils.Localizer
			}
			return c.Status(404).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Redirect("/login")
	})

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
