package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"UnoArena/config"
	"UnoArena/internal/auth"
	"UnoArena/internal/game/engine"
	"UnoArena/internal/game/manager"
	"UnoArena/internal/lobby"
	"UnoArena/internal/middleware"
	"UnoArena/internal/storage"
	"UnoArena/internal/utils"
	"UnoArena/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		utils.Log.Fatal("config load failed", "err", err)
	}
	utils.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//-------------------------------------------------------
	// 1. 存储：Redis / Postgres 可选，未配置时退回内存
	//-------------------------------------------------------
	lobbyRepo := lobby.NewMemoryRepo()
	nonces := auth.NewMemoryNonceStore()
	if cfg.Redis.Enabled {
		rdb, err := storage.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			utils.Log.Fatal("redis init failed", "addr", cfg.Redis.Addr, "err", err)
		}
		defer rdb.Close()
		lobbyRepo = lobby.NewRedisRepo(rdb)
		nonces = auth.NewRedisNonceStore(rdb)
		utils.Log.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	users := auth.NewMemoryUserStore()
	if cfg.Database.DSN != "" {
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			utils.Log.Fatal("postgres init failed", "err", err)
		}
		defer db.Close()
		if users, err = auth.NewPostgresUserStore(ctx, db); err != nil {
			utils.Log.Fatal("users table init failed", "err", err)
		}
		utils.Log.Info("postgres connected")
	}

	//-------------------------------------------------------
	// 2. Hub（必须最先启动）
	//-------------------------------------------------------
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Close()

	//-------------------------------------------------------
	// 3. 大厅目录 + 对局注册表
	//-------------------------------------------------------
	directory := lobby.NewService(lobbyRepo, cfg.Lobby.TTL)
	gameMgr := manager.NewGameManager(hub, directory, engine.Options{
		HandSize:      cfg.Game.HandSize,
		MaxPlayers:    cfg.Game.MaxPlayers,
		NumericOpener: cfg.Game.NumericOpeningCard,
	})
	defer gameMgr.Shutdown()
	directory.OnCreate = gameMgr.OpenMatch

	for _, name := range cfg.Game.Matches {
		gameMgr.CreateMatch(name)
	}

	//-------------------------------------------------------
	// 4. Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL)

	authGroup := r.Group("/auth")
	{
		ah := auth.NewHandler(issuer, users, nonces)
		authGroup.POST("/guest", ah.Guest)
		authGroup.GET("/nonce", ah.GetNonce)
		authGroup.POST("/nonce", ah.PostNonce)
		authGroup.POST("/login", ah.Login)
	}

	lh := lobby.NewHandler(directory)
	matches := r.Group("/matches", middleware.JwtAuthMiddleware(issuer))
	{
		matches.GET("", lh.List)
		matches.POST("", lh.Create)
	}

	//-------------------------------------------------------
	// 5. WebSocket 入口：token 在 AUTH 消息里校验
	//-------------------------------------------------------
	r.GET("/ws", websocket.ServeWS(hub, gameMgr, issuer))

	//-------------------------------------------------------
	// 6. 启动服务器
	//-------------------------------------------------------
	srv := &http.Server{Addr: cfg.Server.Port, Handler: r}
	go func() {
		utils.Log.Info("server running", "addr", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Log.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	utils.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Log.Error("server shutdown", "err", err)
	}
}
