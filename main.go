package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerniceZTT/posalpro_end/config"
	"github.com/BerniceZTT/posalpro_end/controllers"
	"github.com/BerniceZTT/posalpro_end/middleware"
	"github.com/BerniceZTT/posalpro_end/repository"
	"github.com/BerniceZTT/posalpro_end/routes"
	"github.com/BerniceZTT/posalpro_end/service"
	"github.com/BerniceZTT/posalpro_end/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// 初始化日志
	utils.InitLogger()

	// 加载配置
	cfg := config.LoadConfig()
	utils.SetJWTSecret(cfg.JWTKey)

	// 设置Gin模式
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 加载实体字段白名单
	fieldTable, err := config.LoadEntityFieldTable(cfg.EntityFieldsFile)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("加载实体字段配置失败")
	}
	utils.LogInfo(map[string]interface{}{
		"entities": fieldTable.EntityTypes(),
		"strict":   cfg.StrictEntityProjection,
		"file":     cfg.EntityFieldsFile,
	}, "实体字段配置已加载")

	// 初始化数据库
	if err := repository.InitMongoDB(cfg.MongoURI, cfg.MongoDB); err != nil {
		utils.Logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer repository.CloseMongoDB()

	// 初始化系统数据
	utils.Logger.Info().Msg("开始系统初始化...")
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.InitializeCollections(initCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("初始化数据库集合失败")
	}
	if err := repository.InitializeAdminAccount(initCtx); err != nil {
		utils.Logger.Error().Err(err).Msg("初始化管理员账户失败")
	}
	initCancel()
	utils.Logger.Info().Msg("系统初始化完成")

	// 看板数据源
	source, pg, err := newAggregateSource(cfg)
	if err != nil {
		utils.Logger.Fatal().Err(err).Msg("初始化看板数据源失败")
	}
	if pg != nil {
		defer pg.Close()
	}

	deriver := service.NewMetricsDeriver()
	dashboardService := service.NewDashboardService(source, repository.NewMongoSnapshotStore(repository.Database()), deriver)
	projector := service.NewSelectiveHydrationProjector(fieldTable, service.WithStrictEntities(cfg.StrictEntityProjection))

	// 看板快照定时任务
	var scheduler *service.SnapshotScheduler
	if cfg.SnapshotCron != "" {
		scheduler, err = service.NewSnapshotScheduler(dashboardService, cfg.SnapshotCron)
		if err != nil {
			utils.Logger.Fatal().Err(err).Msg("创建看板快照定时任务失败")
		}
		scheduler.Start()
	}

	// 创建Gin实例
	router := gin.New()

	// 应用中间件
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.ErrorHandler())

	// 注册路由
	routes.RegisterRoutes(router, routes.Handlers{
		Health:    controllers.NewHealthController(projector, repository.Ping, cfg.AppVersion, cfg.Environment),
		Dashboard: controllers.NewDashboardController(dashboardService, deriver),
		Entities:  controllers.NewEntityController(projector, repository.NewMongoEntityStore(repository.Database())),
	})

	// 设置HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info().Msgf("服务器启动，监听端口: %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal().Err(err).Msg("启动服务器失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("服务器关闭异常")
	}

	utils.Logger.Info().Msg("服务器已优雅关闭")
}

// newAggregateSource 按配置选择看板数据源，使用 PostgreSQL 时返回需要关闭的连接
func newAggregateSource(cfg *config.Config) (service.AggregateSource, *sql.DB, error) {
	switch cfg.DashboardSource {
	case config.DashboardSourceMongo:
		return repository.NewMongoAggregateSource(repository.Database(), cfg.MonthlyRevenueTarget), nil, nil
	case config.DashboardSourcePostgres:
		db, err := repository.OpenPostgres(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresAggregateSource(db, cfg.MonthlyRevenueTarget), db, nil
	}
	return nil, nil, fmt.Errorf("未知的看板数据源: %s", cfg.DashboardSource)
}
