package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"zhibo-copilot-go/src/configs"
	"zhibo-copilot-go/src/core/confidence"
	"zhibo-copilot-go/src/core/eventbus"
	"zhibo-copilot-go/src/core/history"
	"zhibo-copilot-go/src/core/pipeline"
	"zhibo-copilot-go/src/core/pool"
	"zhibo-copilot-go/src/core/providers/asr"
	"zhibo-copilot-go/src/core/transport/websocket"
	"zhibo-copilot-go/src/core/utils"
	"zhibo-copilot-go/src/httpsvr/webapi"

	_ "zhibo-copilot-go/src/core/providers/asr/openai"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 copilot-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "copilot-server failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", ".config.yaml", "配置文件路径")
	flag.Parse()

	config, err := configs.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %v", err)
	}

	logger, err := utils.NewLogger(&config.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %v", err)
	}
	utils.DefaultLogger = logger
	defer logger.Close()

	logger.InfoTag("引导", fmt.Sprintf("配置加载完成: %s", *configPath))

	// 历史存储，驱动由配置决定（memory/redis）
	store, err := history.New(config.History)
	if err != nil {
		return fmt.Errorf("初始化历史存储失败: %v", err)
	}
	defer store.Close(context.Background())

	// ASR资源池，按需预热连接
	asrName, asrData := config.SelectedASR()
	asrPool, err := pool.NewASRPool(asrName, func() (asr.Provider, error) {
		return asr.Create(asrName, &asr.Config{
			Name: asrName,
			Type: asrName,
			Data: asrData,
		}, logger)
	}, config.Pool, logger)
	if err != nil {
		return fmt.Errorf("初始化ASR资源池失败: %v", err)
	}
	defer asrPool.Close()

	vocab := confidence.NewVocabulary(
		config.Vocabulary.Emotional,
		config.Vocabulary.Product,
		config.Vocabulary.Slang,
	)

	manager := pipeline.NewManager()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	// WebSocket音频入口
	wsTransport := websocket.NewWebSocketTransport(config, logger)
	wsTransport.SetSessionFactory(func(sessionID string) (*pipeline.Session, error) {
		session := pipeline.NewSession(sessionID, config.Pipeline, vocab, asrPool, store, logger)
		session.SetCloseHandler(manager.Unregister)
		manager.Register(session)
		return session, nil
	})
	group.Go(func() error {
		return wsTransport.Start(groupCtx)
	})

	// 管理端HTTP服务
	if config.Web.Enabled {
		if config.Web.AuthKey == "" {
			// 未配置密钥时生成临时密钥，重启后旧token全部失效
			config.Web.AuthKey = uuid.New().String()
			logger.WarnTag("HTTP", "未配置web.auth_key，已生成临时JWT密钥")
		}
		admin, err := webapi.NewAdminService(config, manager, store, asrPool, logger)
		if err != nil {
			cancel()
			return fmt.Errorf("初始化管理端服务失败: %v", err)
		}
		router, err := webapi.Build(webapi.Options{
			Config:         config,
			Logger:         logger,
			AuthMiddleware: webapi.AuthMiddleware(config.Web.AuthKey),
		})
		if err != nil {
			cancel()
			return fmt.Errorf("构建HTTP路由失败: %v", err)
		}
		if err := admin.Start(groupCtx, router); err != nil {
			cancel()
			return fmt.Errorf("注册HTTP路由失败: %v", err)
		}
		group.Go(func() error {
			return admin.Run(groupCtx, router.Engine)
		})
	}

	logger.InfoTag("引导", "服务启动完成，等待连接")
	eventbus.PublishAsync(eventbus.EventSystemInfo, eventbus.SystemEventData{
		Level:   "info",
		Message: "服务启动完成",
	})

	<-signalCtx.Done()
	logger.InfoTag("引导", "收到退出信号，开始优雅关停")
	cancel()

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.ErrorTag("引导", fmt.Sprintf("服务退出异常: %v", err))
		return err
	}

	eventbus.Shutdown()
	logger.InfoTag("引导", "服务已关停")
	return nil
}
