package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

const (
	LogRetentionDays = 7 // 日志保留天数，硬编码7天
)

var DefaultLogger *Logger

type LogCfg struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogDir   string `yaml:"log_dir" json:"log_dir"`
	LogFile  string `yaml:"log_file" json:"log_file"`
}

// CustomTextHandler 自定义文本处理器，支持彩色输出和格式化
type CustomTextHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

var (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m" // 时间：灰色
	colorDebug = "\x1b[36m" // DEBUG：青色
	colorInfo  = "\x1b[32m" // INFO：绿色
	colorWarn  = "\x1b[33m" // WARN：黄色
	colorError = "\x1b[31m" // ERROR：红色
)

// moduleColors 各管线阶段/模块标签对应的控制台颜色
var moduleColors = map[string]string{
	"[引导]":       "\x1b[96m", // 引导：亮青色
	"[传输]":       "\x1b[94m", // 传输：亮蓝色
	"[HTTP]":      "\x1b[95m", // HTTP：亮品红
	"[WebSocket]": "\x1b[92m", // WebSocket：亮绿色
	"[ASR]":       "\x1b[35m", // ASR：品红
	"[门控]":       "\x1b[34m", // 语音门控：蓝色
	"[声纹]":       "\x1b[36m", // 说话人分离：青蓝色
	"[置信]":       "\x1b[93m", // 置信度/阈值：亮黄色
	"[断句]":       "\x1b[95m", // 断句组装：亮品红
	"[事件]":       "\x1b[97m", // 事件总线：亮白色
	"[历史]":       "\x1b[90m", // 历史存储：灰色
	"[TIMING]":    "\x1b[92m", // 计时：亮绿色
}

func (h *CustomTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *CustomTextHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 获取时间戳
	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	// 获取日志级别中文描述
	var levelStr string
	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "调试", colorDebug
	case slog.LevelInfo:
		levelStr, levelColor = "信息", colorInfo
	case slog.LevelWarn:
		levelStr, levelColor = "警告", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "错误", colorError
	default:
		levelStr, levelColor = "信息", colorReset
	}

	// 检查是否带模块标签
	msg := r.Message
	var moduleColor string
	for tag, color := range moduleColors {
		if strings.HasPrefix(msg, tag) {
			moduleColor = color
			break
		}
	}

	// 构建输出
	var output string
	if moduleColor != "" {
		// 模块日志格式: [时间] [模块] 消息
		output = fmt.Sprintf("%s[%s]%s %s%s%s",
			colorTime, timeStr, colorReset,
			moduleColor, msg, colorReset)
	} else {
		// 普通日志格式: [时间] [级别] 消息
		output = fmt.Sprintf("%s[%s]%s %s[%s]%s %s",
			colorTime, timeStr, colorReset,
			levelColor, levelStr, colorReset,
			msg)
	}

	// 添加属性（如果有）
	if r.NumAttrs() > 0 {
		output += " {"
		r.Attrs(func(a slog.Attr) bool {
			output += fmt.Sprintf(" %s=%v", a.Key, a.Value)
			return true
		})
		output += " }"
	}
	output += "\n"

	_, err := h.writer.Write([]byte(output))
	return err
}

func (h *CustomTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h // 简化实现
}

func (h *CustomTextHandler) WithGroup(name string) slog.Handler {
	return h // 简化实现
}

// Logger 日志接口实现
type Logger struct {
	config      *LogCfg
	jsonLogger  *slog.Logger // 文件JSON输出
	textLogger  *slog.Logger // 控制台文本输出
	logFile     *os.File
	currentDate string        // 当前日期 YYYY-MM-DD
	mu          sync.RWMutex  // 读写锁保护
	ticker      *time.Ticker  // 定时器
	stopCh      chan struct{} // 停止信号
}

// configLogLevelToSlogLevel 将配置中的日志级别转换为slog.Level
func configLogLevelToSlogLevel(configLevel string) slog.Level {
	switch strings.ToLower(configLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger 创建新的日志记录器
func NewLogger(config *LogCfg) (*Logger, error) {
	// 确保日志目录存在
	if err := os.MkdirAll(config.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %v", err)
	}

	// 打开或创建日志文件
	logPath := filepath.Join(config.LogDir, config.LogFile)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %v", err)
	}

	slogLevel := configLogLevelToSlogLevel(config.LogLevel)

	// JSON处理器用于文件输出，文本处理器用于控制台输出
	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slogLevel,
	})
	customHandler := &CustomTextHandler{
		writer: os.Stdout,
		level:  slogLevel,
	}

	logger := &Logger{
		config:      config,
		jsonLogger:  slog.New(jsonHandler),
		textLogger:  slog.New(customHandler),
		logFile:     file,
		currentDate: time.Now().Format("2006-01-02"),
		stopCh:      make(chan struct{}),
	}

	// 启动日志轮转检查器
	logger.startRotationChecker()
	if DefaultLogger == nil {
		DefaultLogger = logger
	}

	return logger, nil
}

// startRotationChecker 启动定时检查器
func (l *Logger) startRotationChecker() {
	l.ticker = time.NewTicker(1 * time.Minute) // 每分钟检查一次
	go func() {
		for {
			select {
			case <-l.ticker.C:
				l.checkAndRotate()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// checkAndRotate 检查并执行轮转
func (l *Logger) checkAndRotate() {
	today := time.Now().Format("2006-01-02")
	if today != l.currentDate {
		l.rotateLogFile(today)
		l.cleanOldLogs()
	}
}

// rotateLogFile 执行日志轮转
func (l *Logger) rotateLogFile(newDate string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		l.logFile.Close()
	}

	logDir := l.config.LogDir
	currentLogPath := filepath.Join(logDir, l.config.LogFile)

	// 生成带日期的文件名
	baseFileName := strings.TrimSuffix(l.config.LogFile, filepath.Ext(l.config.LogFile))
	ext := filepath.Ext(l.config.LogFile)
	archivedLogPath := filepath.Join(logDir, fmt.Sprintf("%s-%s%s", baseFileName, l.currentDate, ext))

	// 重命名当前日志文件为带日期的文件
	if _, err := os.Stat(currentLogPath); err == nil {
		if err := os.Rename(currentLogPath, archivedLogPath); err != nil {
			l.textLogger.Error("重命名日志文件失败", slog.String("error", err.Error()))
		}
	}

	// 创建新的日志文件
	file, err := os.OpenFile(currentLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.textLogger.Error("创建新日志文件失败", slog.String("error", err.Error()))
		return
	}

	l.logFile = file
	l.currentDate = newDate

	// 重新创建JSON处理器
	slogLevel := configLogLevelToSlogLevel(l.config.LogLevel)
	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slogLevel,
	})
	l.jsonLogger = slog.New(jsonHandler)

	l.textLogger.Info("日志文件已轮转", slog.String("new_date", newDate))
}

// cleanOldLogs 清理旧日志文件
func (l *Logger) cleanOldLogs() {
	logDir := l.config.LogDir

	entries, err := os.ReadDir(logDir)
	if err != nil {
		l.textLogger.Error("读取日志目录失败", slog.String("error", err.Error()))
		return
	}

	// 计算保留截止日期
	cutoffDate := time.Now().AddDate(0, 0, -LogRetentionDays)
	baseFileName := strings.TrimSuffix(l.config.LogFile, filepath.Ext(l.config.LogFile))
	ext := filepath.Ext(l.config.LogFile)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fileName := entry.Name()
		// 检查是否是带日期的日志文件格式：server-YYYY-MM-DD.log
		if strings.HasPrefix(fileName, baseFileName+"-") && strings.HasSuffix(fileName, ext) {
			dateStr := strings.TrimPrefix(fileName, baseFileName+"-")
			dateStr = strings.TrimSuffix(dateStr, ext)

			fileDate, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				continue // 如果日期格式不正确，跳过
			}

			if fileDate.Before(cutoffDate) {
				filePath := filepath.Join(logDir, fileName)
				if err := os.Remove(filePath); err != nil {
					l.textLogger.Error("删除旧日志文件失败",
						slog.String("file", fileName),
						slog.String("error", err.Error()))
				} else {
					l.textLogger.Info("已删除旧日志文件", slog.String("file", fileName))
				}
			}
		}
	}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	if l.ticker != nil {
		l.ticker.Stop()
	}
	close(l.stopCh)
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// log 通用日志记录函数（内部使用）
func (l *Logger) log(level slog.Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// 构建slog属性
	var attrs []slog.Attr
	if len(fields) > 0 && fields[0] != nil {
		if fieldsMap, ok := fields[0].(map[string]interface{}); ok {
			// 提取并排序键，保证输出顺序稳定
			keys := make([]string, 0, len(fieldsMap))
			for k := range fieldsMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, fieldsMap[k]))
			}
		} else {
			attrs = append(attrs, slog.Any("fields", fields[0]))
		}
	}

	// 同时写入文件（JSON）和控制台（文本）
	ctx := context.Background()
	l.jsonLogger.LogAttrs(ctx, level, msg, attrs...)
	l.textLogger.LogAttrs(ctx, level, msg, attrs...)
}

func containsFormatPlaceholders(s string) bool {
	return strings.Contains(s, "%")
}

// FormatLog 构造带单一分类标签的日志消息。例如：FormatLog("引导", "服务已启动") -> "[引导] 服务已启动"
// 如果传入的 message 已经以 "[" 开头（表示可能已包含标签），则直接返回原文。
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" {
		return message
	}
	if strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

// Debug 记录调试级别日志
func (l *Logger) Debug(msg string, args ...interface{}) {
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(slog.LevelDebug, fmt.Sprintf(msg, args...))
	} else {
		l.log(slog.LevelDebug, msg, args...)
	}
}

// Info 记录信息级别日志
func (l *Logger) Info(msg string, args ...interface{}) {
	// 检测是否为格式化模式
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(slog.LevelInfo, fmt.Sprintf(msg, args...))
	} else {
		// 结构化模式
		l.log(slog.LevelInfo, msg, args...)
	}
}

// Warn 记录警告级别日志
func (l *Logger) Warn(msg string, args ...interface{}) {
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(slog.LevelWarn, fmt.Sprintf(msg, args...))
	} else {
		l.log(slog.LevelWarn, msg, args...)
	}
}

// Error 记录错误级别日志
func (l *Logger) Error(msg string, args ...interface{}) {
	if len(args) > 0 && containsFormatPlaceholders(msg) {
		l.log(slog.LevelError, fmt.Sprintf(msg, args...))
	} else {
		l.log(slog.LevelError, msg, args...)
	}
}

func (l *Logger) logWithTag(level slog.Level, tag, msg string, args ...interface{}) {
	switch level {
	case slog.LevelDebug:
		l.Debug(FormatLog(tag, msg), args...)
	case slog.LevelWarn:
		l.Warn(FormatLog(tag, msg), args...)
	case slog.LevelError:
		l.Error(FormatLog(tag, msg), args...)
	default:
		l.Info(FormatLog(tag, msg), args...)
	}
}

// DebugTag 记录带分类标签的调试日志
func (l *Logger) DebugTag(tag, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logWithTag(slog.LevelDebug, tag, msg, args...)
}

// InfoTag 记录带分类标签的信息日志
func (l *Logger) InfoTag(tag, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logWithTag(slog.LevelInfo, tag, msg, args...)
}

// WarnTag 记录带分类标签的警告日志
func (l *Logger) WarnTag(tag, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logWithTag(slog.LevelWarn, tag, msg, args...)
}

// ErrorTag 记录带分类标签的错误日志
func (l *Logger) ErrorTag(tag, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logWithTag(slog.LevelError, tag, msg, args...)
}

// InfoASR 记录ASR阶段信息日志
func (l *Logger) InfoASR(msg string, args ...interface{}) {
	l.Info("[ASR] "+msg, args...)
}

// InfoGate 记录语音门控阶段信息日志
func (l *Logger) InfoGate(msg string, args ...interface{}) {
	l.Info("[门控] "+msg, args...)
}

// InfoDiar 记录说话人分离阶段信息日志
func (l *Logger) InfoDiar(msg string, args ...interface{}) {
	l.Info("[声纹] "+msg, args...)
}

// InfoTiming 记录计时信息日志
func (l *Logger) InfoTiming(msg string, args ...interface{}) {
	l.Info("[TIMING] "+msg, args...)
}

// Slog exposes the underlying slog text logger for structured integrations.
func (l *Logger) Slog() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.textLogger
}
