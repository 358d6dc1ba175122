package configs

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"zhibo-copilot-go/src/core/history"
	"zhibo-copilot-go/src/core/pipeline"
	"zhibo-copilot-go/src/core/pool"
	"zhibo-copilot-go/src/core/utils"
)

// Config 服务总配置
type Config struct {
	Server     ServerConfig                      `yaml:"server"     json:"server"`
	Log        utils.LogCfg                      `yaml:"log"        json:"log"`
	Web        WebConfig                         `yaml:"web"        json:"web"`
	Transport  TransportConfig                   `yaml:"transport"  json:"transport"`
	Pipeline   pipeline.Config                   `yaml:"pipeline"   json:"pipeline"`
	Vocabulary VocabularyConfig                  `yaml:"vocabulary" json:"vocabulary"`
	History    history.Config                    `yaml:"history"    json:"history"`
	Pool       pool.Config                       `yaml:"pool"       json:"pool"`
	ASR        map[string]map[string]interface{} `yaml:"ASR"        json:"ASR"`

	SelectedModule map[string]string `yaml:"selected_module" json:"selected_module"`
}

// ServerConfig 服务基础信息
type ServerConfig struct {
	Name string `yaml:"name" json:"name"`
}

// WebConfig 管理API服务配置
type WebConfig struct {
	Enabled   bool   `yaml:"enabled"    json:"enabled"`
	IP        string `yaml:"ip"         json:"ip"`
	Port      int    `yaml:"port"       json:"port"`
	AuthKey   string `yaml:"auth_key"   json:"auth_key"`   // JWT签名密钥
	TokenHour int    `yaml:"token_hour" json:"token_hour"` // token有效期（小时）
}

// TransportConfig 音频接入传输配置
type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket" json:"websocket"`
}

// WebSocketConfig websocket接入点配置
type WebSocketConfig struct {
	IP          string `yaml:"ip"           json:"ip"`
	Port        int    `yaml:"port"         json:"port"`
	AudioFormat string `yaml:"audio_format" json:"audio_format"` // pcm16 / opus
}

// VocabularyConfig 领域词表配置
type VocabularyConfig struct {
	Emotional []string `yaml:"emotional" json:"emotional"`
	Product   []string `yaml:"product"   json:"product"`
	Slang     []string `yaml:"slang"     json:"slang"`
}

// LoadConfig 读取配置文件并合并环境变量。
// 文件不存在时使用默认配置，密钥类字段优先取环境变量。
func LoadConfig(path string) (*Config, error) {
	// .env不存在不算错误
	_ = godotenv.Load()

	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv 环境变量覆盖敏感配置
func (c *Config) applyEnv() {
	if key := os.Getenv("ASR_API_KEY"); key != "" {
		name := c.SelectedModule["ASR"]
		if c.ASR[name] == nil {
			c.ASR[name] = map[string]interface{}{}
		}
		c.ASR[name]["api_key"] = key
	}
	if base := os.Getenv("ASR_BASE_URL"); base != "" {
		name := c.SelectedModule["ASR"]
		if c.ASR[name] != nil {
			c.ASR[name]["base_url"] = base
		}
	}
	if secret := os.Getenv("WEB_AUTH_KEY"); secret != "" {
		c.Web.AuthKey = secret
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		if c.History.Redis == nil {
			c.History.Redis = &history.RedisConfig{}
		}
		c.History.Redis.Addr = addr
	}
}

// Validate 启动期校验，配置错误直接拒绝启动
func (c *Config) Validate() error {
	if c.Transport.WebSocket.Port <= 0 || c.Transport.WebSocket.Port > 65535 {
		return fmt.Errorf("websocket端口%d非法", c.Transport.WebSocket.Port)
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return fmt.Errorf("web端口%d非法", c.Web.Port)
	}
	if c.Web.Enabled && c.Web.Port == c.Transport.WebSocket.Port {
		return fmt.Errorf("web端口与websocket端口冲突: %d", c.Web.Port)
	}

	switch c.Transport.WebSocket.AudioFormat {
	case "pcm16", "opus":
	default:
		return fmt.Errorf("不支持的音频格式: %s", c.Transport.WebSocket.AudioFormat)
	}

	asrName := c.SelectedModule["ASR"]
	if asrName == "" {
		return fmt.Errorf("未选择ASR模块")
	}
	if _, ok := c.ASR[asrName]; !ok {
		return fmt.Errorf("选择的ASR模块 %s 没有对应配置", asrName)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("流水线配置非法: %w", err)
	}
	return nil
}

// SelectedASR 返回当前选择的ASR提供者名称和配置
func (c *Config) SelectedASR() (string, map[string]interface{}) {
	name := c.SelectedModule["ASR"]
	return name, c.ASR[name]
}
