package configs

import (
	"zhibo-copilot-go/src/core/history"
	"zhibo-copilot-go/src/core/pipeline"
	"zhibo-copilot-go/src/core/pool"
	"zhibo-copilot-go/src/core/utils"
)

// DefaultConfig 返回内置默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Name: "zhibo-copilot"},
		Log: utils.LogCfg{
			LogLevel: "info",
			LogDir:   "logs",
			LogFile:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			IP:        "0.0.0.0",
			Port:      8081,
			TokenHour: 24,
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				IP:          "0.0.0.0",
				Port:        8000,
				AudioFormat: "pcm16",
			},
		},
		Pipeline: pipeline.DefaultConfig(),
		Vocabulary: VocabularyConfig{
			Emotional: []string{"喜欢", "美丽", "开心", "太棒了", "爱了"},
			Product:   []string{"口红", "面膜", "粉底液", "眼影", "香水"},
			Slang:     []string{"真的", "宝宝", "家人们", "上链接", "秒杀"},
		},
		History: history.Config{
			Driver:     history.DriverMemory,
			MaxEntries: 500,
		},
		Pool: pool.DefaultConfig(),
		ASR: map[string]map[string]interface{}{
			"openai": {
				"model":    "whisper-1",
				"language": "zh",
			},
		},
		SelectedModule: map[string]string{"ASR": "openai"},
	}
}
