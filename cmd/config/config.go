package config

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

var (
	APIBase     string
	BotToken    string
	AdminChatID string
	DataDir     string
	LogLevel    string
	StubAddress string
)

func ParseFlags() {
	godotenv.Load()

	flag.StringVar(&APIBase, "a", "http://localhost:8000", "void shop backend base url")
	flag.StringVar(&BotToken, "t", "", "telegram bot token")
	flag.StringVar(&AdminChatID, "c", "", "admin chat id for operator notifications")
	flag.StringVar(&DataDir, "d", defaultDataDir(), "directory for cache and preferences")
	flag.StringVar(&LogLevel, "l", "info", "log level")
	flag.StringVar(&StubAddress, "s", ":8000", "address for the stub backend")
	flag.Parse()

	if envAPIBase := os.Getenv("VOIDSHOP_API_BASE"); envAPIBase != "" {
		APIBase = envAPIBase
	}
	if envBotToken := os.Getenv("VOIDSHOP_BOT_TOKEN"); envBotToken != "" {
		BotToken = envBotToken
	}
	if envAdminChat := os.Getenv("VOIDSHOP_ADMIN_CHAT_ID"); envAdminChat != "" {
		AdminChatID = envAdminChat
	}
	if envDataDir := os.Getenv("VOIDSHOP_DATA_DIR"); envDataDir != "" {
		DataDir = envDataDir
	}
	if envLogLevel := os.Getenv("VOIDSHOP_LOG_LEVEL"); envLogLevel != "" {
		LogLevel = envLogLevel
	}
	if envStubAddr := os.Getenv("VOIDSHOP_STUB_ADDRESS"); envStubAddr != "" {
		StubAddress = envStubAddr
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voidshop"
	}
	return filepath.Join(home, ".voidshop")
}
