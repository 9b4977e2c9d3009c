package config

import (
	"os"
	"strconv"
	"strings"
)

// 看板数据源
const (
	DashboardSourceMongo    = "mongo"
	DashboardSourcePostgres = "postgres"
)

// Config 应用配置
type Config struct {
	Port     int
	MongoURI string
	MongoDB  string
	JWTKey   string
	Debug    bool

	DashboardSource      string  // mongo | postgres
	PostgresDSN          string  // DashboardSource 为 postgres 时使用
	SnapshotCron         string  // 看板快照的 cron 表达式，为空则不启动
	MonthlyRevenueTarget float64 // 月度收入目标

	EntityFieldsFile       string // 实体字段白名单覆盖文件 (yaml)
	StrictEntityProjection bool   // 未知实体是否拒绝请求

	AppVersion  string
	Environment string
	CORSOrigins []string
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))
	target, _ := strconv.ParseFloat(getEnv("MONTHLY_REVENUE_TARGET", "0"), 64)
	return &Config{
		Port:     port,
		MongoURI: getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:  getEnv("MONGO_DB", "posalpro"),
		JWTKey:   getEnv("JWT_KEY", "your-secret-key"), // 实际环境应替换为安全密钥
		Debug:    getEnv("GIN_MODE", "debug") == "debug",

		DashboardSource:      strings.ToLower(getEnv("DASHBOARD_SOURCE", DashboardSourceMongo)),
		PostgresDSN:          getEnv("POSTGRES_DSN", "host=localhost port=5432 user=posalpro dbname=posalpro sslmode=disable"),
		SnapshotCron:         getEnv("SNAPSHOT_CRON", "0 2 * * *"),
		MonthlyRevenueTarget: target,

		EntityFieldsFile:       getEnv("ENTITY_FIELDS_FILE", ""),
		StrictEntityProjection: getBoolEnv("STRICT_ENTITY_PROJECTION", false),

		AppVersion:  getEnv("APP_VERSION", "dev"),
		Environment: getEnv("APP_ENV", "development"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolEnv 获取布尔型环境变量，无法解析时返回默认值
func getBoolEnv(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
