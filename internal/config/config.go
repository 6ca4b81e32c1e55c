// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 在 main 中构造一次后按 section 注入各组件，业务代码不再读取环境变量。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Records       RecordsConfig       `mapstructure:"records"`
	Email         EmailConfig         `mapstructure:"email"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Catalog       CatalogConfig       `mapstructure:"catalog"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
// 会话令牌与管理员令牌共用同一签名密钥，有效期分别配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	SessionTokenExpireDays int    `mapstructure:"session_token_expire_days"`
	AdminTokenExpireHours  int    `mapstructure:"admin_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// LLMConfig 存储大语言模型相关的配置。
// Model 用于纯文本估算，VisionModel 在消息中包含图片时启用。
type LLMConfig struct {
	APIKey      string              `mapstructure:"api_key"`
	BaseURL     string              `mapstructure:"base_url"`
	Model       string              `mapstructure:"model"`
	VisionModel string              `mapstructure:"vision_model"`
	Generation  LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// RecordsConfig 存储外部表格记录服务（摘要归档）的配置。
type RecordsConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	ContentBaseURL  string `mapstructure:"content_base_url"`
	BaseID          string `mapstructure:"base_id"`
	Table           string `mapstructure:"table"`
	AttachmentField string `mapstructure:"attachment_field"`
}

// EmailConfig 存储通知邮件内容相关的配置。
// 注意：本服务只组装邮件内容并随响应返回，不负责实际发送；
// APIKey 仅参与配置完整性检查，由下游调用方决定投递方式。
type EmailConfig struct {
	APIKey        string `mapstructure:"api_key"`
	To            string `mapstructure:"to"`
	From          string `mapstructure:"from"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// AdminConfig 存储管理员账号的配置，密码以 bcrypt 哈希存储。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// CatalogConfig 存储服务报价目录与开场白。
type CatalogConfig struct {
	Greeting string            `mapstructure:"greeting"`
	Services []ServiceOffering `mapstructure:"services"`
}

// ServiceOffering 是报价目录中的一个服务档位。
type ServiceOffering struct {
	Name          string `mapstructure:"name"`
	StartingPrice string `mapstructure:"starting_price"`
	Description   string `mapstructure:"description"`
}

// Load 从指定路径读取 YAML 文件并解析为 Config。
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var conf Config
	if err := viper.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &conf, nil
}
