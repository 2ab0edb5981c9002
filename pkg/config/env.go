package config

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendMySQL  = "mysql"
)

const (
	EnvStorageBackend = "STORAGE_BACKEND"
	EnvMongoURI       = "MONGO_URI"
	EnvMySQLDSN       = "MYSQL_DSN"
	EnvRedisAddr      = "REDIS_ADDR"
	EnvPort           = "PORT"
	EnvLogLevel       = "LOG_LEVEL"
)

const (
	DefaultPaginationLimit = 10
	MaxPaginationLimit     = 100
)

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPaginationLimit
	} else if limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
