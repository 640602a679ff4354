package logger

import "go.uber.org/zap"

// New создает zap-логгер: production для APP_ENV=production, иначе development.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// OrNop возвращает l или пустой логгер, если l == nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
