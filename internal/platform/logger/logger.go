package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	once         sync.Once
	logFile      *os.File
)

// Init はグローバルロガーを設定します。2 回目以降の呼び出しは無視されます。
// ロガーを持たないコンテキストに対する zerolog.Ctx もグローバルロガーを返すようになります。
// filePath が指定された場合は標準出力とファイルの両方に書き込みます。
func Init(level, filePath string) error {
	var initErr error
	once.Do(func() {
		lvl, err := parseLevel(level)
		if err != nil {
			initErr = err
			return
		}

		writers := []io.Writer{os.Stdout}
		if filePath != "" {
			f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
			if err != nil {
				initErr = fmt.Errorf("logger: open %s: %w", filePath, err)
				return
			}
			logFile = f
			writers = append(writers, f)
		}

		globalLogger = New(zerolog.MultiLevelWriter(writers...), lvl)
		log.Logger = globalLogger
		zerolog.DefaultContextLogger = &globalLogger
	})
	return initErr
}

// New は指定した出力先とレベルでロガーを生成します。
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Close はログファイルを閉じます。
func Close() error {
	if logFile == nil {
		return nil
	}
	return logFile.Close()
}

// Global はグローバルロガーを返します。
func Global() *zerolog.Logger {
	return &globalLogger
}

// WithContext はロガーをコンテキストに格納します。
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext はコンテキストからロガーを取り出します。存在しなければグローバルロガーを返します。
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &globalLogger
	}
	l := zerolog.Ctx(ctx)
	if l == nil || l.GetLevel() == zerolog.Disabled {
		return &globalLogger
	}
	return l
}

func parseLevel(raw string) (zerolog.Level, error) {
	if strings.TrimSpace(raw) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logger: invalid level %q: %w", raw, err)
	}
	return lvl, nil
}
