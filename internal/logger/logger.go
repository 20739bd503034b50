package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type palette struct {
	reset, red, green, yellow, blue, purple, cyan, gray, bold string
}

var (
	ansi = palette{
		reset:  "\033[0m",
		red:    "\033[31m",
		green:  "\033[32m",
		yellow: "\033[33m",
		blue:   "\033[34m",
		purple: "\033[35m",
		cyan:   "\033[36m",
		gray:   "\033[37m",
		bold:   "\033[1m",
	}

	statusCodeRegex = regexp.MustCompile(`^[2-5]\d{2}$`)
)

func (p palette) wrap(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + p.reset
}

// Init configures the global zerolog logger. When logFile is set, JSON lines are
// additionally written to a size-rotated file.
func Init(env string, logFile string) {
	var p palette
	colored := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if colored {
		p = ansi
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "02.01.2006 15:04:05",
		NoColor:    !colored,
		FormatLevel: func(i interface{}) string {
			switch level := strings.ToUpper(fmt.Sprintf("%s", i)); level {
			case "INFO":
				return p.wrap(p.blue, "●")
			case "WARN":
				return p.wrap(p.yellow, "●")
			case "ERROR", "FATAL":
				return p.wrap(p.red, "●")
			default:
				return level
			}
		},
		FormatMessage: func(i interface{}) string {
			msg := fmt.Sprintf("%-35s", i)
			switch {
			case strings.HasPrefix(msg, "request completed"):
				return p.wrap(p.gray, msg)
			case strings.Contains(msg, "upload"):
				return p.wrap(p.bold, msg)
			}
			return msg
		},
		FormatFieldName: func(i interface{}) string {
			return p.wrap(p.cyan, fmt.Sprintf("%s", i)) + "="
		},
		FormatFieldValue: func(i interface{}) string {
			val := fmt.Sprintf("%s", i)

			switch val {
			case "GET", "POST", "PUT", "DELETE", "PATCH":
				return p.wrap(p.purple, val)
			}

			if statusCodeRegex.MatchString(val) {
				switch val[0] {
				case '2':
					return p.wrap(p.green, val)
				case '3':
					return p.wrap(p.yellow, val)
				default:
					return p.wrap(p.red, val)
				}
			}

			return val
		},
	}

	var out io.Writer = console
	if logFile != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Str("env", env).
		Logger()

	switch env {
	case "production":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
