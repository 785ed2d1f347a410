package tools

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/petasbytes/toolchat/internal/metrics"
)

// Now is the clock used by time-dependent tools.
var Now = time.Now

type noArgs struct{}

type CalculateInput struct {
	Expression string `json:"expression" jsonschema_description:"Mathematical expression to evaluate (e.g. \"2 + 2\", \"10 * (5 + 3)\")."`
}

type RandomNumberInput struct {
	Min string `json:"min" jsonschema_description:"Minimum value (inclusive)."`
	Max string `json:"max" jsonschema_description:"Maximum value (inclusive)."`
}

type ConvertTemperatureInput struct {
	Value string `json:"value" jsonschema_description:"Temperature value to convert."`
	From  string `json:"from" jsonschema_description:"Source unit: celsius, fahrenheit, or kelvin."`
	To    string `json:"to" jsonschema_description:"Target unit: celsius, fahrenheit, or kelvin."`
}

type CountWordsInput struct {
	Text string `json:"text" jsonschema_description:"Text to analyze."`
}

type CreateTimerInput struct {
	Duration string `json:"duration" jsonschema_description:"Duration in seconds."`
	Label    string `json:"label,omitempty" jsonschema_description:"Optional label for the timer."`
}

type FormatDateInput struct {
	Date   string `json:"date" jsonschema_description:"Date to format (e.g. \"2025-11-01\" or \"November 1, 2025\")."`
	Format string `json:"format" jsonschema_description:"Output format: short (11/1/25), long (Saturday, November 1, 2025), iso (2025-11-01), or relative (X days ago)."`
}

type GeneratePasswordInput struct {
	Length         string `json:"length,omitempty" jsonschema_description:"Password length between 8 and 128 (default 16)."`
	IncludeSymbols string `json:"include_symbols,omitempty" jsonschema_description:"Include symbols? yes or no (default yes)."`
}

// LocalTools returns the tools that run without network access.
func LocalTools() []ToolDefinition {
	return []ToolDefinition{
		NewTool("get_current_time", "Get the current time and date", getCurrentTime),
		NewTool("calculate", "Perform mathematical calculations. Supports basic operations (+, -, *, /), exponents (**), and parentheses", calculate),
		NewTool("generate_random_number", "Generate a random number within a specified range", generateRandomNumber),
		NewTool("convert_temperature", "Convert temperature between Celsius, Fahrenheit, and Kelvin", convertTemperature),
		NewTool("count_words", "Count words, characters, sentences, and paragraphs in text", countWords),
		NewTool("create_timer", "Create a countdown timer for a specified duration", createTimer),
		NewTool("format_date", "Format a date string into various formats", formatDate),
		NewTool("generate_password", "Generate a random secure password", generatePassword),
	}
}

func getCurrentTime(_ context.Context, _ noArgs) (string, error) {
	return "Current date and time: " + Now().Format("Monday, January 2, 2006 at 03:04:05 PM MST"), nil
}

func calculate(_ context.Context, in CalculateInput) (string, error) {
	expression := strings.TrimSpace(in.Expression)
	if expression == "" {
		return "", errors.New("expression is empty")
	}
	out, err := expr.Eval(expression, nil)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	return fmt.Sprintf("%s = %s", expression, formatNumber(out)), nil
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatFloat(n, 'f', 0, 64)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func generateRandomNumber(_ context.Context, in RandomNumberInput) (string, error) {
	lo, errLo := strconv.Atoi(strings.TrimSpace(in.Min))
	hi, errHi := strconv.Atoi(strings.TrimSpace(in.Max))
	if errLo != nil || errHi != nil {
		return "", errors.New("min and max must be valid integers")
	}
	if lo > hi {
		return "", fmt.Errorf("min %d is greater than max %d", lo, hi)
	}
	span := hi - lo + 1
	if span <= 0 {
		return "", fmt.Errorf("range %d to %d is too wide", lo, hi)
	}
	n := lo + mrand.IntN(span)
	return fmt.Sprintf("Random number between %d and %d: %d", lo, hi, n), nil
}

func convertTemperature(_ context.Context, in ConvertTemperatureInput) (string, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(in.Value), 64)
	if err != nil {
		return "", fmt.Errorf("invalid temperature value %q", in.Value)
	}

	var celsius float64
	switch strings.ToLower(in.From) {
	case "celsius":
		celsius = v
	case "fahrenheit":
		celsius = (v - 32) * 5 / 9
	case "kelvin":
		celsius = v - 273.15
	default:
		return "", fmt.Errorf("invalid source unit %q: use celsius, fahrenheit, or kelvin", in.From)
	}

	var out float64
	switch strings.ToLower(in.To) {
	case "celsius":
		out = celsius
	case "fahrenheit":
		out = celsius*9/5 + 32
	case "kelvin":
		out = celsius + 273.15
	default:
		return "", fmt.Errorf("invalid target unit %q: use celsius, fahrenheit, or kelvin", in.To)
	}
	return fmt.Sprintf("%s° %s = %.2f° %s", in.Value, in.From, out, in.To), nil
}

func countWords(_ context.Context, in CountWordsInput) (string, error) {
	p := metrics.CountProse(in.Text)
	return fmt.Sprintf(`Text Analysis:
- Words: %d
- Characters (with spaces): %d
- Characters (without spaces): %d
- Sentences: %d
- Paragraphs: %d`, p.Words, p.Runes, p.NonSpaceRunes, p.Sentences, p.Paragraphs), nil
}

func createTimer(_ context.Context, in CreateTimerInput) (string, error) {
	secs, err := strconv.Atoi(strings.TrimSpace(in.Duration))
	if err != nil || secs <= 0 {
		return "", errors.New("duration must be a positive number of seconds")
	}
	label := in.Label
	if label == "" {
		label = "Timer"
	}
	return fmt.Sprintf("%s set for %d seconds (%dm %ds). Note: this is a notification only; timers are not run in this environment.",
		label, secs, secs/60, secs%60), nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"1/2/2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func formatDate(_ context.Context, in FormatDateInput) (string, error) {
	d, err := parseDate(in.Date)
	if err != nil {
		return "", err
	}

	var out string
	switch strings.ToLower(strings.TrimSpace(in.Format)) {
	case "short":
		out = d.Format("1/2/06")
	case "long":
		out = d.Format("Monday, January 2, 2006")
	case "iso":
		out = d.Format("2006-01-02")
	case "relative":
		now := Now()
		days := int(math.Ceil(math.Abs(now.Sub(d).Hours()) / 24))
		if d.After(now) {
			out = fmt.Sprintf("in %d days", days)
		} else {
			out = fmt.Sprintf("%d days ago", days)
		}
	default:
		return "", fmt.Errorf("format must be short, long, iso, or relative; got %q", in.Format)
	}
	return "Formatted date: " + out, nil
}

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

func generatePassword(_ context.Context, in GeneratePasswordInput) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in.Length))
	if err != nil || n == 0 {
		n = 16
	}
	if n < 8 || n > 128 {
		return "", errors.New("length must be between 8 and 128")
	}

	alphabet := lowerChars + upperChars + digitChars
	if !strings.EqualFold(strings.TrimSpace(in.IncludeSymbols), "no") {
		alphabet += symbolChars
	}

	size := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		k, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		buf[i] = alphabet[k.Int64()]
	}
	return "Generated password: " + string(buf), nil
}
