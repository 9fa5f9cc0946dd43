// Package llm scores code changes with a language model and extracts the
// numeric review score from the model output.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const reviewPrompt = `You are a senior code reviewer. Review the following code changes
and reply in markdown. Cover correctness, readability, and risk. Finish your
reply with a single line in the form "Score: <0-100>".

Commit messages:
%s

Changes:
%s`

// Config selects the model endpoint used for reviews.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Engine reviews diffs through an OpenAI-compatible chat model.
type Engine struct {
	model   llms.Model
	timeout time.Duration
}

// New builds an engine from the model configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm api key is required")
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return &Engine{model: model, timeout: cfg.Timeout}, nil
}

// NewWithModel builds an engine around an existing model. Tests use it with
// a stub model.
func NewWithModel(model llms.Model, timeout time.Duration) *Engine {
	return &Engine{model: model, timeout: timeout}
}

// Review asks the model to review the given diff and returns the cleaned
// review text.
func (e *Engine) Review(ctx context.Context, diff, commitMessages string) (string, error) {
	if strings.TrimSpace(diff) == "" {
		return "", errors.New("empty diff")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	prompt := fmt.Sprintf(reviewPrompt, commitMessages, diff)
	out, err := llms.GenerateFromSinglePrompt(ctx, e.model, prompt, llms.WithTemperature(0.3))
	if err != nil {
		return "", fmt.Errorf("llm review: %w", err)
	}
	return StripModelArtifacts(out), nil
}

var (
	thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	scorePattern = regexp.MustCompile(`(?i)(?:score|总分)\s*[:：]?\s*(\d+(?:\.\d+)?)`)
)

// StripModelArtifacts removes reasoning blocks and a wrapping markdown code
// fence from a model reply.
func StripModelArtifacts(text string) string {
	text = thinkPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(text, fence) && strings.HasSuffix(text, "```") && len(text) > len(fence)+3 {
			text = strings.TrimPrefix(text, fence)
			text = strings.TrimSuffix(text, "```")
			text = strings.TrimSpace(text)
			break
		}
	}
	return text
}

// ParseScore extracts the numeric review score from the review text. The
// last score marker wins; text without one scores zero.
func ParseScore(text string) float64 {
	matches := scorePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0
	}
	last := matches[len(matches)-1]
	score, err := strconv.ParseFloat(last[1], 64)
	if err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
