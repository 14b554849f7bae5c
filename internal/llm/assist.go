package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blockpatch/blockpatch/internal/logging"
)

const identifySystem = `You match suggested code edits to the files of a project.
Reply with the paths of the files the edits belong to, one path per line,
chosen only from the provided file list. Reply with nothing else.`

const generateSystem = `You convert a suggested code change into search/replace blocks
for a single file. Use exactly this format for each change:

<<<<<<< SEARCH
lines copied verbatim from the current file
=======
the replacement lines
>>>>>>> REPLACE

Copy the search lines exactly as they appear in the file, including their
indentation. Keep each block small. Emit the blocks and nothing else.`

// Assist wraps a Client with the prompts blockpatch uses.
type Assist struct {
	client      *Client
	logger      *logging.Logger
	model       string
	temperature float32
	maxTokens   int
}

func NewAssist(client *Client, logger *logging.Logger, model string, temperature float32, maxTokens int) *Assist {
	return &Assist{
		client:      client,
		logger:      logger,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// IdentifyTargetFiles asks the model which of the candidate paths the pasted
// edits belong to. Paths the model invents are dropped; answer order is kept.
func (a *Assist) IdentifyTargetFiles(ctx context.Context, pasted string, candidates []string) ([]string, error) {
	prompt := "Project files:\n" + strings.Join(candidates, "\n") +
		"\n\nSuggested edits:\n\n" + pasted

	content, err := a.chat(ctx, identifySystem, prompt)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c] = true
	}

	var paths []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		p := strings.Trim(strings.TrimSpace(line), "`")
		if p == "" || !known[p] || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("model named no file from the candidate list")
	}
	return paths, nil
}

// GenerateDiffForFile asks the model to re-express the pasted change as
// search/replace blocks against the file's current content. The returned text
// goes straight to the diff parser, which ignores any surrounding prose.
func (a *Assist) GenerateDiffForFile(ctx context.Context, pasted, path, content string) (string, error) {
	prompt := fmt.Sprintf("Current content of %s:\n\n%s\n\nSuggested change:\n\n%s",
		path, content, pasted)
	return a.chat(ctx, generateSystem, prompt)
}

func (a *Assist) chat(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := a.client.Chat(ctx, ChatRequest{
		Model: a.model,
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	a.logger.LLMCall(a.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, time.Since(start))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	choice := resp.Choices[0]
	if choice.Error != nil {
		return "", fmt.Errorf("upstream error %d: %s", choice.Error.Code, choice.Error.Message)
	}
	return choice.Message.Content, nil
}
