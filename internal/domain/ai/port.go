package ai

import "context"

// TopicPrompt is the context a topic explanation is generated in.
type TopicPrompt struct {
	Topic     string
	LevelName string
	Language  string
	Framework *string
}

// Client is the generation provider.
type Client interface {
	// GenerateRoadmap returns the raw JSON reply for a code snippet.
	GenerateRoadmap(ctx context.Context, code string) (string, error)
	ExplainTopic(ctx context.Context, p TopicPrompt) (string, error)
}
