package bot

import (
	"context"
	"io"

	"github.com/duckworks/geminiduck/internal/gemini"
	"github.com/duckworks/geminiduck/internal/history"
	"github.com/duckworks/geminiduck/internal/render"
)

// Completer is the completion surface of the model client used by Bot.
type Completer interface {
	Complete(ctx context.Context, prompt string, req gemini.Request) (*gemini.CompletionResult, error)
	Model() string
}

// CardRenderer rasterizes plain text onto a PNG card.
type CardRenderer interface {
	Compose(text string, style render.Style) ([]byte, error)
}

// AssetCreator writes rendered payloads into the scratch directory.
type AssetCreator interface {
	Create(prefix, ext string, payload []byte) (string, error)
}

// Recorder persists completed exchanges. May be nil to disable history.
type Recorder interface {
	Append(ex history.Exchange) error
}

// Archiver mirrors rendered assets to a bucket. May be nil to disable archiving.
type Archiver interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string, contentLength int64) error
	PublicURL(key string) string
}
