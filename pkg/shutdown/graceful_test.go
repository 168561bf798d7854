package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunContinuesPastFailures(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var ran []string
	boom := errors.New("boom")

	err := Run(log, time.Second,
		Step{Name: "http", Fn: func(context.Context) error { ran = append(ran, "http"); return boom }},
		Step{Name: "relay", Fn: func(ctx context.Context) error {
			ran = append(ran, "relay")
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		}},
	)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"http", "relay"}, ran)
}

func TestWithSignalsCancelsWithParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := WithSignals(parent)
	defer stop()

	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
