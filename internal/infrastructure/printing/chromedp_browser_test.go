//go:build chrome

package printing

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/crosswms/loadorder/internal/domain/printing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Run with: go test -tags chrome ./internal/infrastructure/printing/
func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary on PATH")
}

func newBrowserOpener(t *testing.T) *ChromedpContextOpener {
	requireChrome(t)
	o := NewChromedpContextOpener(&ChromedpConfig{
		DefaultTimeout: 10 * time.Second,
		NoSandbox:      true,
		MaxContexts:    2,
		Logger:         zaptest.NewLogger(t),
	})
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestChromedpContext_OpenWritePrint(t *testing.T) {
	o := newBrowserOpener(t)

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 10*time.Second)
	pc, err := o.Open(openCtx)
	cancelOpen()
	require.NoError(t, err)
	require.NotNil(t, pc)
	defer pc.Close()

	// every step runs after the Open context is gone
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, pc.Write(ctx, `<!DOCTYPE html><html><body><p>Ordem de Carga</p>`+
		`<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=" width="1" height="1"></body></html>`))
	require.NoError(t, pc.WaitLoaded(ctx))
	_, err = pc.AwaitImage(ctx, 0)
	require.NoError(t, err)

	data, err := pc.Print(ctx, DefaultPrintOptions())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	require.NoError(t, pc.Close())
	assert.ErrorIs(t, pc.Write(ctx, "<p/>"), ErrContextClosed)
}

func TestOrchestrator_PrintsThroughBrowserBeforeFallback(t *testing.T) {
	o := newBrowserOpener(t)

	cfg := DefaultOrchestratorConfig()
	cfg.GracePeriod = 50 * time.Millisecond
	cfg.FallbackTimeout = 8 * time.Second
	cfg.CloseDelay = 10 * time.Millisecond
	orch := NewPrintOrchestrator(o, nil, cfg, zaptest.NewLogger(t))
	defer orch.Shutdown()

	outcome, err := orch.Print(context.Background(), "d1", &RenderedDocument{
		Title:        "ORDEM DE CARGA",
		DocumentType: printing.DocumentTypeManifest,
		HTML:         "<p>NF 123</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, printing.PrintStatusPrinted, outcome.Status, "%v", outcome.Err)
	assert.Equal(t, printing.PrintTriggerSettled, outcome.Trigger)
	assert.True(t, bytes.HasPrefix(outcome.Document, []byte("%PDF")))
}
