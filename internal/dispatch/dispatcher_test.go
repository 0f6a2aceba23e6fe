package dispatch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhavidudhat/CSC468-group3/internal/audit"
	"github.com/janhavidudhat/CSC468-group3/internal/engine"
	"github.com/janhavidudhat/CSC468-group3/internal/ledger"
	"github.com/janhavidudhat/CSC468-group3/internal/quote"
)

func newTestDispatcher(t *testing.T, quotes quote.Source) *Dispatcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.NewMemory()
	pending := engine.NewPendingTable()
	registry := engine.NewRegistry()
	resv := engine.NewReservationEngine(l, quotes, pending, time.Hour, logger)
	triggers := engine.NewTriggerEngine(l, pending, registry, logger)
	return New(l, quotes, resv, triggers, audit.NewLog("test"), logger)
}

func TestHandle_BuyCommitFlow(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(map[string]int64{"XYZ": 5000}))
	ctx := context.Background()

	resp := d.Handle(ctx, "[1] ADD,alice,1000.00")
	assert.Equal(t, "[1] ADD: added 1000.00, balance 1000.00", resp)

	resp = d.Handle(ctx, "[2] BUY,alice,XYZ,500.00")
	assert.Contains(t, resp, "[2] BUY: reserved 10 XYZ @ 50.00 for 500.00")

	resp = d.Handle(ctx, "[3] COMMIT_BUY,alice")
	assert.Equal(t, "[3] COMMIT_BUY: bought 10 XYZ @ 50.00 for 500.00", resp)

	resp = d.Handle(ctx, "[4] DISPLAY_SUMMARY,alice")
	assert.Contains(t, resp, "balance 500.00")
	assert.Contains(t, resp, "available 500.00")
	assert.Contains(t, resp, "holds 10 XYZ (10 available)")
}

func TestHandle_ErrorResponseCarriesSeqCommandParams(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(map[string]int64{"XYZ": 5000}))

	resp := d.Handle(context.Background(), "[7] COMMIT_BUY,ghost")
	assert.Equal(t, "[7] COMMIT_BUY error: no_pending_reservation (params: ghost)", resp)

	resp = d.Handle(context.Background(), "[8] BUY,ghost,XYZ,10.00")
	assert.Equal(t, "[8] BUY error: user_not_found (params: ghost,XYZ,10.00)", resp)
}

func TestHandle_UnknownCommand(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(nil))

	resp := d.Handle(context.Background(), "[3] FROB,alice")
	assert.Contains(t, resp, "[3] FROB error: unknown_command")
}

func TestHandle_MalformedLine(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(nil))

	resp := d.Handle(context.Background(), "no brackets here")
	assert.Contains(t, resp, "error")
}

func TestHandle_WrongParamCount(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(nil))
	d.Handle(context.Background(), "[1] ADD,alice,100.00")

	resp := d.Handle(context.Background(), "[2] BUY,alice,XYZ")
	assert.Contains(t, resp, "[2] BUY error:")
	assert.Contains(t, resp, "3 parameters")
}

func TestHandle_BadMoneyAmount(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(nil))

	resp := d.Handle(context.Background(), "[1] ADD,alice,12.345")
	assert.Contains(t, resp, "[1] ADD error:")
}

func TestHandle_AddIsUpsert(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(nil))
	ctx := context.Background()

	d.Handle(ctx, "[1] ADD,alice,100.00")
	resp := d.Handle(ctx, "[2] ADD,alice,50.00")
	assert.Equal(t, "[2] ADD: added 50.00, balance 150.00", resp)
}

func TestHandle_Quote(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(map[string]int64{"ABC": 1234}))

	resp := d.Handle(context.Background(), "[5] QUOTE,alice,ABC")
	assert.Equal(t, "[5] QUOTE: ABC = 12.34", resp)
}

func TestHandle_AutoBuyProtocol(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(map[string]int64{"XYZ": 5000}))
	ctx := context.Background()

	d.Handle(ctx, "[1] ADD,alice,1000.00")

	resp := d.Handle(ctx, "[2] SET_BUY_TRIGGER,alice,XYZ,45.00")
	assert.Contains(t, resp, "error: no_buy_amount_set")

	resp = d.Handle(ctx, "[3] SET_BUY_AMOUNT,alice,XYZ,10")
	assert.Contains(t, resp, "staged auto-buy of 10 XYZ")

	resp = d.Handle(ctx, "[4] SET_BUY_TRIGGER,alice,XYZ,45.00")
	assert.Contains(t, resp, "armed auto-buy of 10 XYZ at 45.00")
	assert.Contains(t, resp, "reserved 450.00")

	resp = d.Handle(ctx, "[5] CANCEL_SET_BUY,alice,XYZ")
	assert.Contains(t, resp, "cancelled auto-buy of 10 XYZ")

	resp = d.Handle(ctx, "[6] DISPLAY_SUMMARY,alice")
	assert.Contains(t, resp, "available 1000.00")
}

func TestHandle_PanicBecomesHandlerFault(t *testing.T) {
	src := quote.SourceFunc(func(ctx context.Context, userID, symbol string) (quote.Quote, error) {
		panic("quote source wedged")
	})
	d := newTestDispatcher(t, src)

	resp := d.Handle(context.Background(), "[9] QUOTE,alice,XYZ")
	assert.Equal(t, "[9] QUOTE error: internal handler fault (params: alice,XYZ)", resp)
}

func TestHandle_Dumplog(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(nil))
	ctx := context.Background()

	d.Handle(ctx, "[1] ADD,alice,100.00")
	d.Handle(ctx, "[2] ADD,bob,200.00")

	path := filepath.Join(t.TempDir(), "out.xml")
	resp := d.Handle(ctx, "[3] DUMPLOG,"+path)
	assert.Contains(t, resp, "wrote audit log to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "<log>")
	assert.Contains(t, body, "<username>alice</username>")
	assert.Contains(t, body, "<username>bob</username>")

	// Per-user variant filters entries.
	userPath := filepath.Join(t.TempDir(), "alice.xml")
	d.Handle(ctx, "[4] DUMPLOG,alice,"+userPath)
	data, err = os.ReadFile(userPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice")
	assert.NotContains(t, string(data), "bob")
}

func TestHandle_EveryCommandProducesOneResponse(t *testing.T) {
	d := newTestDispatcher(t, quote.NewFixedSource(map[string]int64{"XYZ": 5000}))
	ctx := context.Background()

	lines := []string{
		"[1] ADD,u,1000.00",
		"[2] QUOTE,u,XYZ",
		"[3] BUY,u,XYZ,100.00",
		"[4] CANCEL_BUY,u",
		"[5] COMMIT_BUY,u",
		"[6] SELL,u,XYZ,100.00",
		"[7] CANCEL_SELL,u",
		"[8] COMMIT_SELL,u",
		"[9] SET_BUY_AMOUNT,u,XYZ,2",
		"[10] SET_BUY_TRIGGER,u,XYZ,40.00",
		"[11] CANCEL_SET_BUY,u,XYZ",
		"[12] SET_SELL_AMOUNT,u,XYZ,1",
		"[13] SET_SELL_TRIGGER,u,XYZ,60.00",
		"[14] CANCEL_SET_SELL,u,XYZ",
		"[15] DISPLAY_SUMMARY,u",
	}
	for _, line := range lines {
		resp := d.Handle(ctx, line)
		require.NotEmpty(t, resp, "line %q", line)
		seq := line[:strings.Index(line, "]")+1]
		assert.True(t, strings.HasPrefix(resp, seq), "response %q should echo %s", resp, seq)
	}
}
